package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bidstream-io/localbanker"
)

func newTestServer(t *testing.T) (*httptest.Server, *localbanker.Banker) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /accounts", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(map[string]any{
			"name":    body["accountName"],
			"balance": 5_000_000,
			"rate":    100000,
		})
	})
	ledger := httptest.NewServer(mux)
	t.Cleanup(ledger.Close)

	banker, err := localbanker.New(ledger.URL, localbanker.RoleRouter, "router",
		localbanker.WithReauthorizeInterval(time.Hour),
		localbanker.WithSpendUpdateInterval(time.Hour),
		localbanker.WithRegisterInterval(time.Hour),
	)
	if err != nil {
		t.Fatalf("localbanker.New: %v", err)
	}
	t.Cleanup(banker.Shutdown)

	r := chi.NewRouter()
	NewServer(banker, zap.NewNop()).Routes(r)
	api := httptest.NewServer(r)
	t.Cleanup(api.Close)
	return api, banker
}

func registerAccount(t *testing.T, b *localbanker.Banker, name string) localbanker.AccountKey {
	t.Helper()
	key, err := localbanker.ParseAccountKey(name)
	if err != nil {
		t.Fatalf("ParseAccountKey: %v", err)
	}
	b.AddAccount(key)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := b.Balance(key); err == nil {
			return key
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("account %s never registered", name)
	return key
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	api, _ := newTestServer(t)

	resp, err := http.Get(api.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d", resp.StatusCode)
	}
}

func TestAddAccount_ReturnsPending(t *testing.T) {
	api, _ := newTestServer(t)

	resp := postJSON(t, api.URL+"/accounts", `{"name": "camp1:strategy1"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202", resp.StatusCode)
	}

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "pending" {
		t.Errorf("status field: got %q", body["status"])
	}
}

func TestAddAccount_RejectsMalformedKey(t *testing.T) {
	api, _ := newTestServer(t)

	resp := postJSON(t, api.URL+"/accounts", `{"name": "camp1::bad"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

func TestGetAccount(t *testing.T) {
	api, banker := newTestServer(t)
	registerAccount(t, banker, "camp1:strategy1")

	resp, err := http.Get(api.URL + "/accounts/camp1:strategy1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}

	var info localbanker.AccountInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Key.String() != "camp1:strategy1:router" {
		t.Errorf("key: got %q", info.Key.String())
	}
	if info.Balance != localbanker.MicroUSD(5_000_000) {
		t.Errorf("balance: got %d", info.Balance.Micros())
	}
}

func TestGetAccount_NotFound(t *testing.T) {
	api, _ := newTestServer(t)

	resp, err := http.Get(api.URL + "/accounts/ghost:strategy")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestBidAndWin(t *testing.T) {
	api, banker := newTestServer(t)
	key := registerAccount(t, banker, "camp1:strategy1")

	resp := postJSON(t, api.URL+"/bid", `{"account": "camp1:strategy1", "price": 1000000}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bid status: got %d", resp.StatusCode)
	}
	var bidOut map[string]bool
	json.NewDecoder(resp.Body).Decode(&bidOut)
	if !bidOut["admitted"] {
		t.Fatal("bid must be admitted")
	}

	resp = postJSON(t, api.URL+"/win", `{"account": "camp1:strategy1", "price": 900000}`)
	var winOut map[string]bool
	json.NewDecoder(resp.Body).Decode(&winOut)
	if !winOut["accounted"] {
		t.Fatal("win must be accounted")
	}

	balance, err := banker.Balance(key)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != localbanker.MicroUSD(4_100_000) {
		t.Errorf("balance: got %d, want 4100000", balance.Micros())
	}
}

func TestBid_RejectsNegativePrice(t *testing.T) {
	api, banker := newTestServer(t)
	registerAccount(t, banker, "camp1:strategy1")

	resp := postJSON(t, api.URL+"/bid", `{"account": "camp1:strategy1", "price": -5}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
