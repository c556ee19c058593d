package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bidstream-io/localbanker/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected an error for an empty base URL")
	}
}

func TestCreateAccount(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/accounts" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["accountName"] != "camp1:strategy1:router" {
			t.Errorf("accountName: got %q", body["accountName"])
		}
		if body["accountType"] != "Router" {
			t.Errorf("accountType: got %q", body["accountType"])
		}
		json.NewEncoder(w).Encode(domain.AccountRecord{
			Name:    "camp1:strategy1:router",
			Balance: 5_000_000,
			Rate:    100000,
		})
	}))

	rec, err := c.CreateAccount(context.Background(), "camp1:strategy1:router", domain.RoleRouter)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if rec.Balance != 5_000_000 {
		t.Errorf("balance: got %d", rec.Balance)
	}
}

func TestCreateAccount_MissingNameIsParseError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"balance": 100}`))
	}))

	_, err := c.CreateAccount(context.Background(), "a:b", domain.RoleRouter)
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestAccount_EscapesName(t *testing.T) {
	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		json.NewEncoder(w).Encode(domain.AccountRecord{Name: "camp1:strategy1:pal", Balance: 1})
	}))

	if _, err := c.Account(context.Background(), "camp1:strategy1:pal"); err != nil {
		t.Fatalf("Account: %v", err)
	}
	if gotPath != "/accounts/camp1:strategy1:pal" && gotPath != "/accounts/camp1%3Astrategy1%3Apal" {
		t.Errorf("unexpected path: %q", gotPath)
	}
}

func TestReauthorize(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/reauthorize/1" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var names []string
		if err := json.NewDecoder(r.Body).Decode(&names); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(names) != 2 {
			t.Errorf("names: got %v", names)
		}
		json.NewEncoder(w).Encode([]domain.AccountRecord{
			{Name: "a:router", Balance: 1_000_000},
			{Name: "b:router", Balance: 2_000_000},
		})
	}))

	recs, err := c.Reauthorize(context.Background(), []string{"a:router", "b:router"})
	if err != nil {
		t.Fatalf("Reauthorize: %v", err)
	}
	if len(recs) != 2 || recs[1].Balance != 2_000_000 {
		t.Errorf("unexpected records: %+v", recs)
	}
}

func TestReauthorize_NilNamesSendsEmptyArray(t *testing.T) {
	var raw string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 16)
		n, _ := r.Body.Read(buf)
		raw = string(buf[:n])
		w.Write([]byte(`[]`))
	}))

	if _, err := c.Reauthorize(context.Background(), nil); err != nil {
		t.Fatalf("Reauthorize: %v", err)
	}
	if raw != "[]" {
		t.Errorf("body: got %q, want []", raw)
	}
}

func TestSpendUpdate(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/spendupdate" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var snaps []domain.SpendSnapshot
		if err := json.NewDecoder(r.Body).Decode(&snaps); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(snaps) != 1 || snaps[0].Spend != 750_000 {
			t.Errorf("unexpected snapshots: %+v", snaps)
		}
		json.NewEncoder(w).Encode(map[string]string{snaps[0].Name: "success"})
	}))

	statuses, err := c.SpendUpdate(context.Background(), []domain.SpendSnapshot{
		{Name: "camp1:strategy1:pal", Spend: 750_000, Balance: 4_250_000, Rate: 100000},
	})
	if err != nil {
		t.Fatalf("SpendUpdate: %v", err)
	}
	if statuses["camp1:strategy1:pal"] != "success" {
		t.Errorf("unexpected statuses: %v", statuses)
	}
}

func TestSetRate_WireFormat(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: got %s", r.Method)
		}
		if r.URL.Path != "/accounts/camp1:strategy1:router/rate" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		var body map[string]int64
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["USD/1M"] != 100000 {
			t.Errorf("rate field: got %v", body)
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := c.SetRate(context.Background(), "camp1:strategy1:router", domain.MicroUSD(100000)); err != nil {
		t.Fatalf("SetRate: %v", err)
	}
}

func TestStatusError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "account unknown", http.StatusNotFound)
	}))

	_, err := c.Account(context.Background(), "ghost:router")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusNotFound {
		t.Errorf("code: got %d", statusErr.Code)
	}
	if errors.Is(err, ErrParse) {
		t.Error("a status error must not classify as a parse failure")
	}
}

func TestMalformedBodyIsParseError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"this is": not json`))
	}))

	_, err := c.Reauthorize(context.Background(), []string{"a:router"})
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}
