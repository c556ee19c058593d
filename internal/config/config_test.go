package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP:   HTTPConfig{Port: 9986},
		Ledger: LedgerConfig{BaseURL: "http://localhost:9985"},
		Banker: BankerConfig{Role: "Router"},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := validConfig()
		cfg.HTTP.Port = port
		if err := cfg.Validate(); err == nil {
			t.Errorf("expected error for port %d", port)
		}
	}
}

func TestValidate_MissingLedgerURL(t *testing.T) {
	cfg := validConfig()
	cfg.Ledger.BaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing ledger.base_url")
	}
}

func TestValidate_InvalidRole(t *testing.T) {
	cfg := validConfig()
	cfg.Banker.Role = "Bidder"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid role")
	}

	expected := `banker.role must be "Router" or "PostAuction", got "Bidder"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_NegativeSpendRate(t *testing.T) {
	cfg := validConfig()
	cfg.Banker.SpendRateMicros = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative spend rate")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 10 {
		t.Errorf("expected WriteTimeoutSec=10, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Ledger.TimeoutMs != 1000 {
		t.Errorf("expected TimeoutMs=1000, got %d", cfg.Ledger.TimeoutMs)
	}
	if cfg.Ledger.MaxConnections != 8 {
		t.Errorf("expected MaxConnections=8, got %d", cfg.Ledger.MaxConnections)
	}
	if cfg.Banker.Role != "Router" {
		t.Errorf("expected Role=Router, got %q", cfg.Banker.Role)
	}
	if cfg.Banker.AccountSuffix != "router" {
		t.Errorf("expected AccountSuffix=router, got %q", cfg.Banker.AccountSuffix)
	}
	if cfg.Journal.TTLHours != 48 {
		t.Errorf("expected TTLHours=48, got %d", cfg.Journal.TTLHours)
	}
}

func TestApplyDefaults_SuffixFollowsRole(t *testing.T) {
	cfg := Config{Banker: BankerConfig{Role: "PostAuction"}}
	cfg.ApplyDefaults()

	if cfg.Banker.AccountSuffix != "postauction" {
		t.Errorf("expected AccountSuffix=postauction, got %q", cfg.Banker.AccountSuffix)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:   HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Ledger: LedgerConfig{TimeoutMs: 250, MaxConnections: 32},
		Banker: BankerConfig{Role: "PostAuction", AccountSuffix: "pal"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Ledger.TimeoutMs != 250 {
		t.Errorf("expected TimeoutMs=250, got %d", cfg.Ledger.TimeoutMs)
	}
	if cfg.Banker.AccountSuffix != "pal" {
		t.Errorf("expected AccountSuffix=pal, got %q", cfg.Banker.AccountSuffix)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("BANKER_TEST_URL", "http://ledger:9985")

	in := []byte("base_url: ${BANKER_TEST_URL}\nrole: ${BANKER_TEST_ROLE:-Router}\n")
	out := string(expandEnvVars(in))

	want := "base_url: http://ledger:9985\nrole: Router\n"
	if out != want {
		t.Errorf("expanded config:\ngot:  %q\nwant: %q", out, want)
	}
}
