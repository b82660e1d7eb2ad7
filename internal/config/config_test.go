package config

import (
	"errors"
	"testing"
	"time"
)

func TestGatewayValidate(t *testing.T) {
	base := GatewayConfig{
		BaseURI:   GatewayTestURI,
		Token:     "tok",
		ReturnURL: "https://shop.example/return",
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*GatewayConfig)
		setting string
	}{
		{"missing base uri", func(g *GatewayConfig) { g.BaseURI = "" }, "ACQUIRING_BASE_URI"},
		{"missing credentials", func(g *GatewayConfig) { g.Token = "" }, "ACQUIRING_USERNAME/ACQUIRING_PASSWORD or ACQUIRING_TOKEN"},
		{"username without password", func(g *GatewayConfig) { g.Token = ""; g.UserName = "merchant-api" }, "ACQUIRING_USERNAME/ACQUIRING_PASSWORD or ACQUIRING_TOKEN"},
		{"missing return url", func(g *GatewayConfig) { g.ReturnURL = " " }, "ACQUIRING_RETURN_URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) || cfgErr.Setting != tt.setting {
				t.Fatalf("expected setting %q, got %v", tt.setting, err)
			}
		})
	}
}

func TestAuthParamsPrefersLoginPair(t *testing.T) {
	cfg := GatewayConfig{UserName: "merchant-api", Password: "secret", Token: "tok"}
	params := cfg.AuthParams()
	if params["userName"] != "merchant-api" || params["password"] != "secret" {
		t.Fatalf("expected login pair, got %v", params)
	}
	if _, ok := params["token"]; ok {
		t.Fatalf("token must not be sent with a login pair")
	}

	cfg.Password = ""
	params = cfg.AuthParams()
	if params["token"] != "tok" || len(params) != 1 {
		t.Fatalf("expected token only, got %v", params)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("ACQUIRING_TOKEN", "tok")
	t.Setenv("ACQUIRING_TIMEOUT", "5s")
	t.Setenv("RECONCILE_CONCURRENCY", "4")
	t.Setenv("DATABASE_AUTO_MIGRATE", "off")

	cfg := Load()
	if cfg.Gateway.BaseURI != GatewayProductionURI {
		t.Fatalf("expected production base uri, got %s", cfg.Gateway.BaseURI)
	}
	if cfg.Gateway.Timeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %s", cfg.Gateway.Timeout)
	}
	if cfg.Reconciliation.Concurrency != 4 {
		t.Fatalf("expected concurrency 4, got %d", cfg.Reconciliation.Concurrency)
	}
	if cfg.DBAutoMigrate {
		t.Fatalf("expected auto migrate disabled")
	}
}

func TestStatusOverrides(t *testing.T) {
	cfg := AcquiringConfig{StatusCatalog: map[string]string{"7": " held ", "x": "NEW"}}
	if err := validateAcquiringConfig(cfg); err == nil {
		t.Fatalf("expected invalid code to be rejected")
	}

	cfg = AcquiringConfig{StatusCatalog: map[string]string{"7": " held "}}
	if err := validateAcquiringConfig(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	overrides := cfg.StatusOverrides()
	if overrides[7] != "HELD" {
		t.Fatalf("expected HELD, got %q", overrides[7])
	}

	holder := NewStaticAcquiringConfigHolder(cfg)
	if got := holder.Get().StatusOverrides()[7]; got != "HELD" {
		t.Fatalf("expected holder to return override, got %q", got)
	}
}
