package providers

import (
	"context"
	"testing"

	"github.com/seenimoa/finsheet/internal/config"
	"github.com/seenimoa/finsheet/internal/provider"
	"github.com/seenimoa/finsheet/pkg/models"
)

func TestRegisterAllTo(t *testing.T) {
	reg := provider.NewRegistry()
	cfg := &config.Config{}
	cfg.CIQ.Username = "user"
	cfg.CIQ.Password = "pass"
	if err := RegisterAllTo(reg, cfg); err != nil {
		t.Fatalf("RegisterAllTo: %v", err)
	}

	p, err := reg.Get("ciq")
	if err != nil {
		t.Fatalf("ciq not registered: %v", err)
	}
	if p.Info().Name != "ciq" {
		t.Error("wrong provider name")
	}
	if def, _ := reg.Default(); def != "ciq" {
		t.Errorf("default = %q, want ciq", def)
	}
}

func TestRegisterAllToWithoutCredentials(t *testing.T) {
	reg := provider.NewRegistry()
	if err := RegisterAllTo(reg, &config.Config{}); err != nil {
		t.Fatalf("RegisterAllTo: %v", err)
	}
	req := models.AtomicRequest{Function: models.FunctionPoint, Identifier: "AAPL", Mnemonic: "IQ_NI"}
	_, err := reg.Send(context.Background(), "", []models.AtomicRequest{req})
	if !provider.IsConfigError(err) {
		t.Errorf("expected config error, got %T: %v", err, err)
	}
}

func TestRegisterAllIdempotent(t *testing.T) {
	reg := provider.NewRegistry()
	for i := 0; i < 2; i++ {
		if err := RegisterAllTo(reg, nil); err != nil {
			t.Fatalf("RegisterAllTo #%d: %v", i, err)
		}
	}
	if n := len(reg.List()); n != 1 {
		t.Errorf("expected 1 provider, got %d", n)
	}
}
