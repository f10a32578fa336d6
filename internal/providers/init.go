// Package providers initializes and registers all concrete transports
// with the global provider registry.
package providers

import (
	"time"

	"github.com/seenimoa/finsheet/internal/config"
	"github.com/seenimoa/finsheet/internal/provider"
	"github.com/seenimoa/finsheet/internal/providers/ciq"
)

// RegisterAll registers the configured providers with the global registry.
func RegisterAll(cfg *config.Config) error {
	return RegisterAllTo(provider.Global(), cfg)
}

// RegisterAllTo registers the Capital IQ provider with reg. Credentials are
// taken from cfg; when they are absent the provider is still registered so
// the first call reports a configuration error instead of "not found".
func RegisterAllTo(reg *provider.Registry, cfg *config.Config) error {
	var opts []ciq.Option
	if cfg != nil {
		if cfg.CIQ.BaseURL != "" {
			opts = append(opts, ciq.WithBaseURL(cfg.CIQ.BaseURL))
		}
		if cfg.CIQ.TimeoutSec > 0 {
			opts = append(opts, ciq.WithTimeout(time.Duration(cfg.CIQ.TimeoutSec)*time.Second))
		}
		opts = append(opts, ciq.WithRateLimit(cfg.CIQ.RequestsPerSecond))
	}
	p := ciq.New(opts...)

	creds := map[string]string{}
	if cfg != nil {
		creds[ciq.CredUsername] = cfg.CIQ.Username
		creds[ciq.CredPassword] = cfg.CIQ.Password
	}
	if err := p.Init(creds); err != nil && !provider.IsConfigError(err) {
		return err
	}
	return reg.Register(p)
}
