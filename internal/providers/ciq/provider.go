// Package ciq implements the S&P Capital IQ client-service transport.
// Requests are POSTed in batches with a bearer token obtained from the
// authenticate endpoint; the token is cached until it expires and renewed
// through the refresh endpoint when a refresh token is held.
//
// Credentials: CIQ_USER, CIQ_PASS.
package ciq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/seenimoa/finsheet/internal/infra"
	"github.com/seenimoa/finsheet/internal/provider"
	"github.com/seenimoa/finsheet/pkg/models"
)

const (
	providerName   = "ciq"
	DefaultBaseURL = "https://api-ciq.marketintelligence.spglobal.com"
	authPath       = "/gdsapi/rest/authenticate/api/v1/token"
	servicePath    = "/gdsapi/rest/v3/clientservice.json"

	CredUsername = "username"
	CredPassword = "password"

	// DefaultTimeout bounds each HTTP call. Failed calls are not retried.
	DefaultTimeout = 30 * time.Second

	tokenKey  = "access_token"
	tokenSkew = 30 * time.Second
)

// Provider implements provider.Provider for Capital IQ.
type Provider struct {
	provider.BaseProvider
	baseURL string
	client  *http.Client

	mu      sync.Mutex
	refresh string
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL points the provider at another host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithTimeout bounds each HTTP call.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.client = &http.Client{Timeout: d, Transport: p.client.Transport}
	}
}

// WithRateLimit paces calls to rps per second. Zero disables pacing.
func WithRateLimit(rps int) Option {
	return func(p *Provider) { p.SetRateLimit(rps, time.Second) }
}

// New creates a Capital IQ provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(provider.ProviderInfo{
			Name:        providerName,
			Description: "S&P Capital IQ client service",
			Website:     "https://www.marketintelligence.spglobal.com",
			Credentials: []provider.ProviderCredential{
				{Name: CredUsername, Description: "Capital IQ API username", Required: true, EnvVar: "CIQ_USER"},
				{Name: CredPassword, Description: "Capital IQ API password", Required: true, EnvVar: "CIQ_PASS"},
			},
			Functions: []models.Function{models.FunctionPoint, models.FunctionHistory},
		}),
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Init stores credentials and drops any token obtained with older ones.
func (p *Provider) Init(credentials map[string]string) error {
	if err := p.BaseProvider.Init(credentials); err != nil {
		return err
	}
	p.mu.Lock()
	p.refresh = ""
	p.mu.Unlock()
	p.CacheInvalidate(tokenKey)
	return nil
}

// Ping obtains a token, which checks both connectivity and credentials.
func (p *Provider) Ping(ctx context.Context) error {
	if _, err := p.token(ctx); err != nil {
		return fmt.Errorf("ciq ping: %w", err)
	}
	return nil
}

// SendBatch POSTs one batch to the client service.
func (p *Provider) SendBatch(ctx context.Context, reqs []models.AtomicRequest) ([]models.RawReplyRow, error) {
	if err := provider.ValidateBatch(reqs); err != nil {
		return nil, err
	}
	if err := p.RateLimit(ctx); err != nil {
		return nil, &provider.TransportError{Provider: providerName, Err: err}
	}
	tok, err := p.token(ctx)
	if err != nil {
		return nil, err
	}

	var resp serviceResponse
	err = infra.PostJSON(ctx, p.client, p.baseURL+servicePath,
		map[string]string{"Authorization": "Bearer " + tok},
		serviceRequest{InputRequests: reqs}, &resp)
	if err != nil {
		return nil, transportError(err)
	}
	return resp.GDSSDKResponse, nil
}

// token returns a cached access token, refreshing or re-authenticating as
// needed.
func (p *Provider) token(ctx context.Context) (string, error) {
	if v, ok := p.CacheGet(tokenKey); ok {
		return v.(string), nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.CacheGet(tokenKey); ok {
		return v.(string), nil
	}

	if p.refresh != "" {
		tr, err := p.postForm(ctx, authPath+"/refresh", url.Values{"refreshToken": {p.refresh}})
		if err == nil && tr.AccessToken != "" {
			p.store(tr)
			return tr.AccessToken, nil
		}
		p.refresh = ""
	}

	user, pass := p.Credential(CredUsername), p.Credential(CredPassword)
	if user == "" || pass == "" {
		return "", &provider.ErrInvalidCredentials{Provider: providerName, Detail: "username and password are required"}
	}
	tr, err := p.postForm(ctx, authPath, url.Values{"username": {user}, "password": {pass}})
	if err != nil {
		var httpErr *infra.HTTPError
		if errors.As(err, &httpErr) && (httpErr.Status == http.StatusUnauthorized || httpErr.Status == http.StatusForbidden) {
			return "", &provider.ErrInvalidCredentials{Provider: providerName, Detail: httpErr.Error()}
		}
		return "", transportError(err)
	}
	if tr.AccessToken == "" {
		return "", &provider.TransportError{Provider: providerName, Err: errors.New("authenticate: empty access token")}
	}
	p.store(tr)
	return tr.AccessToken, nil
}

// store caches a token until shortly before it expires and keeps any new
// refresh token. Must be called with mu held.
func (p *Provider) store(tr *tokenResponse) {
	secs, _ := tr.ExpiresInSeconds.Int64()
	if ttl := time.Duration(secs)*time.Second - tokenSkew; ttl > 0 {
		p.CacheSetTTL(tokenKey, tr.AccessToken, ttl)
	}
	if tr.RefreshToken != "" {
		p.refresh = tr.RefreshToken
	}
}

func (p *Provider) postForm(ctx context.Context, path string, form url.Values) (*tokenResponse, error) {
	body, status, err := infra.Do(ctx, p.client, http.MethodPost, p.baseURL+path,
		map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
			"Accept":       "application/json",
		},
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	defer body.Close()
	if status < 200 || status > 299 {
		b, _ := io.ReadAll(io.LimitReader(body, 512))
		return nil, &infra.HTTPError{Status: status, Body: strings.TrimSpace(string(b))}
	}
	var tr tokenResponse
	if err := decodeJSON(body, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

func transportError(err error) error {
	te := &provider.TransportError{Provider: providerName, Err: err}
	var httpErr *infra.HTTPError
	if errors.As(err, &httpErr) {
		te.Status = httpErr.Status
	}
	return te
}

func decodeJSON(r io.Reader, dst any) error {
	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return fmt.Errorf("parse CIQ JSON: %w", err)
	}
	return nil
}
