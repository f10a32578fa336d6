// Package replay serves previously recorded replies as a transport, so a
// pipeline run can be reproduced offline. Replies are matched to requests
// by identifier, mnemonic and period.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/seenimoa/finsheet/internal/provider"
	"github.com/seenimoa/finsheet/pkg/models"
)

const providerName = "replay"

// Provider implements provider.Provider over a fixed set of replies.
type Provider struct {
	provider.BaseProvider

	mu    sync.RWMutex
	index map[models.ReplyKey][]models.RawReplyRow
	total int
}

// New creates a replay provider holding rows.
func New(rows []models.RawReplyRow) *Provider {
	p := &Provider{
		BaseProvider: provider.NewBaseProviderWithOpts(provider.ProviderInfo{
			Name:        providerName,
			Description: "Recorded replies replayed offline",
			Functions:   []models.Function{models.FunctionPoint, models.FunctionHistory},
		}, 0, 0, 0),
	}
	p.Load(rows)
	return p
}

// Load replaces the held replies.
func (p *Provider) Load(rows []models.RawReplyRow) {
	idx := make(map[models.ReplyKey][]models.RawReplyRow, len(rows))
	for _, r := range rows {
		k := r.Key()
		idx[k] = append(idx[k], r)
	}
	p.mu.Lock()
	p.index = idx
	p.total = len(rows)
	p.mu.Unlock()
}

// Len returns the number of held replies.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.total
}

// SendBatch returns the recorded replies for each request. Requests with no
// recording get no reply, which downstream treats as missing data.
func (p *Provider) SendBatch(ctx context.Context, reqs []models.AtomicRequest) ([]models.RawReplyRow, error) {
	if err := provider.ValidateBatch(reqs); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &provider.TransportError{Provider: providerName, Err: err}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []models.RawReplyRow
	seen := make(map[models.ReplyKey]bool)
	for _, r := range reqs {
		k := r.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p.index[k]...)
	}
	return out, nil
}

// Decode reads a JSON array of replies, or an object with a
// "GDSSDKResponse" array as returned by the client service.
func Decode(r io.Reader) ([]models.RawReplyRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read replies: %w", err)
	}
	var rows []models.RawReplyRow
	if err := json.Unmarshal(data, &rows); err == nil {
		return rows, nil
	}
	var env struct {
		GDSSDKResponse []models.RawReplyRow `json:"GDSSDKResponse"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse replies: %w", err)
	}
	return env.GDSSDKResponse, nil
}

// LoadFile creates a replay provider from a JSON file.
func LoadFile(path string) (*Provider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return New(rows), nil
}

// WriteFile stores replies as a JSON array readable by LoadFile.
func WriteFile(path string, rows []models.RawReplyRow) error {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
