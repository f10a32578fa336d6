// Package provider defines the transport abstraction for financial-data
// backends. A Provider accepts batches of atomic requests and returns one
// reply row per request; a Registry routes calls to a named provider.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/seenimoa/finsheet/pkg/models"
)

// BatchSize is the maximum number of requests sent in one call.
const BatchSize = 100

// ProviderCredential describes a required credential for a provider.
type ProviderCredential struct {
	Name        string `json:"name"`        // e.g., "username"
	Description string `json:"description"` // e.g., "CIQ API username"
	Required    bool   `json:"required"`
	EnvVar      string `json:"env_var"` // environment variable name, e.g., "CIQ_USER"
}

// ProviderInfo holds metadata about a registered provider.
type ProviderInfo struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Website     string               `json:"website"`
	Credentials []ProviderCredential `json:"credentials"`
	Functions   []models.Function    `json:"functions"`
}

// Transport sends one batch of requests. Replies may come back in any
// order; callers correlate them by ReplyKey.
type Transport interface {
	SendBatch(ctx context.Context, reqs []models.AtomicRequest) ([]models.RawReplyRow, error)
}

// Provider is a named, credentialed Transport.
type Provider interface {
	Transport

	// Info returns metadata about this provider.
	Info() ProviderInfo

	// Init stores credentials. Returns *ErrInvalidCredentials if a required
	// credential is missing.
	Init(credentials map[string]string) error

	// Ping verifies connectivity and credentials.
	Ping(ctx context.Context) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, reqs []models.AtomicRequest) ([]models.RawReplyRow, error)

func (f TransportFunc) SendBatch(ctx context.Context, reqs []models.AtomicRequest) ([]models.RawReplyRow, error) {
	return f(ctx, reqs)
}

// ErrProviderNotFound is returned when a requested provider is not registered.
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return fmt.Sprintf("provider %q not found", e.Name)
}

// ErrInvalidCredentials is returned when provider credentials are missing
// or rejected. It is a configuration error: the run stops before any batch.
type ErrInvalidCredentials struct {
	Provider string
	Detail   string
}

func (e *ErrInvalidCredentials) Error() string {
	return fmt.Sprintf("invalid credentials for provider %q: %s", e.Provider, e.Detail)
}

// TransportError wraps a failed batch call. Status is the HTTP status when
// one was received, otherwise 0.
type TransportError struct {
	Provider string
	Batch    int
	Status   int
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %q batch %d: status %d: %v", e.Provider, e.Batch, e.Status, e.Err)
	}
	return fmt.Sprintf("provider %q batch %d: %v", e.Provider, e.Batch, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrMissingParam is returned when an atomic request lacks a required field.
type ErrMissingParam struct {
	Param string
	Index int
}

func (e *ErrMissingParam) Error() string {
	return fmt.Sprintf("request %d: missing required field %q", e.Index, e.Param)
}

// ErrBatchTooLarge is returned when a batch exceeds BatchSize.
var ErrBatchTooLarge = errors.New("batch exceeds maximum size")

// IsConfigError reports whether err stems from missing or rejected
// credentials.
func IsConfigError(err error) bool {
	var e *ErrInvalidCredentials
	return errors.As(err, &e)
}

// IsTransportError reports whether err stems from a failed batch call.
func IsTransportError(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

// ValidateBatch checks batch size and that every request names an
// identifier, mnemonic and function.
func ValidateBatch(reqs []models.AtomicRequest) error {
	if len(reqs) > BatchSize {
		return fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(reqs), BatchSize)
	}
	for i, r := range reqs {
		switch {
		case r.Identifier == "":
			return &ErrMissingParam{Param: "identifier", Index: i}
		case r.Mnemonic == "":
			return &ErrMissingParam{Param: "mnemonic", Index: i}
		case r.Function == "":
			return &ErrMissingParam{Param: "function", Index: i}
		}
	}
	return nil
}

// Batches splits reqs into consecutive chunks of at most size requests.
func Batches(reqs []models.AtomicRequest, size int) [][]models.AtomicRequest {
	if size <= 0 || size > BatchSize {
		size = BatchSize
	}
	var out [][]models.AtomicRequest
	for start := 0; start < len(reqs); start += size {
		end := start + size
		if end > len(reqs) {
			end = len(reqs)
		}
		out = append(out, reqs[start:end])
	}
	return out
}
