package models

import (
	"fmt"
	"strings"
)

// Function is the upstream call type of an atomic request.
type Function string

const (
	// FunctionPoint fetches a single data point for one period.
	FunctionPoint Function = "GDSP"
	// FunctionHistory fetches a multi-period history.
	FunctionHistory Function = "GDSHE"
)

// RequestProperties carries the optional period settings of a request.
type RequestProperties struct {
	PeriodType      string `json:"periodType,omitempty"`
	NumberOfPeriods int    `json:"numberOfPeriods,omitempty"`
}

// AtomicRequest is one (identifier, mnemonic, period) lookup sent upstream.
type AtomicRequest struct {
	Function   Function           `json:"function"`
	Identifier string             `json:"identifier"`
	Mnemonic   string             `json:"mnemonic"`
	Properties *RequestProperties `json:"properties,omitempty"`
}

// PeriodToken returns the period encoding of the request, or "".
func (r AtomicRequest) PeriodToken() string {
	if r.Properties == nil {
		return ""
	}
	return r.Properties.PeriodType
}

// Key returns the correlation key of the request.
func (r AtomicRequest) Key() ReplyKey {
	return NewReplyKey(r.Identifier, r.Mnemonic, r.PeriodToken())
}

// ReplyKey correlates replies with requests. Transports may answer in any
// order, so position is never used.
type ReplyKey struct {
	Identifier string
	Mnemonic   string
	Period     string
}

// NewReplyKey builds a case-insensitive key.
func NewReplyKey(identifier, mnemonic, period string) ReplyKey {
	return ReplyKey{
		Identifier: strings.ToUpper(strings.TrimSpace(identifier)),
		Mnemonic:   strings.ToUpper(strings.TrimSpace(mnemonic)),
		Period:     strings.ToUpper(strings.TrimSpace(period)),
	}
}

func (k ReplyKey) String() string {
	return k.Identifier + "|" + k.Mnemonic + "|" + k.Period
}

// ReplyValueRow is one nested value row of a reply.
type ReplyValueRow struct {
	Row []Cell `json:"Row"`
}

// RawReplyRow is one reply as returned by the upstream client service.
type RawReplyRow struct {
	Identifier string          `json:"Identifier"`
	Mnemonic   string          `json:"Mnemonic"`
	Function   string          `json:"Function,omitempty"`
	Properties map[string]any  `json:"Properties,omitempty"`
	Headers    []string        `json:"Headers"`
	Rows       []ReplyValueRow `json:"Rows"`
	ErrMsg     string          `json:"ErrMsg,omitempty"`
}

// PeriodToken returns the reply's period property. Upstream spells the key
// "periodtype" but echoes request casing in some replies.
func (r RawReplyRow) PeriodToken() string {
	for k, v := range r.Properties {
		if !strings.EqualFold(k, "periodtype") || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

// Key returns the correlation key of the reply.
func (r RawReplyRow) Key() ReplyKey {
	return NewReplyKey(r.Identifier, r.Mnemonic, r.PeriodToken())
}

// Metadata column names present on every flat record.
const (
	ColIdentifier = "Identifier"
	ColMnemonic   = "Mnemonic"
	ColPeriod     = "Period"
	ColValue      = "Value"
)

// IsMetadataColumn reports whether name is one of the identity columns.
func IsMetadataColumn(name string) bool {
	switch name {
	case ColIdentifier, ColMnemonic, ColPeriod:
		return true
	}
	return false
}

// Column is a named cell of a flat record.
type Column struct {
	Name string `json:"name"`
	Cell Cell   `json:"cell"`
}

// FlatRecord pairs one value row with its reply's headers. Columns keep the
// header order, which is the scan order used during extraction.
type FlatRecord struct {
	Identifier string   `json:"identifier"`
	Mnemonic   string   `json:"mnemonic"`
	Period     string   `json:"period"`
	Columns    []Column `json:"columns"`
}

// Get returns the first column with the given name.
func (f FlatRecord) Get(name string) (Cell, bool) {
	for _, c := range f.Columns {
		if c.Name == name {
			return c.Cell, true
		}
	}
	return Cell{}, false
}
