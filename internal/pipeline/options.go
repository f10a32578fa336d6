package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/seenimoa/finsheet/internal/analysis/trend"
	"github.com/seenimoa/finsheet/internal/config"
	"github.com/seenimoa/finsheet/internal/provider"
)

// ErrInvalidOptions marks caller input the pipeline refuses to run.
var ErrInvalidOptions = errors.New("invalid options")

// Options controls one pipeline run.
type Options struct {
	Identifier   string `json:"identifier" validate:"required"`
	Years        int    `json:"years" validate:"min=1,max=30"`
	ForwardYears int    `json:"forward_years" validate:"min=0,max=10"`
	// AnchorYear fixes the current fiscal year; zero uses the clock.
	AnchorYear   int   `json:"anchor_year,omitempty" validate:"min=0"`
	EnableRatios bool  `json:"enable_ratios"`
	EnableTrend  bool  `json:"enable_trend"`
	MAWindows    []int `json:"ma_windows,omitempty" validate:"dive,min=1"`
	TrendWindow  int   `json:"trend_window" validate:"min=0"`
	BatchSize    int   `json:"batch_size" validate:"min=0,max=100"`
	// Metrics limits moving averages and trends to these columns.
	Metrics []string `json:"metrics,omitempty"`
}

// DefaultOptions returns options for identifier with the stock defaults.
func DefaultOptions(identifier string) Options {
	return Options{
		Identifier:   identifier,
		Years:        5,
		EnableRatios: true,
		EnableTrend:  true,
		MAWindows:    []int{3},
		TrendWindow:  trend.DefaultWindow,
		BatchSize:    provider.BatchSize,
	}
}

// OptionsFromConfig builds options for identifier from loaded config.
func OptionsFromConfig(cfg *config.Config, identifier string) Options {
	opts := DefaultOptions(identifier)
	if cfg == nil {
		return opts
	}
	opts.Years = cfg.Pipeline.Years
	opts.ForwardYears = cfg.Pipeline.ForwardYears
	opts.EnableRatios = cfg.Pipeline.EnableRatios
	opts.EnableTrend = cfg.Pipeline.EnableTrend
	opts.MAWindows = append([]int(nil), cfg.Pipeline.MAWindows...)
	opts.TrendWindow = cfg.Pipeline.TrendWindow
	opts.BatchSize = cfg.CIQ.BatchSize
	return opts
}

// normalized trims the identifier and fills zero values with defaults.
func (o Options) normalized() Options {
	o.Identifier = strings.ToUpper(strings.TrimSpace(o.Identifier))
	if o.TrendWindow == 0 {
		o.TrendWindow = trend.DefaultWindow
	}
	if o.BatchSize == 0 {
		o.BatchSize = provider.BatchSize
	}
	return o
}

// Validate checks the options.
func (o Options) Validate() error {
	if err := validator.New().Struct(o.normalized()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}

// ParseWindows parses a comma-separated list of moving-average windows.
// An empty string disables moving averages.
func ParseWindows(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: invalid moving-average window %q", ErrInvalidOptions, part)
		}
		out = append(out, n)
	}
	return out, nil
}
