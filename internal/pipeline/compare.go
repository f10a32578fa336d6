package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/finsheet/internal/analysis/fundamental"
	"github.com/seenimoa/finsheet/internal/analysis/trend"
	"github.com/seenimoa/finsheet/pkg/models"
)

// CompareResult holds both single-entity runs and their merged dataset.
type CompareResult struct {
	A       *Result                  `json:"a"`
	B       *Result                  `json:"b"`
	Dataset *models.FinancialDataset `json:"dataset"`
	// Trends is keyed by the suffixed column name, e.g. "Revenue_AAPL".
	Trends map[string]models.TrendResult `json:"trends,omitempty"`
}

// Compare runs a and b concurrently, then outer-joins their datasets on
// year with entity-suffixed columns. Ratios and moving averages are computed
// per entity before the merge, so they never pair values across entities.
// Either run failing fails the comparison.
func (p *Pipeline) Compare(ctx context.Context, a, b Options) (*CompareResult, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if a.normalized().Identifier == b.normalized().Identifier {
		return nil, fmt.Errorf("%w: cannot compare %s with itself", ErrInvalidOptions, a.normalized().Identifier)
	}

	var resA, resB *Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := p.Run(gctx, a)
		if err != nil {
			return fmt.Errorf("%s: %w", a.normalized().Identifier, err)
		}
		resA = r
		return nil
	})
	g.Go(func() error {
		r, err := p.Run(gctx, b)
		if err != nil {
			return fmt.Errorf("%s: %w", b.normalized().Identifier, err)
		}
		resB = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return p.merge(resA, resB, a.normalized())
}

// CompareResults merges two finished runs, e.g. runs replayed from the
// store.
func (p *Pipeline) CompareResults(a, b *Result, opts Options) (*CompareResult, error) {
	return p.merge(a, b, opts.normalized())
}

func (p *Pipeline) merge(a, b *Result, opts Options) (*CompareResult, error) {
	merged, err := fundamental.MergeComparison(a.Dataset, b.Dataset, a.Ticker, b.Ticker)
	if err != nil {
		return nil, err
	}
	out := &CompareResult{A: a, B: b, Dataset: merged}
	if opts.EnableTrend {
		var cols []string
		for i, r := range []*Result{a, b} {
			for _, c := range trendMetrics(r.Dataset, opts) {
				cols = append(cols, fundamental.EntityColumn(c, merged.Entities[i]))
			}
		}
		out.Trends = trend.AnalyzeDataset(merged, cols, opts.TrendWindow)
	}
	p.log.Info("comparison merged",
		zap.String("a", a.Ticker),
		zap.String("b", b.Ticker),
		zap.Int("years", len(merged.Rows)),
		zap.Int("columns", len(merged.Columns)))
	return out, nil
}
