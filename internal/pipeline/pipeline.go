// Package pipeline runs the full normalization chain for one entity:
// plan requests, send them in batches, flatten and assemble the replies,
// then derive ratios, moving averages and trend statistics.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/seenimoa/finsheet/internal/analysis/fundamental"
	"github.com/seenimoa/finsheet/internal/analysis/trend"
	"github.com/seenimoa/finsheet/internal/logger"
	"github.com/seenimoa/finsheet/internal/normalize"
	"github.com/seenimoa/finsheet/internal/provider"
	"github.com/seenimoa/finsheet/internal/store"
	"github.com/seenimoa/finsheet/internal/trace"
	"github.com/seenimoa/finsheet/pkg/models"
)

// Recorder archives a finished run.
type Recorder interface {
	SaveRun(ctx context.Context, run store.Run, replies []models.RawReplyRow, ds *models.FinancialDataset) error
}

// Stats summarises the transport and assembly of one run.
type Stats struct {
	Requests int                     `json:"requests"`
	Batches  int                     `json:"batches"`
	Replies  int                     `json:"replies"`
	Assembly normalize.AssembleStats `json:"assembly"`
}

// Result is the output of one run. Dataset carries the assembled metrics
// plus any ratio and moving-average columns.
type Result struct {
	RunID      string                        `json:"run_id"`
	Ticker     string                        `json:"ticker"`
	Years      int                           `json:"years"`
	AnchorYear int                           `json:"anchor_year"`
	Outcome    models.Outcome                `json:"outcome"`
	Dataset    *models.FinancialDataset      `json:"dataset"`
	Trends     map[string]models.TrendResult `json:"trends,omitempty"`
	Stats      Stats                         `json:"stats"`
	Replies    []models.RawReplyRow          `json:"-"`
}

// Pipeline wires a transport to the normalization stages. It holds no
// per-run state and is safe for concurrent use.
type Pipeline struct {
	transport    provider.Transport
	providerName string
	log          *zap.Logger
	now          func() time.Time
	recorder     Recorder
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithClock sets the clock used to pick the anchor year.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithRecorder archives every successful run.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithProviderName labels runs and errors with the transport's name.
func WithProviderName(name string) Option {
	return func(p *Pipeline) { p.providerName = name }
}

// New creates a pipeline over t.
func New(t provider.Transport, opts ...Option) *Pipeline {
	p := &Pipeline{
		transport:    t,
		providerName: "default",
		log:          logger.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan returns the requests a run with opts would send.
func (p *Pipeline) Plan(opts Options) ([]models.AtomicRequest, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.normalized()
	return normalize.PlanRequests(opts.Identifier, opts.Years, p.anchorYear(opts)), nil
}

// Run executes the whole chain for one entity. Configuration and transport
// errors abort the run with no partial result; decoding gaps only shrink the
// dataset.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.normalized()
	anchor := p.anchorYear(opts)
	runID := uuid.NewString()

	ctx, span := trace.StartSpan(ctx, "pipeline.run",
		attribute.String("ticker", opts.Identifier),
		attribute.Int("years", opts.Years),
		attribute.String("run_id", runID))
	log := logger.WithTrace(ctx, p.log.With(zap.String("run_id", runID), zap.String("ticker", opts.Identifier)))
	var runErr error
	defer func() { trace.End(span, runErr) }()

	reqs := normalize.PlanRequests(opts.Identifier, opts.Years, anchor)
	log.Debug("planned requests", zap.Int("requests", len(reqs)), zap.Int("anchor_year", anchor))

	replies, batches, err := p.fetch(ctx, log, reqs, opts.BatchSize)
	if err != nil {
		runErr = err
		log.Error("run failed", zap.Error(err))
		return nil, err
	}

	res := p.normalize(ctx, log, replies, opts, anchor)
	res.RunID = runID
	res.Stats.Requests = len(reqs)
	res.Stats.Batches = batches

	log.Info("run complete",
		zap.String("outcome", string(res.Outcome)),
		zap.Int("replies", len(replies)),
		zap.Int("values", res.Stats.Assembly.Written),
		zap.Int("unresolved", res.Stats.Assembly.Unresolved),
		zap.Int("unextracted", res.Stats.Assembly.Unextracted))

	p.record(ctx, log, res)
	return res, nil
}

// Normalize runs the stages after transport over already-received replies,
// for example replies loaded from the store.
func (p *Pipeline) Normalize(ctx context.Context, replies []models.RawReplyRow, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.normalized()
	anchor := p.anchorYear(opts)
	runID := uuid.NewString()
	log := p.log.With(zap.String("run_id", runID), zap.String("ticker", opts.Identifier))

	res := p.normalize(ctx, log, replies, opts, anchor)
	res.RunID = runID
	return res, nil
}

// fetch sends reqs in sequential batches. The first failing batch aborts
// the run.
func (p *Pipeline) fetch(ctx context.Context, log *zap.Logger, reqs []models.AtomicRequest, size int) ([]models.RawReplyRow, int, error) {
	batches := provider.Batches(reqs, size)
	var replies []models.RawReplyRow
	for i, batch := range batches {
		bctx, span := trace.StartSpan(ctx, "transport.batch",
			attribute.Int("batch", i),
			attribute.Int("size", len(batch)))
		rows, err := p.transport.SendBatch(bctx, batch)
		if err != nil {
			err = p.wrapBatchError(i, err)
			trace.End(span, err)
			return nil, i + 1, err
		}
		trace.End(span, nil)
		log.Debug("batch received", zap.Int("batch", i), zap.Int("sent", len(batch)), zap.Int("replies", len(rows)))
		replies = append(replies, rows...)
	}
	return replies, len(batches), nil
}

func (p *Pipeline) wrapBatchError(batch int, err error) error {
	if provider.IsConfigError(err) {
		return err
	}
	var te *provider.TransportError
	if errors.As(err, &te) {
		cp := *te
		cp.Batch = batch
		return &cp
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &provider.TransportError{Provider: p.providerName, Batch: batch, Err: err}
	}
	return &provider.TransportError{Provider: p.providerName, Batch: batch, Err: fmt.Errorf("send batch: %w", err)}
}

func (p *Pipeline) normalize(ctx context.Context, log *zap.Logger, replies []models.RawReplyRow, opts Options, anchor int) *Result {
	_, span := trace.StartSpan(ctx, "pipeline.normalize", attribute.Int("replies", len(replies)))
	defer trace.End(span, nil)

	records := normalize.Flatten(replies)
	base, astats := normalize.Assemble(records, normalize.AssembleOptions{
		Identifier:   opts.Identifier,
		Years:        opts.Years,
		ForwardYears: opts.ForwardYears,
		CurrentYear:  anchor,
	})
	log.Debug("assembled",
		zap.Int("records", astats.Records),
		zap.Int("unmapped", astats.Unmapped),
		zap.Int("unresolved", astats.Unresolved),
		zap.Int("out_of_window", astats.OutOfWindow),
		zap.Int("unextracted", astats.Unextracted),
		zap.Int("overwritten", astats.Overwritten),
		zap.Any("period_rules", astats.PeriodRules))

	res := &Result{
		Ticker:     opts.Identifier,
		Years:      opts.Years,
		AnchorYear: anchor,
		Outcome:    base.OutcomeThrough(normalize.CoreMetricNames(), anchor),
		Replies:    replies,
		Stats:      Stats{Replies: len(replies), Assembly: astats},
	}

	ds := base
	if opts.EnableRatios {
		ds = fundamental.ComputeRatios(ds)
	}
	if len(opts.MAWindows) > 0 {
		ds = trend.AddMovingAverages(ds, movingAverageMetrics(opts), opts.MAWindows)
	}
	if opts.EnableTrend {
		res.Trends = trend.AnalyzeDataset(ds, trendMetrics(ds, opts), opts.TrendWindow)
	}
	res.Dataset = ds
	return res
}

func (p *Pipeline) record(ctx context.Context, log *zap.Logger, res *Result) {
	if p.recorder == nil {
		return
	}
	run := store.Run{
		ID:         res.RunID,
		Ticker:     res.Ticker,
		Years:      res.Years,
		AnchorYear: res.AnchorYear,
		Provider:   p.providerName,
		Outcome:    res.Outcome,
		Requests:   res.Stats.Requests,
	}
	if err := p.recorder.SaveRun(ctx, run, res.Replies, res.Dataset); err != nil {
		log.Warn("failed to archive run", zap.Error(err))
	}
}

func (p *Pipeline) anchorYear(opts Options) int {
	if opts.AnchorYear > 0 {
		return opts.AnchorYear
	}
	return p.now().Year()
}

// movingAverageMetrics defaults to the statement metrics.
func movingAverageMetrics(opts Options) []string {
	if len(opts.Metrics) > 0 {
		return opts.Metrics
	}
	return normalize.CoreMetricNames()
}

// trendMetrics defaults to every metric and ratio column of ds, skipping
// derived moving averages.
func trendMetrics(ds *models.FinancialDataset, opts Options) []string {
	if len(opts.Metrics) > 0 {
		return opts.Metrics
	}
	var out []string
	for _, c := range ds.Columns {
		if trend.IsMovingAverageColumn(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}
