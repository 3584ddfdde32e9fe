package scrape

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/channelscout/channelscout/internal/metrics"
)

// PipelineConfig controls Pipeline behavior.
type PipelineConfig struct {
	// Limit bounds one discovery page. Defaults to 10.
	Limit int
	// Concurrency bounds parallel detail lookups. <= 1 means sequential.
	Concurrency int
	// Topic names the run-summary destination; empty disables publishing.
	Topic string
}

// Pipeline composes discovery, enrichment, admission, and persistence for one
// keyword invocation.
type Pipeline struct {
	discoverer Discoverer
	enricher   Enricher
	policy     AdmissionPolicy
	store      ChannelStore
	publisher  Publisher
	clock      Clock
	idGen      IDGenerator
	cfg        PipelineConfig
	logger     *zap.Logger
}

// NewPipeline constructs a Pipeline. publisher may be nil to disable run
// events; policy defaults to MinSubscribersPolicy at DefaultMinSubscribers.
func NewPipeline(
	discoverer Discoverer,
	enricher Enricher,
	policy AdmissionPolicy,
	store ChannelStore,
	publisher Publisher,
	clock Clock,
	idGen IDGenerator,
	cfg PipelineConfig,
	logger *zap.Logger,
) *Pipeline {
	if policy == nil {
		policy = MinSubscribersPolicy{Min: DefaultMinSubscribers}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Pipeline{
		discoverer: discoverer,
		enricher:   enricher,
		policy:     policy,
		store:      store,
		publisher:  publisher,
		clock:      clock,
		idGen:      idGen,
		cfg:        cfg,
		logger:     logger,
	}
}

// enrichment is one candidate's detail-lookup outcome, kept in discovery
// order so downstream writes stay deterministic.
type enrichment struct {
	id      ChannelID
	channel Channel
	found   bool
	err     error
	fetched bool
}

// Run executes one discovery -> enrich -> admit -> upsert pass for keyword.
//
// A discovery failure aborts the run; a per-candidate detail failure is
// collected in the result and the run continues. Cancellation is honored
// between candidates and yields the partial result without an error. On a
// storage failure the result accumulated so far is returned alongside the
// error.
func (p *Pipeline) Run(ctx context.Context, keyword string) (RunResult, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return RunResult{}, &ValidationError{Field: "keyword", Reason: "must not be empty"}
	}

	res := RunResult{Keyword: keyword, StartedAt: p.clock.Now()}
	if p.idGen != nil {
		id, err := p.idGen.NewID()
		if err != nil {
			p.logger.Warn("run id generation failed", zap.Error(err))
		}
		res.RunID = id
	}

	if err := p.store.EnsureSchema(ctx); err != nil {
		metrics.ObserveRun("schema_failed")
		return res, err
	}

	ids, err := p.discoverer.Search(ctx, keyword, p.cfg.Limit)
	if err != nil {
		p.logger.Error("discovery failed",
			zap.String("run_id", res.RunID),
			zap.String("keyword", keyword),
			zap.Error(err),
		)
		metrics.ObserveRun("discovery_failed")
		return res, err
	}
	res.Discovered = len(ids)
	metrics.AddDiscovered(len(ids))

	if p.cfg.Concurrency <= 1 {
		for _, id := range ids {
			// Cancellation checkpoint between candidates: stop with the
			// partial result, no error.
			if ctx.Err() != nil {
				break
			}
			stop, err := p.admitAndWrite(ctx, p.enrichOne(ctx, id), &res)
			if err != nil {
				return res, err
			}
			if stop {
				break
			}
		}
	} else {
		for _, e := range p.enrichConcurrent(ctx, ids) {
			if ctx.Err() != nil || !e.fetched {
				break
			}
			stop, err := p.admitAndWrite(ctx, e, &res)
			if err != nil {
				return res, err
			}
			if stop {
				break
			}
		}
	}

	res.FinishedAt = p.clock.Now()
	metrics.ObserveRun("completed")
	p.logger.Info("run completed",
		zap.String("run_id", res.RunID),
		zap.String("keyword", keyword),
		zap.Int("discovered", res.Discovered),
		zap.Int("written", len(res.Written)),
		zap.Int("failed", len(res.Failures)),
	)
	p.publishSummary(ctx, res)
	return res, nil
}

// ListRecent exposes the store's recent-channels read path to callers that
// hold only the pipeline.
func (p *Pipeline) ListRecent(ctx context.Context, limit int) ([]Channel, error) {
	return p.store.ListRecent(ctx, limit)
}

// admitAndWrite applies the admission filter to one enrichment outcome and
// upserts on admit. It returns stop=true when the run should end early
// (cancellation surfaced through the lookup), and a non-nil error only for
// storage failures.
func (p *Pipeline) admitAndWrite(ctx context.Context, e enrichment, res *RunResult) (bool, error) {
	if e.err != nil {
		if errors.Is(e.err, context.Canceled) || errors.Is(e.err, context.DeadlineExceeded) {
			return true, nil
		}
		p.logger.Warn("detail lookup failed",
			zap.String("run_id", res.RunID),
			zap.String("channel_id", string(e.id)),
			zap.Error(e.err),
		)
		metrics.ObserveDetailFailure()
		res.Failures = append(res.Failures, CandidateFailure{ID: e.id, Error: e.err.Error()})
		return false, nil
	}
	if !e.found {
		p.logger.Debug("channel gone upstream", zap.String("channel_id", string(e.id)))
		return false, nil
	}
	if !p.policy.Admit(e.channel) {
		metrics.ObserveAdmission(false)
		return false, nil
	}
	metrics.ObserveAdmission(true)
	if err := p.store.Upsert(ctx, e.channel); err != nil {
		metrics.ObserveRun("storage_failed")
		return false, err
	}
	metrics.ObserveUpsert()
	res.Written = append(res.Written, e.channel)
	return false, nil
}

// enrichConcurrent resolves details for every candidate under a bounded
// errgroup; results land in their discovery-order slot so downstream writes
// stay deterministic.
func (p *Pipeline) enrichConcurrent(ctx context.Context, ids []ChannelID) []enrichment {
	out := make([]enrichment, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, id := range ids {
		i, id := i, id // per-iteration copies; required while go.mod targets go < 1.22
		g.Go(func() error {
			out[i] = p.enrichOne(gctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (p *Pipeline) enrichOne(ctx context.Context, id ChannelID) enrichment {
	ch, found, err := p.enricher.Details(ctx, id)
	return enrichment{id: id, channel: ch, found: found, err: err, fetched: true}
}

func (p *Pipeline) publishSummary(ctx context.Context, res RunResult) {
	if p.publisher == nil || p.cfg.Topic == "" {
		return
	}
	// Publish even when the run context was canceled mid-run.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	payload := map[string]any{
		"run_id":     res.RunID,
		"keyword":    res.Keyword,
		"discovered": res.Discovered,
		"written":    len(res.Written),
		"failed":     len(res.Failures),
		"timestamp":  res.FinishedAt.Format(time.RFC3339),
	}
	if _, err := p.publisher.Publish(pubCtx, p.cfg.Topic, payload); err != nil {
		p.logger.Warn("run summary publish failed", zap.String("run_id", res.RunID), zap.Error(err))
	}
}
