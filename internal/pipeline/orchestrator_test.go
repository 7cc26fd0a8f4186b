package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/synthbet/arbpipeline/internal/correlation"
	"github.com/synthbet/arbpipeline/internal/detector"
	"github.com/synthbet/arbpipeline/internal/domain"
	"github.com/synthbet/arbpipeline/internal/feed"
	"github.com/synthbet/arbpipeline/internal/processor"
	"github.com/synthbet/arbpipeline/internal/report"
	"github.com/synthbet/arbpipeline/internal/validation"
)

// In-memory ports backing a full pipeline run.

type memTickStore struct {
	mu    sync.Mutex
	ticks []domain.ProcessedTick
}

func (s *memTickStore) Insert(_ context.Context, t domain.ProcessedTick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = append(s.ticks, t)
	return nil
}

func (s *memTickStore) InsertBatch(ctx context.Context, ticks []domain.ProcessedTick) error {
	for _, t := range ticks {
		if err := s.Insert(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (s *memTickStore) GetByHash(context.Context, string) (domain.ProcessedTick, error) {
	return domain.ProcessedTick{}, domain.ErrNotFound
}

func (s *memTickStore) ListByEvent(context.Context, string, domain.ListOpts) ([]domain.ProcessedTick, error) {
	return nil, nil
}

func (s *memTickStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.ticks)), nil
}

type memCache struct {
	mu sync.Mutex
	m  map[string]domain.ProcessedTick
}

func (c *memCache) PutProcessed(_ context.Context, t domain.ProcessedTick) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[string]domain.ProcessedTick)
	}
	if _, ok := c.m[t.TickHash]; ok {
		return false, nil
	}
	c.m[t.TickHash] = t
	return true, nil
}

func (c *memCache) GetProcessed(_ context.Context, hash string) (domain.ProcessedTick, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.m[hash]; ok {
		return t, nil
	}
	return domain.ProcessedTick{}, domain.ErrNotFound
}

type memLog struct{ mu sync.Mutex }

func (l *memLog) Append(context.Context, domain.ProcessedTick) error { return nil }
func (l *memLog) Close(context.Context) error                       { return nil }

type memProvider struct {
	store domain.TickStore
	cache domain.TickCache
}

func (p *memProvider) Acquire(context.Context, string) (*domain.ResourceBundle, error) {
	return &domain.ResourceBundle{
		Store:   p.store,
		Cache:   p.cache,
		Log:     &memLog{},
		Release: func(context.Context) error { return nil },
	}, nil
}

type memHistory struct{}

func (memHistory) Append(context.Context, string, domain.PricePoint) error { return nil }
func (memHistory) Window(context.Context, string, int) ([]domain.PricePoint, error) {
	return nil, nil
}

type memArbStore struct {
	mu       sync.Mutex
	inserted []domain.SyntheticArbitrage
	statuses map[string]domain.ArbStatus
}

func (s *memArbStore) Insert(_ context.Context, arb domain.SyntheticArbitrage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, arb)
	return nil
}

func (s *memArbStore) UpdateStatus(_ context.Context, id string, status domain.ArbStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statuses == nil {
		s.statuses = make(map[string]domain.ArbStatus)
	}
	s.statuses[id] = status
	return nil
}

func (s *memArbStore) GetByID(context.Context, string) (domain.SyntheticArbitrage, error) {
	return domain.SyntheticArbitrage{}, domain.ErrNotFound
}

func (s *memArbStore) ListByStatus(context.Context, domain.ArbStatus, domain.ListOpts) ([]domain.SyntheticArbitrage, error) {
	return nil, nil
}

func (s *memArbStore) ListRecent(context.Context, int) ([]domain.SyntheticArbitrage, error) {
	return nil, nil
}

type memValidationStore struct {
	mu      sync.Mutex
	results []domain.ValidationResult
}

func (s *memValidationStore) Insert(_ context.Context, r domain.ValidationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return nil
}

func (s *memValidationStore) ListByArb(context.Context, string) ([]domain.ValidationResult, error) {
	return nil, nil
}

func (s *memValidationStore) ListByScenario(context.Context, string) ([]domain.ValidationResult, error) {
	return nil, nil
}

func (s *memValidationStore) Latest(context.Context, string) (domain.ValidationResult, error) {
	return domain.ValidationResult{}, domain.ErrNotFound
}

type memAuditStore struct {
	mu     sync.Mutex
	events []string
}

func (s *memAuditStore) Log(_ context.Context, event string, _ map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *memAuditStore) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type memPublisher struct {
	mu        sync.Mutex
	published []domain.SyntheticArbitrage
	trails    [][]domain.ValidationResult
}

func (p *memPublisher) PublishApproved(_ context.Context, arb domain.SyntheticArbitrage, trail []domain.ValidationResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, arb)
	p.trails = append(p.trails, trail)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildOrchestrator(src feed.Source, arbs *memArbStore, vals *memValidationStore, audit *memAuditStore, pub *memPublisher) *Orchestrator {
	logger := discard()
	proc := processor.New(
		&memProvider{store: &memTickStore{}, cache: &memCache{}},
		nil,
		processor.Config{MaxConcurrency: 2, AcquireTimeout: time.Second, TickTimeout: time.Second},
		logger,
	)
	analyzer := correlation.New(memHistory{}, correlation.Config{
		MinCombinedScore: 0.55,
		MaxTimeDelta:     30 * time.Second,
		WindowPoints:     32,
		MinWindowPoints:  5,
	}, logger)
	det := detector.New(detector.Config{
		HedgeRatioFloor:  0.25,
		HedgeRatioCeil:   4.0,
		PositionTTL:      5 * time.Minute,
		ConfidenceWeight: 0.9,
	}, logger)
	engine := validation.NewEngine(validation.Config{
		AllowedExchanges: []string{"pinnacle", "draftkings"},
		AllowedMarkets:   []string{"moneyline", "spread", "total"},
		MaxKellyFraction: 0.25,
		MinExpectedValue: 0.01,
		MinConfidence:    0.3,
		MaxQuoteAge:      time.Minute,
	}, validation.RiskLimits{
		MaxVaR:                0.5,
		CriticalVaR:           0.9,
		MaxDrawdown:           0.5,
		CriticalDrawdown:      0.9,
		MaxConcentration:      0.95,
		CriticalConcentration: 0.99,
		HiddenCorrelationFlag: 0.5,
	}, nil, logger)

	return NewOrchestrator(
		src, proc, analyzer, det, engine, report.NewAggregator(),
		Stores{Arbs: arbs, Validations: vals, Audit: audit},
		pub,
		Config{BatchSize: 10, FlushInterval: 50 * time.Millisecond},
		logger,
	)
}

func TestOrchestratorEndToEnd(t *testing.T) {
	now := time.Now().UTC()
	ticks := []domain.OddsTick{
		{
			MarketID: "mkt-ml", EventID: "nba-lal-bos-20260314",
			Sport: domain.SportNBA, MarketType: domain.MarketMoneyline,
			Side: domain.SideHome, Price: -150, Exchange: "pinnacle",
			ObservedAt: now,
		},
		{
			MarketID: "mkt-total", EventID: "nba-lal-bos-20260314",
			Sport: domain.SportNBA, MarketType: domain.MarketTotal,
			Side: domain.SideOver, Price: 110, Exchange: "pinnacle",
			ObservedAt: now.Add(2 * time.Second),
		},
	}

	arbs := &memArbStore{}
	vals := &memValidationStore{}
	audit := &memAuditStore{}
	pub := &memPublisher{}
	o := buildOrchestrator(feed.NewSliceSource(ticks), arbs, vals, audit, pub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(arbs.inserted) != 1 {
		t.Fatalf("got %d positions, want 1", len(arbs.inserted))
	}
	arb := arbs.inserted[0]
	if arb.EventID != "nba-lal-bos-20260314" {
		t.Fatalf("event = %s", arb.EventID)
	}
	if arb.Status != domain.ArbStatusPending {
		t.Fatalf("inserted status = %s, want pending", arb.Status)
	}

	if len(vals.results) != 1 {
		t.Fatalf("got %d validation results, want 1", len(vals.results))
	}
	vr := vals.results[0]
	if !vr.Valid {
		t.Fatalf("position invalid: %+v", vr.Errors())
	}
	if got := arbs.statuses[arb.ID]; got != domain.ArbStatusValid {
		t.Fatalf("final status = %s, want valid", got)
	}

	if len(pub.published) != 1 {
		t.Fatalf("got %d published positions, want 1", len(pub.published))
	}
	if pub.published[0].Status != domain.ArbStatusValid {
		t.Fatalf("published status = %s, want valid", pub.published[0].Status)
	}
	if len(pub.trails[0]) != 1 || pub.trails[0][0].ID != vr.ID {
		t.Fatal("published trail does not carry the validation result")
	}

	wantEvents := map[string]bool{"batch_processed": false, "batch_validated": false}
	for _, ev := range audit.events {
		if _, ok := wantEvents[ev]; ok {
			wantEvents[ev] = true
		}
	}
	for ev, seen := range wantEvents {
		if !seen {
			t.Fatalf("audit event %s never recorded", ev)
		}
	}
}

func TestOrchestratorNoCandidatesBelowThreshold(t *testing.T) {
	now := time.Now().UTC()
	// The second tick arrives outside the timing window.
	ticks := []domain.OddsTick{
		{
			MarketID: "mkt-ml", EventID: "nba-lal-bos-20260314",
			Sport: domain.SportNBA, MarketType: domain.MarketMoneyline,
			Side: domain.SideHome, Price: -150, Exchange: "pinnacle",
			ObservedAt: now,
		},
		{
			MarketID: "mkt-total", EventID: "nba-lal-bos-20260314",
			Sport: domain.SportNBA, MarketType: domain.MarketTotal,
			Side: domain.SideOver, Price: 110, Exchange: "pinnacle",
			ObservedAt: now.Add(5 * time.Minute),
		},
	}

	arbs := &memArbStore{}
	vals := &memValidationStore{}
	audit := &memAuditStore{}
	pub := &memPublisher{}
	o := buildOrchestrator(feed.NewSliceSource(ticks), arbs, vals, audit, pub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(arbs.inserted) != 0 {
		t.Fatalf("got %d positions for uncorrelated ticks, want 0", len(arbs.inserted))
	}
	if len(pub.published) != 0 {
		t.Fatalf("published %d positions, want 0", len(pub.published))
	}
	// The batch itself still processed and audited.
	var processed bool
	for _, ev := range audit.events {
		if ev == "batch_processed" {
			processed = true
		}
	}
	if !processed {
		t.Fatal("batch_processed never audited")
	}
}
