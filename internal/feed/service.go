package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"finitefield.org/sheetboard/internal/sheet"
)

// ErrUnknownFeed is returned for feed names missing from the registry.
var ErrUnknownFeed = errors.New("feed: unknown feed")

// Kind selects the built-in layout and policy of a feed.
type Kind string

const (
	KindNotice   Kind = "notice"
	KindMaterial Kind = "material"
)

// Definition describes one published sheet.
type Definition struct {
	Name      string
	Title     string
	Kind      Kind
	URL       string
	MediaBase string
	Layout    Layout
	Policy    Policy
	// Archive lists scheduled and expired records too, with their status.
	Archive bool
	Gate    *Gate
}

// Snapshot is the result of one load. It is shared between concurrent
// callers and must be treated as read-only.
type Snapshot struct {
	Feed       Definition
	Records    []Record
	GateActive bool
	Today      Day
	LoadedAt   time.Time
}

// List returns the records to display, in order.
func (s Snapshot) List() []Record {
	if s.Feed.Archive {
		return s.Feed.Policy.Archive(s.Records, s.Today)
	}
	return s.Feed.Policy.List(s.Records, s.Today)
}

// Featured returns the record for the "latest" slot.
func (s Snapshot) Featured() (Record, bool) {
	return s.Feed.Policy.Featured(s.Records, s.Today)
}

// Status classifies r with the feed's policy.
func (s Snapshot) Status(r Record) Status {
	return s.Feed.Policy.Status(r, s.Today)
}

// ProgressIndicator is told when a load starts and ends.
type ProgressIndicator interface {
	Show()
	Hide()
}

// Service loads feeds. Concurrent loads of the same feed share one fetch, so a
// slow response can never overwrite a newer one. Nothing is cached between
// loads.
type Service struct {
	fetcher   Fetcher
	indicator ProgressIndicator
	logger    *zap.Logger
	now       func() time.Time
	loc       *time.Location
	group     singleflight.Group

	meter    metric.Meter
	loads    metric.Int64Counter
	duration metric.Float64Histogram
}

const metricNamespace = "finitefield.org/sheetboard/internal/feed"

// Option customises a Service.
type Option func(*Service)

// WithIndicator reports load activity to ind. A nil indicator is ignored.
func WithIndicator(ind ProgressIndicator) Option {
	return func(s *Service) { s.indicator = ind }
}

// WithLogger sets the logger used for load failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMeter records load metrics on meter instead of the global provider.
func WithMeter(meter metric.Meter) Option {
	return func(s *Service) {
		if meter != nil {
			s.meter = meter
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone "today" is computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewService builds a Service around fetcher.
func NewService(fetcher Fetcher, opts ...Option) *Service {
	s := &Service{
		fetcher: fetcher,
		logger:  zap.NewNop(),
		now:     time.Now,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.meter == nil {
		s.meter = otel.GetMeterProvider().Meter(metricNamespace)
	}
	s.registerMetrics()
	return s
}

func (s *Service) registerMetrics() {
	loads, err := s.meter.Int64Counter(
		"feed.loads",
		metric.WithDescription("Count of sheet loads by outcome"),
	)
	if err != nil {
		s.logger.Warn("feed: unable to register load counter", zap.Error(err))
	} else {
		s.loads = loads
	}
	duration, err := s.meter.Float64Histogram(
		"feed.load.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds for sheet fetch and mapping"),
	)
	if err != nil {
		s.logger.Warn("feed: unable to register load duration metric", zap.Error(err))
	} else {
		s.duration = duration
	}
}

func (s *Service) recordLoad(ctx context.Context, def Definition, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("feed", def.Name),
		attribute.String("outcome", outcome),
	)
	if s.loads != nil {
		s.loads.Add(ctx, 1, attrs)
	}
	if s.duration != nil {
		s.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	}
}

// Today returns the current calendar day in the service's zone.
func (s *Service) Today() Day {
	return DayOf(s.now(), s.loc)
}

// Load fetches and maps def. Callers waiting on the same feed receive the
// same snapshot; a cancelled caller stops waiting without aborting the fetch
// for the others.
func (s *Service) Load(ctx context.Context, def Definition) (Snapshot, error) {
	ch := s.group.DoChan(def.Name, func() (any, error) {
		return s.load(context.WithoutCancel(ctx), def)
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}

func (s *Service) load(ctx context.Context, def Definition) (Snapshot, error) {
	if s.indicator != nil {
		s.indicator.Show()
		defer s.indicator.Hide()
	}
	start := s.now()
	text, err := s.fetcher.Fetch(ctx, def.URL)
	if err != nil {
		s.recordLoad(ctx, def, s.now().Sub(start), err)
		s.logger.Error("feed load failed",
			zap.String("feed", def.Name),
			zap.Error(err),
		)
		return Snapshot{}, fmt.Errorf("feed %s: %w", def.Name, err)
	}

	rows := sheet.Parse(text)
	snap := Snapshot{
		Feed:     def,
		Records:  def.Layout.MapRows(rows),
		Today:    DayOf(start, s.loc),
		LoadedAt: start,
	}
	if def.Gate != nil {
		snap.GateActive = def.Gate.Active(rows)
	}
	elapsed := s.now().Sub(start)
	s.recordLoad(ctx, def, elapsed, nil)
	s.logger.Debug("feed loaded",
		zap.String("feed", def.Name),
		zap.Int("records", len(snap.Records)),
		zap.Bool("gate", snap.GateActive),
		zap.Duration("elapsed", elapsed),
	)
	return snap, nil
}

// Registry holds feed definitions in declaration order.
type Registry struct {
	order []string
	defs  map[string]Definition
}

// NewRegistry indexes defs by name. Later duplicates replace earlier ones.
func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{defs: map[string]Definition{}}
	for _, d := range defs {
		if _, dup := r.defs[d.Name]; !dup {
			r.order = append(r.order, d.Name)
		}
		r.defs[d.Name] = d
	}
	return r
}

// Lookup returns the named definition or ErrUnknownFeed.
func (r *Registry) Lookup(name string) (Definition, error) {
	if r != nil {
		if d, ok := r.defs[name]; ok {
			return d, nil
		}
	}
	return Definition{}, fmt.Errorf("%w: %q", ErrUnknownFeed, name)
}

// All returns every definition in declaration order.
func (r *Registry) All() []Definition {
	if r == nil {
		return nil
	}
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

// FirstOfKind returns the first definition of kind k.
func (r *Registry) FirstOfKind(k Kind) (Definition, bool) {
	for _, d := range r.All() {
		if d.Kind == k {
			return d, true
		}
	}
	return Definition{}, false
}

// ForKind returns the built-in layout and policy of k.
func ForKind(k Kind) (Layout, Policy, bool) {
	switch k {
	case KindNotice:
		return NoticeLayout, NoticePolicy, true
	case KindMaterial:
		return MaterialLayout, MaterialPolicy, true
	}
	return Layout{}, Policy{}, false
}
