package syncengine

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/ordersync/internal/clock"
	"github.com/smallbiznis/ordersync/internal/config"
	obscontext "github.com/smallbiznis/ordersync/internal/observability/context"
	obslogger "github.com/smallbiznis/ordersync/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/ordersync/internal/observability/metrics"
	obstracing "github.com/smallbiznis/ordersync/internal/observability/tracing"
	operationaldomain "github.com/smallbiznis/ordersync/internal/operational/domain"
	warehousedomain "github.com/smallbiznis/ordersync/internal/warehouse/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// maxConcurrentResolvers equals the number of dimensions, so no resolver ever queues.
const maxConcurrentResolvers = 6

// Runner is the single entry point every trigger calls.
type Runner interface {
	RunFullSync(ctx context.Context) (Stats, error)
}

type Params struct {
	fx.In

	OLTP        *gorm.DB `name:"oltp"`
	OLAP        *gorm.DB `name:"olap"`
	Operational operationaldomain.Repository
	Warehouse   warehousedomain.Repository
	Rules       *config.SyncRulesHolder
	Config      config.Config
	Clock       clock.Clock
	Log         *zap.Logger
	Metrics     *obsmetrics.Metrics `optional:"true"`
}

type Orchestrator struct {
	resolvers       []Resolver
	facts           *FactReconciler
	rules           *config.SyncRulesHolder
	seed            uint64
	resolverTimeout time.Duration
	clock           clock.Clock
	log             *zap.Logger
	metrics         *obsmetrics.Metrics
	tracer          trace.Tracer
}

func New(p Params) *Orchestrator {
	s := stores{
		oltp:        p.OLTP,
		olap:        p.OLAP,
		operational: p.Operational,
		warehouse:   p.Warehouse,
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	rules := p.Rules
	if rules == nil {
		rules = config.NewStaticSyncRulesHolder(config.DefaultSyncRules())
	}

	return &Orchestrator{
		resolvers: []Resolver{
			&CustomerResolver{s},
			&RestaurantResolver{s},
			&DateResolver{s},
			&LocationResolver{s},
			&TimeSlotResolver{s},
			&DeliveryPersonResolver{s},
		},
		facts:           &FactReconciler{s},
		rules:           rules,
		seed:            p.Config.Sync.SynthesisSeed,
		resolverTimeout: p.Config.Sync.ResolverTimeout,
		clock:           clk,
		log:             log.Named("syncengine"),
		metrics:         p.Metrics,
		tracer:          otel.Tracer("ordersync/syncengine"),
	}
}

// RunFullSync resolves all dimensions in parallel, waits for every one of them, then
// reconciles facts. Stats are returned as far as the run got, also on failure.
func (o *Orchestrator) RunFullSync(ctx context.Context) (Stats, error) {
	ctx, runID := obscontext.EnsureRunID(ctx)
	ctx, span := o.tracer.Start(ctx, obstracing.SyncRunSpan, trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	rules := o.rules.Get()
	run := &Run{
		ID:    runID,
		Today: DateOnly(o.clock.Now()),
		Rules: rules,
		Synth: NewSynthesizer(o.seed, rules),
		Log:   obslogger.WithContext(ctx, o.log),
	}
	stats := NewStats()
	start := time.Now()
	run.Log.Info("sync.run.start", zap.Time("today", run.Today))

	ready, err := o.runDimensions(ctx, run, stats)
	if err != nil {
		o.fail(span, run, err, start)
		return stats, err
	}

	if err := o.runFacts(ctx, run, ready, stats); err != nil {
		o.fail(span, run, err, start)
		return stats, err
	}

	totals := stats.Totals()
	run.Log.Info("sync.run.finish",
		zap.Duration("duration", time.Since(start)),
		zap.Int("processed", totals.Processed),
		zap.Int("inserted", totals.Inserted),
		zap.Int("updated", totals.Updated),
		zap.Int("errors", totals.Errors),
		zap.Int("skipped", totals.Skipped),
	)
	return stats, nil
}

// runDimensions is the first phase. The barrier waits for every resolver even after a
// failure, and only a clean pass mints DimensionsReady.
func (o *Orchestrator) runDimensions(ctx context.Context, run *Run, stats Stats) (DimensionsReady, error) {
	results := make([]TableStats, len(o.resolvers))

	var g errgroup.Group
	g.SetLimit(maxConcurrentResolvers)
	for i, resolver := range o.resolvers {
		g.Go(func() error {
			tableStats, err := o.runResolver(ctx, run, resolver)
			results[i] = tableStats
			return err
		})
	}
	err := g.Wait()

	for i, resolver := range o.resolvers {
		stats.Merge(resolver.Table(), results[i])
	}
	if err != nil {
		return DimensionsReady{}, err
	}
	return DimensionsReady{runID: run.ID}, nil
}

func (o *Orchestrator) runResolver(ctx context.Context, run *Run, resolver Resolver) (stats TableStats, err error) {
	table := resolver.Table()
	ctx, span := o.tracer.Start(ctx, "sync.resolve", trace.WithAttributes(attribute.String("table", table)))
	defer span.End()

	if o.resolverTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.resolverTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			err = &ResolverError{Table: table, Err: err}
		}
		o.observe(ctx, run, span, table, stats, time.Since(start), err)
	}()

	return resolver.Resolve(ctx, run)
}

func (o *Orchestrator) runFacts(ctx context.Context, run *Run, ready DimensionsReady, stats Stats) error {
	ctx, span := o.tracer.Start(ctx, "sync.reconcile", trace.WithAttributes(attribute.String("table", o.facts.Table())))
	defer span.End()

	start := time.Now()
	result, err := o.facts.Reconcile(ctx, run, ready)
	stats.MergeAll(result)
	if err != nil {
		err = &ResolverError{Table: o.facts.Table(), Err: err}
	}
	o.observe(ctx, run, span, o.facts.Table(), result[o.facts.Table()], time.Since(start), err)
	return err
}

func (o *Orchestrator) observe(ctx context.Context, run *Run, span trace.Span, table string, stats TableStats, elapsed time.Duration, err error) {
	span.SetAttributes(
		attribute.Int("processed", stats.Processed),
		attribute.Int("inserted", stats.Inserted),
		attribute.Int("updated", stats.Updated),
		attribute.Int("errors", stats.Errors),
	)

	syncMetrics := obsmetrics.Sync()
	syncMetrics.ObserveTable(table, elapsed, stats.Inserted, stats.Updated, stats.Errors)
	o.metrics.RecordWarehouseRows(ctx, table, "inserted", stats.Inserted)
	o.metrics.RecordWarehouseRows(ctx, table, "updated", stats.Updated)

	log := obslogger.WithTable(run.Log, table)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolver failed")
		syncMetrics.IncTableFailure(table, err)
		log.Error("sync.resolver.failed",
			zap.Duration("duration", elapsed),
			zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
			zap.Error(err),
		)
		return
	}
	log.Info("sync.resolver.finish",
		zap.Duration("duration", elapsed),
		zap.Int("processed", stats.Processed),
		zap.Int("inserted", stats.Inserted),
		zap.Int("updated", stats.Updated),
		zap.Int("errors", stats.Errors),
		zap.Int("skipped", stats.Skipped),
	)
}

func (o *Orchestrator) fail(span trace.Span, run *Run, err error, start time.Time) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "sync failed")
	run.Log.Error("sync.run.failed",
		zap.String("table", FailedTable(err)),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
}
