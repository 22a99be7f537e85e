package sweep

import (
	"context"
	"log"
	"time"

	"household-bot/internal/correlation"
	"household-bot/internal/mealplan"
	"household-bot/internal/metrics"
	"household-bot/internal/reminder"
)

const (
	startupDelay   = 10 * time.Second
	minuteInterval = time.Minute
	hourInterval   = time.Hour

	// Delivery metrics older than this are pruned by the hourly job.
	metricsRetentionDays = 30
)

// Jobs runs the three periodic reconciliation drivers. Everything executes
// on a single goroutine, so sweep bodies never overlap each other.
type Jobs struct {
	engine       *reminder.Engine
	plans        *mealplan.Manager
	correlations *correlation.Repository
	metrics      *metrics.Store
}

// New creates the sweep jobs. metrics may be nil.
func New(engine *reminder.Engine, plans *mealplan.Manager, correlations *correlation.Repository, m *metrics.Store) *Jobs {
	return &Jobs{
		engine:       engine,
		plans:        plans,
		correlations: correlations,
		metrics:      m,
	}
}

// Run drives the sweeps until ctx is cancelled: a one-time startup catch-up
// shortly after boot, then the minute and hourly jobs.
func (j *Jobs) Run(ctx context.Context) {
	startup := time.NewTimer(startupDelay)
	defer startup.Stop()
	minute := time.NewTicker(minuteInterval)
	defer minute.Stop()
	hourly := time.NewTicker(hourInterval)
	defer hourly.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-startup.C:
			j.Startup(ctx)
		case <-minute.C:
			j.Minute(ctx)
		case <-hourly.C:
			j.Hourly(ctx)
		}
	}
}

// Startup is the catch-up pass: reminders missed while the process was down
// (within a 24h lookback) go out flagged "missed", and recurring reminders
// advance past elapsed intervals. This is the only pass allowed to deliver
// during quiet hours.
func (j *Jobs) Startup(ctx context.Context) {
	log.Println("Sweep: startup catch-up")
	j.engine.CatchUp(ctx)
}

// Minute drives the regular state transitions: rotate past-date plans, drop
// correlations whose reminder is gone, then evaluate every reminder.
func (j *Jobs) Minute(ctx context.Context) {
	j.plans.RotatePastPlans(ctx)

	if n, err := j.correlations.DeleteOrphans(ctx); err != nil {
		log.Printf("Sweep: orphan correlation cleanup: %v", err)
	} else if n > 0 {
		log.Printf("Sweep: dropped %d orphaned correlation entries", n)
	}

	j.engine.EvaluateAll(ctx)
}

// Hourly is the cleanup pass: expire reminders whose cooking date has passed
// (triggering rotation) and one-shot reminders past retention, purge
// malformed correlation entries, prune old metrics. Running it twice in a
// row deletes nothing the second time.
func (j *Jobs) Hourly(ctx context.Context) {
	if removed := j.engine.ExpireStale(ctx); removed > 0 {
		log.Printf("Sweep: expired %d stale reminders", removed)
	}

	if n, err := j.correlations.PurgeMalformed(ctx); err != nil {
		log.Printf("Sweep: malformed correlation purge: %v", err)
	} else if n > 0 {
		log.Printf("Sweep: purged %d malformed correlation entries", n)
	}
	if n, err := j.correlations.DeleteOrphans(ctx); err != nil {
		log.Printf("Sweep: orphan correlation cleanup: %v", err)
	} else if n > 0 {
		log.Printf("Sweep: dropped %d orphaned correlation entries", n)
	}

	if j.metrics != nil {
		if _, err := j.metrics.Cleanup(metricsRetentionDays); err != nil {
			log.Printf("Sweep: metrics cleanup: %v", err)
		}
	}
}
