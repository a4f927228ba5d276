package processor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pauljones0/epic-free-games-bot/internal/metrics"
	"github.com/pauljones0/epic-free-games-bot/internal/models"
)

// ErrRunInProgress is returned when a trigger fires while a run is active.
var ErrRunInProgress = errors.New("run already in progress")

// Job is what the HTTP and scheduled triggers invoke: one pipeline run
// followed by a notification when anything new was stored.
type Job struct {
	processor Processor
	notifier  PromotionNotifier
	metrics   *metrics.Registry
	now       func() time.Time

	mu sync.Mutex
}

func NewJob(p Processor, n PromotionNotifier, m *metrics.Registry) *Job {
	if m == nil {
		m = metrics.NewRegistry()
	}
	return &Job{
		processor: p,
		notifier:  n,
		metrics:   m,
		now:       time.Now,
	}
}

// Execute runs the pipeline and returns how many promotions were stored.
// Notification failures are logged and counted but do not fail the run;
// stored promotions are never rolled back. When the run fails part way, the
// promotions it did store are still announced before the error is returned,
// since the next run will see them as existing.
func (j *Job) Execute(ctx context.Context) (int, error) {
	if !j.mu.TryLock() {
		return 0, ErrRunInProgress
	}
	defer j.mu.Unlock()

	start := time.Now()
	defer func() { j.metrics.RunDurationSec.Observe(time.Since(start).Seconds()) }()

	promos, err := j.processor.Run(ctx, j.now())
	if err != nil {
		j.metrics.Runs.WithLabelValues(metrics.OutcomeFailure).Inc()
		if len(promos) > 0 {
			slog.Warn("Run failed after storing promotions", "stored", len(promos), "error", err)
			j.notify(context.WithoutCancel(ctx), promos)
		}
		return len(promos), err
	}
	j.metrics.Runs.WithLabelValues(metrics.OutcomeSuccess).Inc()
	slog.Info("Finished processing", "new", len(promos))

	j.notify(ctx, promos)
	return len(promos), nil
}

func (j *Job) notify(ctx context.Context, promos []models.Promotion) {
	if len(promos) == 0 || j.notifier == nil {
		return
	}
	if err := j.notifier.Send(ctx, promos); err != nil {
		j.metrics.NotificationFailures.Inc()
		slog.Error("Error sending notification", "error", err, "count", len(promos))
	}
}
