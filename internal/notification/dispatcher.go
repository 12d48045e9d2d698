package notification

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"resellerportal/internal/metrics"
	"resellerportal/internal/model"
	"resellerportal/internal/repository"

	"go.uber.org/zap"
)

// DispatcherConfig controls claiming and retry behaviour
type DispatcherConfig struct {
	BatchSize      int
	LockTimeout    time.Duration
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	JitterFraction float64
}

// Dispatcher drains the outbox. A failed delivery never touches the change
// that produced the notification; it is retried with backoff or dead-lettered.
type Dispatcher struct {
	repo    repository.NotificationRepository
	sender  Sender
	cfg     DispatcherConfig
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	jitter  func() float64
}

func NewDispatcher(repo repository.NotificationRepository, sender Sender, cfg DispatcherConfig, log *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 2 * time.Minute
	}
	if cfg.BaseRetryDelay <= 0 {
		cfg.BaseRetryDelay = 30 * time.Second
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = 30 * time.Minute
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	if cfg.JitterFraction > 1 {
		cfg.JitterFraction = 1
	}

	return &Dispatcher{
		repo:    repo,
		sender:  sender,
		cfg:     cfg,
		log:     log,
		metrics: m,
		now:     time.Now,
		jitter:  rand.Float64,
	}
}

// DispatchOnce recovers stale claims, then claims and delivers due rows until none are left.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	now := d.now()
	if recovered, err := d.repo.RecoverStale(ctx, now.Add(-d.cfg.LockTimeout)); err != nil {
		return 0, fmt.Errorf("recovering stale notifications: %w", err)
	} else if recovered > 0 {
		d.log.Warn("recovered stale notifications", zap.Int64("count", recovered))
	}

	processed := 0
	for {
		claimed, err := d.repo.ClaimDue(ctx, now, d.cfg.BatchSize)
		if err != nil {
			return processed, fmt.Errorf("claiming notifications: %w", err)
		}
		if len(claimed) == 0 {
			break
		}

		for _, n := range claimed {
			if err := d.deliver(ctx, n, now); err != nil {
				return processed, err
			}
			processed++
		}
	}

	d.refreshPending(ctx)
	return processed, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n model.Notification, now time.Time) error {
	sendErr := d.sender.Send(ctx, n)
	if sendErr == nil {
		if err := d.repo.MarkSent(ctx, n.ID, d.now()); err != nil {
			return fmt.Errorf("marking notification sent: %w", err)
		}
		d.metrics.NotificationsSent.WithLabelValues(n.Event).Inc()
		return nil
	}

	errText := strings.TrimSpace(sendErr.Error())
	if errText == "" {
		errText = "send failed"
	}
	attempts := n.AttemptCount + 1
	maxAttempts := n.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	if IsPermanent(sendErr) || attempts >= maxAttempts {
		if err := d.repo.MarkDead(ctx, n.ID, attempts, errText); err != nil {
			return fmt.Errorf("marking notification dead: %w", err)
		}
		d.metrics.NotificationsFailed.WithLabelValues(n.Event, "dead").Inc()
		d.log.Error("notification dead-lettered",
			zap.String("notification_id", n.ID.String()),
			zap.String("event", n.Event),
			zap.Int("attempts", attempts),
			zap.Error(sendErr),
		)
		return nil
	}

	next := now.Add(d.retryDelay(attempts))
	if err := d.repo.MarkRetry(ctx, n.ID, attempts, next, errText); err != nil {
		return fmt.Errorf("marking notification retry: %w", err)
	}
	d.metrics.NotificationsFailed.WithLabelValues(n.Event, "retry").Inc()
	d.log.Warn("notification delivery failed, will retry",
		zap.String("notification_id", n.ID.String()),
		zap.String("event", n.Event),
		zap.Int("attempts", attempts),
		zap.Time("next_attempt_at", next),
		zap.Error(sendErr),
	)
	return nil
}

func (d *Dispatcher) retryDelay(attempts int) time.Duration {
	if attempts <= 0 {
		attempts = 1
	}

	delay := time.Duration(float64(d.cfg.BaseRetryDelay) * math.Pow(2, float64(attempts-1)))
	if delay > d.cfg.MaxRetryDelay {
		delay = d.cfg.MaxRetryDelay
	}
	if d.cfg.JitterFraction <= 0 {
		return delay
	}

	jittered := time.Duration(float64(delay) * (1 + d.cfg.JitterFraction*d.jitter()))
	if jittered > d.cfg.MaxRetryDelay {
		return d.cfg.MaxRetryDelay
	}
	return jittered
}

func (d *Dispatcher) refreshPending(ctx context.Context) {
	counts, err := d.repo.CountByStatus(ctx)
	if err != nil {
		d.log.Warn("failed to count outbox rows", zap.Error(err))
		return
	}
	d.metrics.OutboxPending.Set(float64(counts[model.NotificationPending]))
}
