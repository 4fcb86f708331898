package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/clock"
	historydomain "github.com/smallbiznis/fieldops/internal/history/domain"
	notificationdomain "github.com/smallbiznis/fieldops/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/fieldops/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/fieldops/internal/payment/domain"
	"github.com/smallbiznis/fieldops/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	JobExpireCheckouts  = "expire_checkouts"
	JobUnassignedOrders = "unassigned_orders"

	lockPrefix = "fieldops:scheduler:"
)

var ErrInvalidConfig = errors.New("scheduler: invalid config")

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   Config `optional:"true"`
	Payments paymentdomain.Service
	History  historydomain.Service
	Notifier notificationdomain.Dispatcher
	Locker   *ratelimit.Locker   `optional:"true"`
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

// Scheduler runs periodic maintenance over orders and payments. With a
// Redis locker configured each job runs on one instance at a time.
type Scheduler struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	payments paymentdomain.Service
	history  historydomain.Service
	notifier notificationdomain.Dispatcher
	locker   *ratelimit.Locker
	metrics  *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.Payments == nil || p.History == nil || p.Notifier == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:       p.DB,
		log:      p.Log.Named("scheduler"),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		payments: p.Payments,
		history:  p.History,
		notifier: p.Notifier,
		locker:   p.Locker,
		metrics:  p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	if s.locker != nil {
		key := lockPrefix + name
		token, ok, err := s.locker.TryLock(ctx, key, s.cfg.JobTimeout)
		if err != nil {
			s.log.Warn("scheduler lock unavailable", zap.String("job", name), zap.Error(err))
			return nil
		}
		if !ok {
			s.log.Debug("scheduler job held by another instance", zap.String("job", name))
			return nil
		}
		defer func() { _ = s.locker.Release(context.WithoutCancel(ctx), key, token) }()
	}

	ctx, run := s.startJobRun(ctx, name)
	err := fn(ctx)

	outcome := outcomeOK
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		// Deadlines are soft: the next tick picks up what is left.
		outcome = outcomeTimeout
	default:
		outcome = outcomeError
	}
	s.logJobFinish(ctx, run, outcome, err)
	s.metrics.RecordJobRun(ctx, name, outcome, s.clock.Now().Sub(start))

	if outcome == outcomeError {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobExpireCheckouts, s.ExpireCheckoutsJob},
		{JobUnassignedOrders, s.UnassignedOrdersJob},
	}
	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
