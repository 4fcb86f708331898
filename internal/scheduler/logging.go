package scheduler

import (
	"context"
	"time"

	obscontext "github.com/smallbiznis/fieldops/internal/observability/context"
	obslogger "github.com/smallbiznis/fieldops/internal/observability/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	outcomeOK      = "ok"
	outcomeTimeout = "timeout"
	outcomeError   = "error"
)

// jobRun tallies one execution of a job. Jobs run sequentially, so the
// counters need no locking.
type jobRun struct {
	job       string
	runID     string
	startedAt time.Time
	processed int
	skipped   int
	failed    int
}

type jobRunKey struct{}

func (r *jobRun) AddProcessed(n int) {
	if r != nil && n > 0 {
		r.processed += n
	}
}

// AddSkipped counts candidates another writer settled before the job got to them.
func (r *jobRun) AddSkipped(n int) {
	if r != nil && n > 0 {
		r.skipped += n
	}
}

func (r *jobRun) IncError() {
	if r != nil {
		r.failed++
	}
}

func (s *Scheduler) startJobRun(ctx context.Context, job string) (context.Context, *jobRun) {
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		startedAt: s.clock.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	return ctx, run
}

func jobRunFromContext(ctx context.Context) *jobRun {
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log).With(zap.String("component", "scheduler"))
}

// logJobFinish writes the run summary. Idle runs stay at debug so a quiet
// system does not log every tick.
func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun, outcome string, err error) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.String("outcome", outcome),
		zap.Duration("took", s.clock.Now().Sub(run.startedAt)),
		zap.Int("processed", run.processed),
		zap.Int("skipped", run.skipped),
		zap.Int("failed", run.failed),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	level := zapcore.InfoLevel
	switch {
	case outcome == outcomeError:
		level = zapcore.ErrorLevel
	case outcome == outcomeTimeout || run.failed > 0:
		level = zapcore.WarnLevel
	case run.processed == 0:
		level = zapcore.DebugLevel
	}
	s.logger(ctx).Log(level, "scheduler.job.finish", fields...)
}

func (s *Scheduler) logItemError(ctx context.Context, msg string, err error, fields ...zap.Field) {
	if run := jobRunFromContext(ctx); run != nil {
		run.IncError()
		fields = append(fields, zap.String("job", run.job), zap.String("run_id", run.runID))
	}
	s.logger(ctx).Error(msg, append(fields, zap.Error(err))...)
}
