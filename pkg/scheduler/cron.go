package scheduler

import (
	"context"
	"time"

	"SafeYatra/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Cron wraps robfig/cron with zap logging and panic recovery.
type Cron struct {
	c   *cron.Cron
	loc *time.Location
}

func NewCron(loc *time.Location) *Cron {
	if loc == nil {
		loc = time.Local
	}
	l := cronLogger{}
	c := cron.New(cron.WithLocation(loc), cron.WithLogger(l), cron.WithChain(cron.Recover(l)))
	return &Cron{c: c, loc: loc}
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { ctx := cr.c.Stop(); <-ctx.Done() }

// Add schedules job under a standard five field expression.
func (cr *Cron) Add(name, expr string, job Job) (cron.EntryID, error) {
	return cr.c.AddFunc(expr, func() {
		start := time.Now()
		job.Run(context.Background())
		logger.Debug("cron job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
	})
}

func (cr *Cron) Entries() []cron.Entry { return cr.c.Entries() }

// cronLogger adapts the zap logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.L().Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.L().Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
