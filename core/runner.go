package core

import (
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"filedrive/config"
)

type Runner struct {
	Config          *config.Config
	TransferManager *TransferManager
	Cron            *cron.Cron
	Logger          *slog.Logger

	wg sync.WaitGroup
}

func NewRunner(cfg *config.Config, tm *TransferManager, logger *slog.Logger) *Runner {
	cl := cronLogger{logger}
	return &Runner{
		Config:          cfg,
		TransferManager: tm,
		Cron:            cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		Logger:          logger,
	}
}

// Start schedules every task and runs each once right away. The immediate
// run goes through the same job chain, so it never overlaps a cron run.
func (r *Runner) Start() {
	for _, task := range r.Config.Tasks {
		id, err := r.Cron.AddFunc(task.Cron, func() {
			if _, err := r.TransferManager.RunTask(task); err != nil {
				r.Logger.Error("task failed", "task", task.Name, "error", err)
			}
		})
		if err != nil {
			r.Logger.Error("failed to schedule task", "task", task.Name, "cron", task.Cron, "error", err)
			continue
		}
		r.Logger.Info("scheduled task", "task", task.Name, "cron", task.Cron)

		job := r.Cron.Entry(id).WrappedJob
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			job.Run()
		}()
	}
	r.Cron.Start()
}

// Stop stops scheduling and waits for running tasks to finish.
func (r *Runner) Stop() {
	<-r.Cron.Stop().Done()
	r.wg.Wait()
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
