package periodicjobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/hearthline/hearthline/pkg/logger"
)

// PeriodicTask is a job run on a fixed interval
type PeriodicTask interface {
	GetName() string
	GetInterval() time.Duration
	Run(ctx context.Context) error
}

// PeriodicTaskManager schedules every registered task on a cron runner
type PeriodicTaskManager struct {
	mu    sync.Mutex
	tasks []PeriodicTask
	cron  *cron.Cron
}

func NewPeriodicTaskManager() *PeriodicTaskManager {
	return &PeriodicTaskManager{
		cron: cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

func (m *PeriodicTaskManager) AddTask(task PeriodicTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
}

// Tasks returns the registered task names in registration order
func (m *PeriodicTaskManager) Tasks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.tasks))
	for _, t := range m.tasks {
		names = append(names, t.GetName())
	}
	return names
}

// RunAll schedules every task and blocks until ctx is done
// A task whose run is still in progress skips its next tick.
func (m *PeriodicTaskManager) RunAll(ctx context.Context) error {
	m.mu.Lock()
	tasks := append([]PeriodicTask(nil), m.tasks...)
	m.mu.Unlock()

	for _, task := range tasks {
		if err := m.schedule(ctx, task); err != nil {
			return err
		}
	}

	m.cron.Start()
	logger.Logger(ctx).WithField("tasks", len(tasks)).Info("periodic tasks scheduled")

	<-ctx.Done()
	<-m.cron.Stop().Done()
	return nil
}

func (m *PeriodicTaskManager) schedule(ctx context.Context, task PeriodicTask) error {
	interval := task.GetInterval()
	if interval <= 0 {
		return fmt.Errorf("task %s has no interval", task.GetName())
	}

	_, err := m.cron.AddFunc("@every "+interval.String(), func() {
		runTask(ctx, task)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule task %s: %w", task.GetName(), err)
	}
	return nil
}

func runTask(ctx context.Context, task PeriodicTask) {
	log := logger.Logger(ctx).WithFields(logrus.Fields{
		"task": task.GetName(),
	})

	start := time.Now()
	if err := task.Run(ctx); err != nil {
		log.WithError(err).Warn("periodic task failed")
		return
	}
	log.WithField("duration", time.Since(start).String()).Debug("periodic task completed")
}
