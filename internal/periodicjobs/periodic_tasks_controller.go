package periodicjobs

import (
	"context"
	"time"

	"github.com/hearthline/hearthline/pkg/logger"
)

const defaultStartDelay = 2 * time.Second

// PeriodicTasksController starts the task manager after a short warm-up
// It does not react to any event; it only owns the schedule.
type PeriodicTasksController struct {
	taskManager *PeriodicTaskManager
	startDelay  time.Duration
}

func NewPeriodicTasksController(mgr *PeriodicTaskManager, startDelay time.Duration) *PeriodicTasksController {
	if startDelay < 0 {
		startDelay = defaultStartDelay
	}
	return &PeriodicTasksController{
		taskManager: mgr,
		startDelay:  startDelay,
	}
}

// Start blocks until ctx is canceled
func (ptc *PeriodicTasksController) Start(ctx context.Context) error {
	log := logger.Logger(ctx).WithField("component", "periodictasks")
	log.Info("starting periodic tasks controller")
	defer log.Info("finishing periodic tasks controller")

	select {
	case <-ctx.Done():
		log.Info("context canceled during initialization")
		return ctx.Err()
	case <-time.After(ptc.startDelay):
	}

	if err := ptc.taskManager.RunAll(ctx); err != nil {
		log.WithError(err).Error("failed to run periodic tasks")
		return err
	}
	return nil
}
