package periodicjobs

import (
	"context"
	"time"

	"github.com/hearthline/hearthline/pkg/connectivity"
)

const (
	ConnectivityPollJobName = "hearthline_connectivity_poll"

	// DefaultConnectivityPollInterval matches how often the client refreshes
	// its connection indicator
	DefaultConnectivityPollInterval = 5 * time.Second
)

// ConnectivityPollJob probes the network and records the result on the monitor
// The monitor's reconnect listeners fire from inside Run.
type ConnectivityPollJob struct {
	monitor  *connectivity.Monitor
	interval time.Duration
}

func NewConnectivityPollJob(monitor *connectivity.Monitor, interval time.Duration) *ConnectivityPollJob {
	if interval <= 0 {
		interval = DefaultConnectivityPollInterval
	}
	return &ConnectivityPollJob{monitor: monitor, interval: interval}
}

func (j *ConnectivityPollJob) AddToPeriodicTaskManager(mgr *PeriodicTaskManager) {
	mgr.AddTask(j)
}

func (j *ConnectivityPollJob) GetInterval() time.Duration {
	return j.interval
}

func (*ConnectivityPollJob) GetName() string {
	return ConnectivityPollJobName
}

func (j *ConnectivityPollJob) Run(ctx context.Context) error {
	j.monitor.Poll(ctx)
	return nil
}
