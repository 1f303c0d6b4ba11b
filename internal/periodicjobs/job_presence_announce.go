package periodicjobs

import (
	"context"
	"time"

	"github.com/hearthline/hearthline/pkg/mesh"
)

const PresenceAnnounceJobName = "hearthline_presence_announce"

type PresenceAnnounceJob struct {
	announcer mesh.Announcer
	interval  time.Duration
}

// NewPresenceAnnounceJob refreshes this node's presence often enough that peers
// with the given TTL keep seeing it as connected
func NewPresenceAnnounceJob(announcer mesh.Announcer, peerTTL time.Duration) *PresenceAnnounceJob {
	interval := peerTTL / 3
	if interval < time.Second {
		interval = time.Second
	}
	return &PresenceAnnounceJob{announcer: announcer, interval: interval}
}

func (j *PresenceAnnounceJob) AddToPeriodicTaskManager(mgr *PeriodicTaskManager) {
	mgr.AddTask(j)
}

func (j *PresenceAnnounceJob) GetInterval() time.Duration {
	return j.interval
}

func (*PresenceAnnounceJob) GetName() string {
	return PresenceAnnounceJobName
}

func (j *PresenceAnnounceJob) Run(ctx context.Context) error {
	return j.announcer.Announce(ctx)
}
