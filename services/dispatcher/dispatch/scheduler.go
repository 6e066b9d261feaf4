package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/Mutter0815/MassTexter/pkg/logx"
	"github.com/Mutter0815/MassTexter/pkg/metrics"
)

// Scheduler is the polling loop that finds due campaigns and hands
// them to the dispatcher. Overlapping cycles are safe: the claim
// compare-and-set lets only one of them fan out a given campaign.
type Scheduler struct {
	Store      Store
	Dispatcher *Dispatcher
	Interval   time.Duration
	Now        func() time.Time

	mu       sync.Mutex
	lastPoll time.Time
}

func NewScheduler(st Store, d *Dispatcher, interval time.Duration) *Scheduler {
	return &Scheduler{
		Store:      st,
		Dispatcher: d,
		Interval:   interval,
		Now:        time.Now,
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	logx.L().Infow("scheduler_started", "interval", s.Interval.String())

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			logx.L().Infow("scheduler_stopping")
			return ctx.Err()
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// Poll runs one cycle. Cycle failures are logged and absorbed; the
// next tick proceeds normally.
func (s *Scheduler) Poll(ctx context.Context) {
	now := s.Now().UTC()
	s.mu.Lock()
	s.lastPoll = now
	s.mu.Unlock()
	metrics.PollCyclesTotal.Inc()

	due, err := s.Store.DueCampaigns(ctx, now)
	if err != nil {
		metrics.PollCycleErrors.Inc()
		logx.L().Errorw("poll_cycle_error", "error", err)
		return
	}

	for _, c := range due {
		report, err := s.Dispatcher.Dispatch(ctx, c)
		if err != nil {
			logx.L().Errorw("dispatch_error", "campaign_id", c.ID, "error", err)
			continue
		}
		if report == nil {
			logx.L().Debugw("claim_lost", "campaign_id", c.ID)
			continue
		}
		if !report.AllSent {
			logx.L().Warnw("campaign_partial_failure", "campaign_id", c.ID)
		}
	}
}

// LastPoll reports when the previous cycle started.
func (s *Scheduler) LastPoll() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPoll
}
