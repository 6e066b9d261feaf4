package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Mutter0815/MassTexter/internal/campaign"
	"github.com/Mutter0815/MassTexter/internal/consent"
	"github.com/Mutter0815/MassTexter/internal/gateway"
	"github.com/Mutter0815/MassTexter/internal/store"
	"github.com/Mutter0815/MassTexter/pkg/logx"
	"github.com/Mutter0815/MassTexter/pkg/metrics"
)

// Store is the slice of the persistence layer the dispatch engine
// touches. *store.Store satisfies it.
type Store interface {
	DueCampaigns(ctx context.Context, now time.Time) ([]campaign.Campaign, error)
	ClaimCampaign(ctx context.Context, id int64) (bool, error)
	MarkCampaignSent(ctx context.Context, id int64) error
	IncrementSentCount(ctx context.Context, id int64) error
	Reserve(ctx context.Context, accountID int64) error
	TouchSent(ctx context.Context, phone string, at time.Time) error
}

// Events receives one JSON delivery event per recipient outcome.
type Events interface {
	PublishJSON(ctx context.Context, body []byte) error
}

// Dispatcher fans one claimed campaign out to all its recipients.
type Dispatcher struct {
	Store       Store
	Gateway     gateway.Client
	Events      Events // nil disables event publishing
	From        string
	SendTimeout time.Duration
	Concurrency int
	Now         func() time.Time
}

func NewDispatcher(st Store, gw gateway.Client, ev Events, from string, sendTimeout time.Duration, concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Dispatcher{
		Store:       st,
		Gateway:     gw,
		Events:      ev,
		From:        from,
		SendTimeout: sendTimeout,
		Concurrency: concurrency,
		Now:         time.Now,
	}
}

// Dispatch claims the campaign and processes every recipient. A nil
// report with a nil error means the claim was lost to a concurrent
// dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, c campaign.Campaign) (*campaign.DispatchReport, error) {
	claimed, err := d.Store.ClaimCampaign(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, nil
	}

	start := d.Now()
	metrics.CampaignsDispatched.Inc()

	outcomes := make([]campaign.RecipientOutcome, len(c.Recipients))
	g := &errgroup.Group{}
	g.SetLimit(d.Concurrency)
	for i, to := range c.Recipients {
		i, to := i, to
		g.Go(func() error {
			outcomes[i] = d.sendOne(ctx, c, to)
			return nil
		})
	}
	_ = g.Wait()

	allSent := true
	for _, o := range outcomes {
		if !o.Delivered {
			allSent = false
			break
		}
	}

	// Sent means dispatch was attempted for every recipient, not that
	// every recipient received the message.
	if err := d.Store.MarkCampaignSent(ctx, c.ID); err != nil {
		logx.L().Errorw("db_mark_sent_error", "campaign_id", c.ID, "error", err)
		return &campaign.DispatchReport{CampaignID: c.ID, Outcomes: outcomes, AllSent: allSent}, err
	}

	metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	logx.L().Infow("campaign_dispatched",
		"campaign_id", c.ID,
		"recipients", len(c.Recipients),
		"all_sent", allSent,
	)
	return &campaign.DispatchReport{CampaignID: c.ID, Outcomes: outcomes, AllSent: allSent}, nil
}

func (d *Dispatcher) sendOne(ctx context.Context, c campaign.Campaign, to string) campaign.RecipientOutcome {
	metrics.SendsAttempted.Inc()
	fields := []any{"campaign_id", c.ID, "to", to}

	out := campaign.RecipientOutcome{Phone: to}

	// No send without a successful reservation.
	if err := d.Store.Reserve(ctx, c.AccountID); err != nil {
		if errors.Is(err, store.ErrInsufficientBalance) {
			metrics.ReservationsRefused.Inc()
		}
		metrics.SendsFailed.Inc()
		logx.L().Infow("reserve_refused", append(fields, "error", err)...)
		out.Err = err
		d.publishOutcome(ctx, c.ID, out)
		return out
	}

	sctx, cancel := context.WithTimeout(ctx, d.SendTimeout)
	id, err := d.Gateway.Send(sctx, to, d.From, c.Body)
	cancel()
	if err != nil || id == "" {
		if err == nil {
			err = errors.New("gateway returned no delivery id")
		}
		metrics.SendsFailed.Inc()
		logx.L().Infow("send_failed", append(fields, "error", err)...)
		out.Err = err
		d.publishOutcome(ctx, c.ID, out)
		return out
	}

	out.Delivered = true
	metrics.SendsSucceeded.Inc()

	if err := d.Store.IncrementSentCount(ctx, c.ID); err != nil {
		logx.L().Errorw("db_sent_count_error", append(fields, "error", err)...)
	}
	if err := d.Store.TouchSent(ctx, consent.NormalizePhone(to), d.Now().UTC()); err != nil {
		logx.L().Errorw("db_touch_consent_error", append(fields, "error", err)...)
	}

	logx.L().Infow("send_success", append(fields, "delivery_id", id)...)
	d.publishOutcome(ctx, c.ID, out)
	return out
}

func (d *Dispatcher) publishOutcome(ctx context.Context, campaignID int64, out campaign.RecipientOutcome) {
	if d.Events == nil {
		return
	}
	ev := campaign.DeliveryEvent{
		CampaignID: campaignID,
		Phone:      out.Phone,
		Delivered:  out.Delivered,
	}
	if out.Err != nil {
		ev.Error = out.Err.Error()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		logx.L().Errorw("event_marshal_error", "campaign_id", campaignID, "error", err)
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.Events.PublishJSON(pctx, payload); err != nil {
		logx.L().Warnw("event_publish_error", "campaign_id", campaignID, "phone", out.Phone, "error", err)
	}
}
