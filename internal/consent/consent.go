package consent

import (
	"context"
	"strings"
	"time"

	"github.com/Mutter0815/MassTexter/internal/campaign"
	"github.com/Mutter0815/MassTexter/pkg/logx"
	"github.com/Mutter0815/MassTexter/pkg/metrics"
)

// Auto-reply texts relayed back to the sender by the carrier.
const (
	ReplyOptedIn  = "You have been subscribed to messages."
	ReplyOptedOut = "You have been unsubscribed from messages. Reply with #YES to subscribe again."
	ReplyClarify  = "Sorry, we did not understand your message. Reply with #NO to unsubscribe or #YES to subscribe."
)

// NormalizePhone strips spaces; numbers are compared verbatim otherwise.
func NormalizePhone(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "")
}

// Classify maps an inbound text to a consent transition. Unrecognized
// text returns an empty status.
func Classify(body string) (newStatus, reply string) {
	switch strings.ToUpper(strings.TrimSpace(body)) {
	case "YES", "#YES":
		return campaign.ConsentOptedIn, ReplyOptedIn
	case "NO", "#NO":
		return campaign.ConsentOptedOut, ReplyOptedOut
	default:
		return "", ReplyClarify
	}
}

type Registry interface {
	ApplyReply(ctx context.Context, phone, newStatus string, at time.Time) error
}

// Handler processes carrier inbound-SMS callbacks.
type Handler struct {
	Reg Registry
	Now func() time.Time
}

func NewHandler(reg Registry) *Handler {
	return &Handler{Reg: reg, Now: time.Now}
}

// HandleInbound records the reply and returns one auto-reply text.
func (h *Handler) HandleInbound(ctx context.Context, from, body string) (string, error) {
	phone := NormalizePhone(from)
	newStatus, reply := Classify(body)

	kw := newStatus
	if kw == "" {
		kw = "unrecognized"
	}
	metrics.InboundRepliesTotal.WithLabelValues(kw).Inc()

	if err := h.Reg.ApplyReply(ctx, phone, newStatus, h.Now().UTC()); err != nil {
		return "", err
	}

	logx.L().Infow("inbound_reply",
		"phone", phone,
		"status", newStatus,
	)
	return reply, nil
}
