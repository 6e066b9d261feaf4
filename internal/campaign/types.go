package campaign

import "time"

// Campaign lifecycle. The only backward edge is queued -> draft
// (operator cancel before the scheduler claims the campaign).
const (
	StatusDraft   = "draft"
	StatusQueued  = "queued"
	StatusSending = "sending"
	StatusSent    = "sent"
)

// Per-phone consent state, driven by outbound sends and inbound keyword
// replies.
const (
	ConsentUnknown  = "unknown"
	ConsentPending  = "pending"
	ConsentOptedIn  = "opted_in"
	ConsentOptedOut = "opted_out"
)

// Email opt-in is a separate channel from the phone keyword channel;
// the two never overwrite each other.
const (
	EmailOptInNone     = "none"
	EmailOptInPending  = "pending"
	EmailOptInAccepted = "accepted"
	EmailOptInDeclined = "declined"
)

type Campaign struct {
	ID          int64
	AccountID   int64
	Body        string
	Recipients  []string
	ScheduledAt *time.Time
	Status      string
	SentCount   int
	CreatedAt   time.Time
}

type Consent struct {
	PhoneNumber string     `json:"phone_number"`
	Status      string     `json:"status"`
	EmailStatus string     `json:"email_status"`
	LastSentAt  *time.Time `json:"last_sent_at,omitempty"`
	LastReplyAt *time.Time `json:"last_reply_at,omitempty"`
}

// RecipientOutcome is the per-recipient result of one dispatch pass.
// It is reported to the caller and published as an event, never persisted
// as its own row.
type RecipientOutcome struct {
	Phone     string
	Delivered bool
	Err       error
}

type DispatchReport struct {
	CampaignID int64
	Outcomes   []RecipientOutcome
	AllSent    bool
}

type CreateCampaignReq struct {
	AccountID   int64      `json:"account_id"   binding:"required"`
	Body        string     `json:"body"         binding:"required"`
	Recipients  []string   `json:"recipients"   binding:"required,min=1,dive,required"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

type CreateCampaignResp struct {
	ID int64 `json:"id"`
}

type QueueCampaignReq struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
}

type CampaignStatusResp struct {
	ID              int64      `json:"id"`
	Status          string     `json:"status"`
	SentCount       int        `json:"sent_count"`
	TotalRecipients int        `json:"total_recipients"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type CampaignListItem struct {
	ID              int64      `json:"id"`
	Status          string     `json:"status"`
	SentCount       int        `json:"sent_count"`
	TotalRecipients int        `json:"total_recipients"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type CreateAccountReq struct {
	Name string `json:"name" binding:"required"`
}

type CreateAccountResp struct {
	ID      int64 `json:"id"`
	Balance int   `json:"balance"`
}

type PaymentWebhookReq struct {
	AccountID int64 `json:"account_id" binding:"required"`
	Credits   int   `json:"credits"    binding:"required,min=1"`
}

// DeliveryEvent is the JSON shape published per recipient outcome.
type DeliveryEvent struct {
	CampaignID int64  `json:"campaign_id"`
	Phone      string `json:"phone"`
	Delivered  bool   `json:"delivered"`
	Error      string `json:"error,omitempty"`
}
