package server

import (
	"context"
	"encoding/xml"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mutter0815/MassTexter/internal/campaign"
	"github.com/Mutter0815/MassTexter/internal/consent"
	"github.com/Mutter0815/MassTexter/internal/store"
	"github.com/Mutter0815/MassTexter/pkg/logx"
)

// twiml is the carrier's webhook response shape; <Message> is relayed
// back to the sender.
type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// InboundSMS handles the carrier's inbound-message callback
// (form-encoded From/Body, TwiML response).
func (h *Handlers) InboundSMS(c *gin.Context) {
	from := c.PostForm("From")
	body := c.PostForm("Body")
	if from == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "From is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	reply, err := h.Inbound.HandleInbound(ctx, from, body)
	if err != nil {
		logx.L().Errorw("inbound_handle_error", "from", from, "error", err)
		// The carrier parses TwiML, not JSON; an empty <Response/>
		// keeps the callback well-formed.
		c.XML(http.StatusInternalServerError, twiml{})
		return
	}

	c.XML(http.StatusOK, twiml{Message: reply})
}

type optInEmailReq struct {
	Phone string `json:"phone" binding:"required"`
}

// StartEmailOptIn marks the email channel pending and issues a signed
// confirmation link. Delivering the email is the caller's job.
func (h *Handlers) StartEmailOptIn(c *gin.Context) {
	var req optInEmailReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	phone := consent.NormalizePhone(req.Phone)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.Store.SetEmailOptIn(ctx, phone, campaign.EmailOptInPending); err != nil {
		logx.L().Errorw("email_opt_in_pending_error", "phone", phone, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "opt-in error"})
		return
	}

	token := h.Signer.Sign(phone, 7*24*time.Hour)
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"path":  "/opt-in/confirm?token=" + token + "&response=accept",
	})
}

// ConfirmEmailOptIn lands the signed link click. response=accept means
// accepted, any other value declined; the phone keyword channel is
// never touched from here.
func (h *Handlers) ConfirmEmailOptIn(c *gin.Context) {
	phone, err := h.Signer.Verify(c.Query("token"))
	if err != nil {
		if errors.Is(err, consent.ErrTokenExpired) {
			c.String(http.StatusGone, "This confirmation link has expired.")
			return
		}
		c.String(http.StatusBadRequest, "Invalid confirmation link.")
		return
	}

	status := campaign.EmailOptInDeclined
	reply := "Your choice has been recorded."
	if c.Query("response") == "accept" {
		status = campaign.EmailOptInAccepted
		reply = "Subscription confirmed. Thank you!"
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.Store.SetEmailOptIn(ctx, phone, status); err != nil {
		logx.L().Errorw("email_opt_in_confirm_error", "phone", phone, "error", err)
		c.String(http.StatusInternalServerError, "Something went wrong, please try again.")
		return
	}
	c.String(http.StatusOK, reply)
}

// GetConsent exposes the registry record for one phone number.
func (h *Handlers) GetConsent(c *gin.Context) {
	phone := consent.NormalizePhone(c.Param("phone"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Store.GetConsent(ctx, phone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no consent record"})
			return
		}
		logx.L().Errorw("get_consent_error", "phone", phone, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "consent error"})
		return
	}
	c.JSON(http.StatusOK, rec)
}
