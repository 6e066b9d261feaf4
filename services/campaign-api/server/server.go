package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mutter0815/MassTexter/docs"
	"github.com/Mutter0815/MassTexter/pkg/metrics"
)

func NewHTTPServer(addr string, h *Handlers) *http.Server {
	r := gin.New()
	r.Use(gin.Recovery(), Observability())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/docs", docsPage)
	r.GET("/docs/openapi.yaml", docsSpec)

	r.POST("/accounts", h.CreateAccount)
	r.POST("/webhooks/payment", h.PaymentWebhook)

	r.POST("/campaigns", h.CreateCampaign)
	r.GET("/campaigns", h.ListCampaigns)
	r.GET("/campaigns/:id", h.GetCampaign)
	r.POST("/campaigns/:id/queue", h.QueueCampaign)
	r.POST("/campaigns/:id/cancel", h.CancelCampaign)

	r.POST("/webhooks/sms/inbound", h.InboundSMS)
	r.GET("/consents/:phone", h.GetConsent)
	r.POST("/opt-in/email", h.StartEmailOptIn)
	r.GET("/opt-in/confirm", h.ConfirmEmailOptIn)

	return &http.Server{
		Addr:    addr,
		Handler: r,
	}
}

func docsPage(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", docs.CampaignSwaggerHTML)
}

func docsSpec(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", docs.CampaignOpenAPI)
}
