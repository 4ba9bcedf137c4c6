package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskbuddy/internal/services"
	"taskbuddy/internal/utils"
)

// IntegrationsHandler receives inbound SMS from Twilio and answers with
// TwiML.
type IntegrationsHandler struct {
	Intents *services.IntentService

	// Signature checking is on when AuthToken is set. WebhookURL is the
	// public URL Twilio signs; empty means rebuild it from the request.
	AuthToken  string
	WebhookURL string
}

func NewIntegrationsHandler(intents *services.IntentService, authToken, webhookURL string) *IntegrationsHandler {
	return &IntegrationsHandler{Intents: intents, AuthToken: authToken, WebhookURL: webhookURL}
}

// POST /twilio/webhook
func (h *IntegrationsHandler) Webhook(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		log.Printf("[sms][webhook] bad form: %v", err)
		c.Status(http.StatusBadRequest)
		return
	}
	form := c.Request.PostForm

	if h.AuthToken != "" {
		sig := c.GetHeader("X-Twilio-Signature")
		if !utils.ValidateTwilioSignature(h.AuthToken, h.signedURL(c), form, sig) {
			log.Printf("[sms][webhook][deny] bad signature from=%s", utils.MaskPhone(form.Get("From")))
			c.Status(http.StatusForbidden)
			return
		}
	}

	from := strings.TrimSpace(form.Get("From"))
	body := form.Get("Body")
	log.Printf("[sms][webhook] incoming from=%s len=%d", utils.MaskPhone(from), len(body))

	reply, err := h.Intents.HandleMessage(c.Request.Context(), from, body)
	if err != nil {
		log.Printf("[sms][webhook][err] from=%s: %v", utils.MaskPhone(from), err)
		reply = "Something went wrong on our side. Please try again in a minute."
	}
	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(utils.TwiML(reply)))
}

func (h *IntegrationsHandler) signedURL(c *gin.Context) string {
	if h.WebhookURL != "" {
		return h.WebhookURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if p := c.GetHeader("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
}
