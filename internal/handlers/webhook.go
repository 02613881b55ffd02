// internal/handlers/webhook.go
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/blockmart/blockmart-backend/internal/config"
	"github.com/blockmart/blockmart-backend/internal/services"
	"github.com/blockmart/blockmart-backend/internal/utils"
)

const webhookMaxBodyBytes = int64(65536)

type WebhookHandler struct {
	config          *config.Config
	purchaseService *services.PurchaseService
	payoutService   *services.PayoutService
}

func NewWebhookHandler(cfg *config.Config, purchaseService *services.PurchaseService, payoutService *services.PayoutService) *WebhookHandler {
	return &WebhookHandler{
		config:          cfg,
		purchaseService: purchaseService,
		payoutService:   payoutService,
	}
}

// POST /webhooks/stripe
//
// Stripe retries webhook delivery until it sees a 2xx, so every branch here
// must be safe to replay. Fulfillment and payout both reconcile against
// their own records before acting; re-delivered events are acknowledged
// without side effects.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, webhookMaxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.BadRequestResponse(c, "failed to read request body", nil)
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.config.Payment.StripeWebhookSecret)
	if err != nil {
		logrus.WithError(err).Warn("Rejected webhook with bad signature")
		utils.UnauthorizedResponse(c, "invalid webhook signature")
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(c, event)
	case "payment_intent.payment_failed":
		h.handlePaymentFailed(c, event)
	default:
		// Unhandled event types are acknowledged so Stripe stops retrying.
		utils.SuccessResponse(c, gin.H{"received": true})
	}
}

func (h *WebhookHandler) handleCheckoutCompleted(c *gin.Context, event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		utils.BadRequestResponse(c, "malformed event payload", nil)
		return
	}

	purchaseID, err := uuid.Parse(sess.Metadata["purchase_id"])
	if err != nil {
		logrus.WithField("event_id", event.ID).Warn("Checkout session event missing purchase_id metadata")
		utils.BadRequestResponse(c, "missing purchase_id metadata", nil)
		return
	}

	paymentRef := ""
	if sess.PaymentIntent != nil {
		paymentRef = sess.PaymentIntent.ID
	}

	purchase, err := h.purchaseService.FulfillPurchase(purchaseID, paymentRef)
	if err != nil {
		logrus.WithError(err).WithField("purchase_id", purchaseID).Error("Failed to fulfill purchase from webhook")
		utils.InternalErrorResponse(c, "failed to fulfill purchase")
		return
	}

	// Best-effort follow-ups. Both are retryable out of band and must not
	// fail the webhook once the purchase is paid and licenses exist.
	if err := h.purchaseService.RecordProcessingFee(purchaseID); err != nil {
		logrus.WithError(err).WithField("purchase_id", purchaseID).Warn("Failed to record processing fee")
	}

	if _, err := h.payoutService.PayoutCreatorsForPurchase(purchaseID); err != nil {
		logrus.WithError(err).WithField("purchase_id", purchaseID).Error("Creator payout incomplete, manual retry required")
	}

	utils.SuccessResponse(c, gin.H{
		"received": true,
		"purchase": purchase.ID,
		"status":   purchase.Status,
	})
}

func (h *WebhookHandler) handlePaymentFailed(c *gin.Context, event stripe.Event) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		utils.BadRequestResponse(c, "malformed event payload", nil)
		return
	}

	purchaseID, err := uuid.Parse(intent.Metadata["purchase_id"])
	if err != nil {
		// Not all failed intents belong to us; acknowledge and move on.
		utils.SuccessResponse(c, gin.H{"received": true})
		return
	}

	if err := h.purchaseService.FailPurchase(purchaseID); err != nil {
		logrus.WithError(err).WithField("purchase_id", purchaseID).Error("Failed to mark purchase failed")
		utils.InternalErrorResponse(c, "failed to update purchase")
		return
	}

	utils.SuccessResponse(c, gin.H{"received": true})
}
