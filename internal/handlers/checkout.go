package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/rs/zerolog"

	"racer-platform/internal/checkout"
	"racer-platform/internal/pending"
	"racer-platform/internal/revenue"
)

type CheckoutHandler struct {
	Checkout               *checkout.Orchestrator
	SuperfanThresholdCents int64
	logger                 zerolog.Logger
}

func NewCheckoutHandler(o *checkout.Orchestrator, superfanThresholdCents int64, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{Checkout: o, SuperfanThresholdCents: superfanThresholdCents, logger: logger}
}

type TipRequest struct {
	AmountCents int64  `json:"amount_cents" binding:"required"`
	DisplayName string `json:"display_name" binding:"max=64"`
	Message     string `json:"message" binding:"max=280"`
}

type SubscribeRequest struct {
	TierID      int64 `json:"tier_id" binding:"required,gt=0"`
	AmountCents int64 `json:"amount_cents"`
}

type SponsorRequest struct {
	PackageID   int64  `json:"package_id" binding:"required,gt=0"`
	AmountCents int64  `json:"amount_cents" binding:"gte=0"`
	Note        string `json:"note" binding:"max=500"`
}

type FinalizeRequest struct {
	Reference string `json:"reference" binding:"required"`
}

// Config tells the client whether support buttons should be shown at all.
func (h *CheckoutHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"enabled":                  h.Checkout.Enabled(),
		"min_tip_cents":            checkout.MinTipCents,
		"platform_percent":         revenue.PlatformPercent,
		"superfan_threshold_cents": h.SuperfanThresholdCents,
	})
}

func (h *CheckoutHandler) Tip(c *gin.Context) {
	var req TipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	h.initiate(c, req.AmountCents, checkout.TipPayload{DisplayName: req.DisplayName, Message: req.Message})
}

func (h *CheckoutHandler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	h.initiate(c, req.AmountCents, checkout.SubscriptionPayload{TierID: req.TierID})
}

func (h *CheckoutHandler) Sponsor(c *gin.Context) {
	var req SponsorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	h.initiate(c, req.AmountCents, checkout.SponsorshipPayload{PackageID: req.PackageID, Note: req.Note})
}

func (h *CheckoutHandler) initiate(c *gin.Context, amountCents int64, payload checkout.Payload) {
	creatorID, ok := idParam(c, "creatorID")
	if !ok {
		return
	}
	v, ok := viewer(c)
	if !ok {
		return
	}

	handle, err := h.Checkout.InitiateCharge(c.Request.Context(), checkout.InitiateRequest{
		PayerID:     v.UserID,
		PayerEmail:  v.Email,
		PayeeID:     creatorID,
		AmountCents: amountCents,
		Payload:     payload,
	})
	if err != nil {
		writeCheckoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, handle)
}

// Finalize is called by the success page with the reference from its URL.
func (h *CheckoutHandler) Finalize(c *gin.Context) {
	var req FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	res, err := h.Checkout.FinalizeCharge(c.Request.Context(), req.Reference)
	switch {
	case errors.Is(err, checkout.ErrFinalizationAmbiguous):
		h.logger.Warn().Str("reference", req.Reference).Msg("inconclusive finalization")
		c.JSON(http.StatusOK, gin.H{"status": "inconclusive"})
	case errors.Is(err, checkout.ErrConfiguration):
		writeCheckoutError(c, err)
	case err != nil:
		h.logger.Error().Err(err).Str("reference", req.Reference).Msg("failed to finalize charge")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Could not confirm the payment yet, please retry."})
	default:
		c.JSON(http.StatusOK, res)
	}
}

func (h *CheckoutHandler) Pending(c *gin.Context) {
	pc, err := h.Checkout.PendingContext(c.Request.Context(), c.Param("correlationID"))
	if errors.Is(err, pending.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Checkout not found or expired"})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read pending checkout")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}
	c.JSON(http.StatusOK, pc)
}

// paymentNotification is the Midtrans webhook body. saved_token_id is only
// sent for card payments made with save_card.
type paymentNotification struct {
	coreapi.TransactionStatusResponse
	SavedTokenID string `json:"saved_token_id"`
}

// HandlePaymentNotification receives the processor's webhook. The body supplies
// the order id and the saved card token; the status always comes from the
// processor itself.
func (h *CheckoutHandler) HandlePaymentNotification(c *gin.Context) {
	var notification paymentNotification
	if err := c.ShouldBindJSON(&notification); err != nil || notification.OrderID == "" {
		h.logger.Warn().Err(err).Msg("failed to bind payment notification")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification format"})
		return
	}

	res, err := h.Checkout.FinalizeNotification(c.Request.Context(), checkout.Notification{
		Reference:      notification.OrderID,
		SavedCardToken: notification.SavedTokenID,
	})
	switch {
	case errors.Is(err, checkout.ErrFinalizationAmbiguous):
		// Unknown orders are acknowledged so the processor stops retrying.
		c.JSON(http.StatusOK, gin.H{"status": "ok (unknown order)"})
	case err != nil:
		h.logger.Error().Err(err).Str("order_id", notification.OrderID).Msg("failed to process payment notification")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not process notification"})
	case res.AlreadyFinalized:
		c.JSON(http.StatusOK, gin.H{"status": "ok (duplicate)", "charge_status": res.Status})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok", "charge_status": res.Status})
	}
}
