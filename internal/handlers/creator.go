package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"racer-platform/internal/fanstatus"
	"racer-platform/internal/models"
	"racer-platform/internal/revenue"
	"racer-platform/internal/store"
)

const recentChargesLimit = 50

type CreatorHandler struct {
	Store  *store.Store
	Fans   *fanstatus.Service
	logger zerolog.Logger
}

func NewCreatorHandler(s *store.Store, fans *fanstatus.Service, logger zerolog.Logger) *CreatorHandler {
	return &CreatorHandler{Store: s, Fans: fans, logger: logger}
}

// GetProfile is the public creator page lookup.
func (h *CreatorHandler) GetProfile(c *gin.Context) {
	creator, err := h.Store.CreatorByUsername(c.Request.Context(), c.Param("username"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Creator not found"})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get creator profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}
	c.JSON(http.StatusOK, creator)
}

// GetMyProfile returns the signed-in creator's own profile.
func (h *CreatorHandler) GetMyProfile(c *gin.Context) {
	v, ok := viewer(c)
	if !ok {
		return
	}
	creator, err := h.Store.CreatorByUserID(c.Request.Context(), v.UserID)
	if err != nil {
		h.logger.Debug().Err(err).Int64("user_id", v.UserID).Msg("failed to get creator profile")
		c.JSON(http.StatusNotFound, gin.H{"error": "Creator profile not found"})
		return
	}
	c.JSON(http.StatusOK, creator)
}

// GetMyCharges lists the signed-in creator's confirmed support, newest first.
func (h *CreatorHandler) GetMyCharges(c *gin.Context) {
	v, ok := viewer(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	creator, err := h.Store.CreatorByUserID(ctx, v.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Creator profile not found"})
		return
	}
	charges, err := h.Store.SucceededCharges(ctx, creator.ID, recentChargesLimit)
	if err != nil {
		h.logger.Error().Err(err).Int64("creator_id", creator.ID).Msg("failed to list charges")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch charges"})
		return
	}
	c.JSON(http.StatusOK, charges)
}

func (h *CreatorHandler) Tiers(c *gin.Context) {
	creatorID, ok := idParam(c, "creatorID")
	if !ok {
		return
	}
	tiers, err := h.Store.ActiveTiers(c.Request.Context(), creatorID)
	if err != nil {
		h.logger.Error().Err(err).Int64("creator_id", creatorID).Msg("failed to list tiers")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch tiers"})
		return
	}
	if tiers == nil {
		tiers = []models.SubscriptionTier{}
	}
	c.JSON(http.StatusOK, tiers)
}

// Stats reports earnings and fan counts. Failed reads degrade to zeros or the
// last known counts with stale set.
func (h *CreatorHandler) Stats(c *gin.Context) {
	creatorID, ok := idParam(c, "creatorID")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	earnings, err := h.Store.Earnings(ctx, creatorID)
	earningsStale := err != nil
	if err != nil {
		h.logger.Warn().Err(err).Int64("creator_id", creatorID).Msg("earnings read failed")
		earnings = models.CreatorEarnings{CreatorID: creatorID}
	}
	counts, countsStale := h.Fans.Counts(ctx, creatorID)

	c.JSON(http.StatusOK, gin.H{
		"creator_id": creatorID,
		"earnings":   earnings,
		"fan_counts": counts,
		"stale":      earningsStale || countsStale,
	})
}

// Split previews what the creator receives for a gross amount.
func (h *CreatorHandler) Split(c *gin.Context) {
	if _, ok := idParam(c, "creatorID"); !ok {
		return
	}
	amount, err := strconv.ParseInt(c.Query("amount_cents"), 10, 64)
	if err != nil || amount < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount_cents must be a non-negative integer"})
		return
	}
	c.JSON(http.StatusOK, revenue.Compute(amount))
}
