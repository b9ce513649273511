package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"racer-platform/internal/fanstatus"
)

type FanHandler struct {
	Fans   *fanstatus.Service
	logger zerolog.Logger
}

func NewFanHandler(fans *fanstatus.Service, logger zerolog.Logger) *FanHandler {
	return &FanHandler{Fans: fans, logger: logger}
}

func (h *FanHandler) Status(c *gin.Context) {
	creatorID, ok := idParam(c, "creatorID")
	if !ok {
		return
	}
	v, ok := viewer(c)
	if !ok {
		return
	}
	st, err := h.Fans.GetStatus(c.Request.Context(), v.UserID, creatorID)
	if err != nil {
		h.logger.Error().Err(err).Int64("creator_id", creatorID).Msg("failed to read fan status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *FanHandler) Follow(c *gin.Context) {
	h.setFollowing(c, true)
}

func (h *FanHandler) Unfollow(c *gin.Context) {
	h.setFollowing(c, false)
}

func (h *FanHandler) setFollowing(c *gin.Context, follow bool) {
	creatorID, ok := idParam(c, "creatorID")
	if !ok {
		return
	}
	v, ok := viewer(c)
	if !ok {
		return
	}

	var (
		res *fanstatus.FollowResult
		err error
	)
	if follow {
		res, err = h.Fans.Follow(c.Request.Context(), v.UserID, creatorID)
	} else {
		res, err = h.Fans.Unfollow(c.Request.Context(), v.UserID, creatorID)
	}
	if errors.Is(err, fanstatus.ErrSelfRelationship) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot follow yourself"})
		return
	}
	if errors.Is(err, fanstatus.ErrUnknownCreator) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Creator not found"})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Int64("creator_id", creatorID).Bool("follow", follow).Msg("failed to change follow state")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}
	c.JSON(http.StatusOK, res)
}
