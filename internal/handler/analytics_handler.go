package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grouping-api/internal/dto"
	"github.com/noah-isme/sma-grouping-api/internal/service"
	appErrors "github.com/noah-isme/sma-grouping-api/pkg/errors"
	"github.com/noah-isme/sma-grouping-api/pkg/response"
)

// AnalyticsHandler exposes satisfaction scoring endpoints.
type AnalyticsHandler struct {
	service *service.AnalyticsService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(svc *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: svc}
}

// ScoreActivity godoc
// @Summary Score the activity's current partition
// @Tags Analytics
// @Produce json
// @Param id path string true "Activity ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /activities/{id}/partition/score [get]
func (h *AnalyticsHandler) ScoreActivity(c *gin.Context) {
	score, err := h.service.ScoreActivity(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score)
}

// ScoreAdhoc godoc
// @Summary Score an arbitrary partition shape
// @Tags Analytics
// @Accept json
// @Produce json
// @Param payload body dto.ScorePartitionRequest true "Partition and preferences to score"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /partitions/score [post]
func (h *AnalyticsHandler) ScoreAdhoc(c *gin.Context) {
	var req dto.ScorePartitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	score, err := h.service.ScoreAdhoc(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score)
}
