package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grouping-api/internal/dto"
	"github.com/noah-isme/sma-grouping-api/internal/service"
	appErrors "github.com/noah-isme/sma-grouping-api/pkg/errors"
	"github.com/noah-isme/sma-grouping-api/pkg/response"
)

// PartitionHandler manages partition lifecycle endpoints.
type PartitionHandler struct {
	service *service.PartitionService
}

// NewPartitionHandler constructs handler.
func NewPartitionHandler(svc *service.PartitionService) *PartitionHandler {
	return &PartitionHandler{service: svc}
}

// Generate godoc
// @Summary Generate a draft partition for an activity
// @Tags Partitions
// @Accept json
// @Produce json
// @Param id path string true "Activity ID"
// @Param payload body dto.GeneratePartitionRequest true "Generation parameters"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /activities/{id}/partition/generate [post]
func (h *PartitionHandler) Generate(c *gin.Context) {
	var req dto.GeneratePartitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Reset godoc
// @Summary Discard the current draft and regenerate
// @Tags Partitions
// @Accept json
// @Produce json
// @Param id path string true "Activity ID"
// @Param payload body dto.GeneratePartitionRequest true "Generation parameters"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /activities/{id}/partition/reset [post]
func (h *PartitionHandler) Reset(c *gin.Context) {
	var req dto.GeneratePartitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	result, err := h.service.Reset(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Publish godoc
// @Summary Publish the activity draft and snapshot placements
// @Tags Partitions
// @Produce json
// @Param id path string true "Activity ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /activities/{id}/partition/publish [post]
func (h *PartitionHandler) Publish(c *gin.Context) {
	partition, err := h.service.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, partition)
}

// Archive godoc
// @Summary Archive the published partition
// @Tags Partitions
// @Produce json
// @Param id path string true "Activity ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /activities/{id}/partition/archive [post]
func (h *PartitionHandler) Archive(c *gin.Context) {
	if err := h.service.Archive(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Current godoc
// @Summary Get the activity's current partition with score
// @Tags Partitions
// @Produce json
// @Param id path string true "Activity ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /activities/{id}/partition [get]
func (h *PartitionHandler) Current(c *gin.Context) {
	result, err := h.service.Current(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Placements godoc
// @Summary List published placements for an activity
// @Tags Placements
// @Produce json
// @Param id path string true "Activity ID"
// @Success 200 {object} response.Envelope
// @Router /activities/{id}/placements [get]
func (h *PartitionHandler) Placements(c *gin.Context) {
	placements, err := h.service.Placements(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, placements)
}
