package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grouping-api/internal/dto"
	"github.com/noah-isme/sma-grouping-api/internal/service"
	appErrors "github.com/noah-isme/sma-grouping-api/pkg/errors"
	"github.com/noah-isme/sma-grouping-api/pkg/response"
)

// CandidateHandler manages candidate comparison endpoints.
type CandidateHandler struct {
	service *service.CandidateService
}

// NewCandidateHandler constructs handler.
func NewCandidateHandler(svc *service.CandidateService) *CandidateHandler {
	return &CandidateHandler{service: svc}
}

// Generate godoc
// @Summary Generate a set of independent partition candidates
// @Tags Candidates
// @Accept json
// @Produce json
// @Param id path string true "Activity ID"
// @Param payload body dto.GenerateCandidatesRequest true "Generation parameters"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /activities/{id}/candidates [post]
func (h *CandidateHandler) Generate(c *gin.Context) {
	var req dto.GenerateCandidatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	result, err := h.service.GenerateSet(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary Get the cached candidate set for an activity
// @Tags Candidates
// @Produce json
// @Param id path string true "Activity ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /activities/{id}/candidates [get]
func (h *CandidateHandler) List(c *gin.Context) {
	result, err := h.service.GetSet(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Adopt godoc
// @Summary Adopt one candidate as the activity draft
// @Tags Candidates
// @Produce json
// @Param id path string true "Activity ID"
// @Param candidateId path string true "Candidate ID"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /activities/{id}/candidates/{candidateId}/adopt [post]
func (h *CandidateHandler) Adopt(c *gin.Context) {
	result, err := h.service.Adopt(c.Request.Context(), c.Param("id"), c.Param("candidateId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
