package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/astrolab-backend/internal/http/response"
	errs "github.com/yungbote/astrolab-backend/internal/pkg/errors"
	"github.com/yungbote/astrolab-backend/internal/requestdata"
	"github.com/yungbote/astrolab-backend/internal/services"
)

type AbTestHandler struct {
	assignments  services.AssignmentService
	conversions  services.ConversionService
	significance services.SignificanceService
}

func NewAbTestHandler(
	assignments services.AssignmentService,
	conversions services.ConversionService,
	significance services.SignificanceService,
) *AbTestHandler {
	return &AbTestHandler{
		assignments:  assignments,
		conversions:  conversions,
		significance: significance,
	}
}

type variantRequest struct {
	TestName  string `json:"test_name"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Variant   string `json:"variant,omitempty"`
}

type variantResponse struct {
	Success bool                    `json:"success"`
	Variant *services.VariantResult `json:"variant"`
}

type conversionRequest struct {
	TestName        string   `json:"test_name"`
	UserID          string   `json:"user_id,omitempty"`
	SessionID       string   `json:"session_id,omitempty"`
	ConversionValue *float64 `json:"conversion_value,omitempty"`
}

func identityFromRequest(c *gin.Context, userID, sessionID string) (string, string) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd != nil {
		if strings.TrimSpace(userID) == "" {
			userID = rd.UserID
		}
		if strings.TrimSpace(sessionID) == "" {
			sessionID = rd.SessionID
		}
	}
	return userID, sessionID
}

// POST /api/ab-tests/variant
// { test_name, user_id?, session_id? } -> { success, variant | null }
// A null variant means the test has no opinion (unknown or inactive); the
// caller falls back to the default experience. That outcome is not a 5xx.
func (h *AbTestHandler) GetVariant(c *gin.Context) {
	var req variantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	userID, sessionID := identityFromRequest(c, req.UserID, req.SessionID)
	result, err := h.assignments.GetVariant(c.Request.Context(), nil, services.VariantRequest{
		TestName:  req.TestName,
		UserID:    userID,
		SessionID: sessionID,
		Force:     req.Variant,
	})
	if err != nil {
		if errors.Is(err, errs.ErrInvalidArgument) {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "assignment_failed", err)
		return
	}
	response.RespondOK(c, variantResponse{Success: true, Variant: result})
}

// POST /api/ab-tests/conversion
// { test_name, user_id?, session_id?, conversion_value? } -> { success }
// Conversions for unknown tests or unassigned visitors report success=false.
func (h *AbTestHandler) RecordConversion(c *gin.Context) {
	var req conversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	userID, sessionID := identityFromRequest(c, req.UserID, req.SessionID)
	ok, err := h.conversions.RecordConversion(c.Request.Context(), nil, services.ConversionRequest{
		TestName:  req.TestName,
		UserID:    userID,
		SessionID: sessionID,
		Value:     req.ConversionValue,
	})
	if err != nil {
		if errors.Is(err, errs.ErrInvalidArgument) {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "conversion_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"success": ok})
}

// GET /api/ab-tests/:name/results
func (h *AbTestHandler) GetResults(c *gin.Context) {
	name := c.Param("name")
	results, err := h.significance.Analyze(c.Request.Context(), nil, name)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "test_not_found", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "analysis_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"success": true, "results": results})
}
