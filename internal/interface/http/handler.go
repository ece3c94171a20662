package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/location-insights/internal/domain/auth"
	"github.com/yanqian/location-insights/internal/domain/insights"
	"github.com/yanqian/location-insights/internal/domain/pipeline"
	apperrors "github.com/yanqian/location-insights/pkg/errors"
)

const runIDHeader = "X-Run-ID"

// Handler wires the HTTP transport to domain services.
type Handler struct {
	pipelineSvc pipeline.Service
	authSvc     auth.Service
	logger      *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(pipelineSvc pipeline.Service, authSvc auth.Service, logger *slog.Logger) *Handler {
	return &Handler{
		pipelineSvc: pipelineSvc,
		authSvc:     authSvc,
		logger:      logger.With("component", "http.handler"),
	}
}

// IssueToken exchanges client credentials for a bearer token.
func (h *Handler) IssueToken(c *gin.Context) {
	var req auth.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	resp, err := h.authSvc.IssueToken(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		code := auth.CodeAuthError
		switch {
		case apperrors.IsCode(err, auth.CodeInvalidClient):
			status = http.StatusUnauthorized
			code = auth.CodeInvalidClient
		case apperrors.IsCode(err, apperrors.CodeInvalidInput):
			status = http.StatusBadRequest
			code = apperrors.CodeInvalidInput
		}
		abortWithError(c, NewHTTPError(status, code, apperrors.MessageOf(err), err))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Insights aggregates location data without calling the model.
func (h *Handler) Insights(c *gin.Context) {
	req, ok := bindRunRequest(c)
	if !ok {
		return
	}

	data, err := h.pipelineSvc.Insights(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}

	c.JSON(http.StatusOK, data)
}

// Campaigns executes a full run. Failed runs are still returned so callers
// can inspect the draft and the raw selection.
func (h *Handler) Campaigns(c *gin.Context) {
	req, ok := bindRunRequest(c)
	if !ok {
		return
	}

	run, err := h.pipelineSvc.Run(c.Request.Context(), req)
	if run.ID != "" {
		c.Header(runIDHeader, run.ID)
	}
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeInvalidInput) {
			abortWithError(c, fromAppError(err))
			return
		}
		h.logger.Warn("campaign run returned failure", "runId", run.ID, "client", clientID(c), "stage", run.FailedStage, "code", run.ErrorCode)
		c.JSON(statusFor(err), run)
		return
	}

	c.JSON(http.StatusOK, run)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func bindRunRequest(c *gin.Context) (insights.Request, bool) {
	var req insights.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return insights.Request{}, false
	}
	return req, true
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
