package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fenix-advisor/backend/engine"
	"fenix-advisor/backend/middlewares"
	"fenix-advisor/backend/models"
)

type AskRequest struct {
	Question string `json:"question"`
}

// Ask runs one question through the engine for the caller's session.
func Ask(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AskRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
			return
		}
		s := middlewares.CurrentSession(c)
		if s == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no session"})
			return
		}
		ans := eng.Ask(c.Request.Context(), s, strings.TrimSpace(req.Question))
		c.JSON(answerStatus(ans), ans)
	}
}

// answerStatus maps a failed answer's code to an HTTP status. Notices and
// every successful kind are 200.
func answerStatus(ans models.Answer) int {
	if ans.Kind != models.AnswerError || ans.Error == nil {
		return http.StatusOK
	}
	switch ans.Error.Code {
	case "plan_parse_error", "schema_mismatch", "field_not_found", "calculation_underdetermined":
		return http.StatusUnprocessableEntity
	case "oracle_transport_error":
		return http.StatusBadGateway
	case "oracle_timeout":
		return http.StatusGatewayTimeout
	case "source_unavailable":
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
