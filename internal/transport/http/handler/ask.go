package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"docwell/internal/app"
	"docwell/internal/index"
	"docwell/internal/model"
	"docwell/internal/transport/http/response"
)

type AskHandler struct {
	assistant     *app.AssistantService
	conversations *app.ConversationService
}

type AskRequest struct {
	Question       string  `json:"question" binding:"required"`
	TopK           int     `json:"top_k"`
	Threshold      float64 `json:"threshold"`
	Language       string  `json:"language"`
	IncludeSources bool    `json:"include_sources"`
}

func NewAskHandler(assistant *app.AssistantService, conversations *app.ConversationService) *AskHandler {
	return &AskHandler{assistant: assistant, conversations: conversations}
}

func (h *AskHandler) Ask(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	answer, err := h.assistant.Ask(c.Request.Context(), app.AskInput{
		OwnerID:        userID,
		Query:          req.Question,
		TopK:           req.TopK,
		Threshold:      req.Threshold,
		Language:       req.Language,
		IncludeSources: req.IncludeSources,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrGenerationUnavailable):
			response.Error(c, http.StatusServiceUnavailable, response.CodeGenerationUnavailable, err.Error())
		case errors.Is(err, index.ErrEmbeddingFailure), errors.Is(err, index.ErrDimensionMismatch):
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ask failed")
		}
		return
	}

	if err := h.conversations.Record(c.Request.Context(), model.Conversation{
		UserID:      userID,
		Question:    req.Question,
		Answer:      answer.Text,
		SourcesUsed: answer.SourcesUsed,
		ContextUsed: answer.ContextUsed,
	}); err != nil {
		// History is best-effort; the answer already exists.
		log.Printf("record conversation failed: %v", err)
	}

	response.OK(c, answer)
}
