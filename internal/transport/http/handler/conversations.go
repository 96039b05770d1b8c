package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docwell/internal/app"
	"docwell/internal/transport/http/response"
)

type ConversationHandler struct {
	conversations *app.ConversationService
}

func NewConversationHandler(conversations *app.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	limit := 0
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	convs, err := h.conversations.ListRecent(c.Request.Context(), userID, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list conversations failed")
		return
	}
	response.OK(c, convs)
}
