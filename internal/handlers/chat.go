package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"marrowai-server/internal/chat"
	"marrowai-server/internal/utils"
)

// ChatHandler serves the assistant.
type ChatHandler struct {
	responder chat.Responder
	logger    *zap.Logger
	now       func() time.Time
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(responder chat.Responder, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{responder: responder, logger: logger, now: time.Now}
}

// ChatRequest is one user message. Context is echoed back untouched.
type ChatRequest struct {
	Message string                 `json:"message" binding:"required,max=4000"`
	Context map[string]interface{} `json:"context"`
}

// ChatResponse is the assistant's reply.
type ChatResponse struct {
	MessageID string                 `json:"messageId"`
	Response  string                 `json:"response"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context"`
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Message is required")
		return
	}

	reply, err := h.responder.Respond(c.Request.Context(), req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			utils.BadRequest(c, "Message is required")
			return
		}
		h.logger.Error("Chat response failed", zap.Error(err))
		utils.ErrorWithDetails(c, http.StatusInternalServerError, "Chat response failed", err)
		return
	}

	if req.Context == nil {
		req.Context = map[string]interface{}{}
	}
	utils.Success(c, "", ChatResponse{
		MessageID: uuid.NewString(),
		Response:  reply,
		Timestamp: h.now().UTC(),
		Context:   req.Context,
	})
}
