package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studybot/models"
	"studybot/services"
	"studybot/store"
)

// Chatter runs one chat exchange.
type Chatter interface {
	Chat(ctx context.Context, userID, question string) (string, error)
}

// HistoryLister lists a user's stored messages.
type HistoryLister interface {
	Messages(ctx context.Context, userID string) ([]models.Message, error)
}

type ChatController struct {
	chat    Chatter
	history HistoryLister
	log     *zap.Logger
}

func NewChatController(chat Chatter, history HistoryLister, log *zap.Logger) *ChatController {
	return &ChatController{chat: chat, history: history, log: log}
}

type ChatRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Question string `json:"question" binding:"required"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

func (cc *ChatController) Home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Study Bot API 🚀"})
}

func (cc *ChatController) HandleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and question are required"})
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Question) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and question must not be blank"})
		return
	}

	// 履歴を読み込んで回答を生成し、やり取りを保存
	answer, err := cc.chat.Chat(c.Request.Context(), req.UserID, req.Question)
	if err != nil {
		status := statusFor(err)
		cc.log.Warn("chat_failed", zap.String("user_id", req.UserID), zap.Int("status", status), zap.Error(err))
		c.JSON(status, gin.H{"error": messageFor(status)})
		return
	}

	c.JSON(http.StatusOK, ChatResponse{Response: answer})
}

func (cc *ChatController) GetConversations(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id")) // クエリパラメータから取得
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	msgs, err := cc.history.Messages(c.Request.Context(), userID)
	if err != nil {
		status := statusFor(err)
		cc.log.Warn("list_conversations_failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(status, gin.H{"error": messageFor(status)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": msgs})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrCompletion):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(status int) string {
	switch status {
	case http.StatusBadGateway:
		return "completion service failed"
	case http.StatusServiceUnavailable:
		return "conversation store unavailable"
	default:
		return "internal error"
	}
}
