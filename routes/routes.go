package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"studybot/controllers"
	"studybot/middlewares"
)

func SetupRouter(chat *controllers.ChatController, corsOrigins []string, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.Logger(log))
	r.Use(middlewares.CORS(corsOrigins))

	r.GET("/", chat.Home)

	// チャットメッセージ送信
	r.POST("/chat", chat.HandleChat)

	// 過去の会話を取得
	r.GET("/chat/conversations", chat.GetConversations)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
