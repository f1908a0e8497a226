// Package http is the gin boundary of the server: route table, bearer
// middleware and request/response shaping. All business decisions live in
// the managers; handlers only translate errors to status codes.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/kpawlak/taskgrid/internal/logging"
	"github.com/kpawlak/taskgrid/internal/server/config"
	"github.com/kpawlak/taskgrid/internal/server/messages"
	"github.com/kpawlak/taskgrid/internal/server/security"
	"github.com/kpawlak/taskgrid/internal/server/session"
)

// SetupRouter sets up the Gin router. Task routes depend on the configured
// mode: only one of the per-user and broadcast route sets is mounted.
func SetupRouter(sec *security.Manager, sessions *session.Manager, inbox *messages.Manager, logger logging.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	handlers := NewHandlers(sec, sessions, inbox, logger)

	router.GET("/", handlers.Health)
	router.POST("/register", handlers.Register)
	router.POST("/login", handlers.Login)

	api := router.Group("/")
	api.Use(AuthMiddleware(sec))
	{
		api.POST("/ping", handlers.Ping)

		switch sessions.Mode() {
		case config.TaskModeBroadcast:
			api.GET("/broadcast/task", handlers.LatestBroadcastTask)
			api.POST("/broadcast/task", handlers.CreateBroadcastTask)
			api.POST("/broadcast/result", handlers.SubmitBroadcastResult)
			api.GET("/broadcast/history", handlers.BroadcastHistory)
		default:
			api.GET("/task", handlers.GetTask)
			api.POST("/result", handlers.SubmitResult)
		}

		api.GET("/sessions", handlers.ListSessions)
		api.POST("/messages", handlers.SendMessage)
		api.GET("/messages", handlers.ReceiveMessage)
	}

	return router
}
