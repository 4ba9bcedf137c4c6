package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskbuddy/internal/handlers"
	"taskbuddy/internal/middleware"
)

type AuthOptions struct {
	JWTSecret []byte
	Required  bool
}

func SetupRoutes(
	r *gin.Engine,
	auth AuthOptions,
	taskHandler *handlers.TaskHandler,
	userHandler *handlers.UserHandler,
	timeHandler *handlers.TimeHandler,
	verifyHandler *handlers.VerifyHandler,
	integrationsHandler *handlers.IntegrationsHandler, // nil when SMS commands are off
) *gin.Engine {

	// ---- public
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "TaskBuddy backend is running") })
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if integrationsHandler != nil {
		r.POST("/twilio/webhook", integrationsHandler.Webhook)
	}

	// ---- api (token optional unless auth.Required)
	api := r.Group("/api", middleware.AuthMiddleware(auth.JWTSecret, auth.Required))
	{
		api.POST("/parse-time", timeHandler.Parse)

		api.GET("/user-profile", userHandler.GetProfile)
		api.PUT("/user-profile", userHandler.UpdateProfile)

		api.POST("/send-verification-code", verifyHandler.SendCode)
		api.POST("/verify-phone", verifyHandler.VerifyPhone)

		boxes := api.Group("/boxes")
		{
			boxes.POST("", taskHandler.Create)
			boxes.GET("", taskHandler.List)
			boxes.PUT("/:id", taskHandler.Update)
			boxes.PUT("/:id/reminder", taskHandler.UpdateReminder)
			boxes.DELETE("/:id", taskHandler.Delete)
		}
	}

	return r
}
