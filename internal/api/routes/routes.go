// server/internal/api/routes/routes.go
package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"blooddoc-api-server/config"
	"blooddoc-api-server/internal/api/handlers"
	"blooddoc-api-server/internal/api/middleware"
	"blooddoc-api-server/internal/auth"
	"blooddoc-api-server/internal/models"
	"blooddoc-api-server/internal/service"
	"blooddoc-api-server/internal/socket"
)

// Dependencies are built once in main and shared by every handler.
type Dependencies struct {
	Tokens    *auth.TokenManager
	Accounts  *service.AccountService
	Hospitals *service.HospitalService
	Transfers *service.TransferService
	SOS       *service.SOSService
	Assist    *service.AssistService
	Hub       *socket.Hub
	Health    *handlers.HealthHandler
}

func SetupRouter(cfg config.Config, deps Dependencies) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	authHandler := &handlers.AuthHandler{Accounts: deps.Accounts}
	hospitalHandler := &handlers.HospitalHandler{Hospitals: deps.Hospitals}
	bloodRequestHandler := &handlers.BloodRequestHandler{Transfers: deps.Transfers}
	sosHandler := &handlers.SOSHandler{SOS: deps.SOS}
	assistHandler := &handlers.AssistHandler{Assist: deps.Assist}
	webSocketHandler := &handlers.WebSocketHandler{Hub: deps.Hub, Tokens: deps.Tokens}

	if deps.Health != nil {
		health := router.Group("/health")
		{
			health.GET("/live", deps.Health.Live)
			health.GET("/ready", deps.Health.Ready)
		}
	}

	api := router.Group("/api")
	{
		// Token travels in the query string for the upgrade request.
		if deps.Hub != nil {
			api.GET("/ws", webSocketHandler.ServeWs)
		}

		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
		}

		protected := api.Group("/")
		protected.Use(middleware.Authenticate(deps.Tokens))

		hospitals := protected.Group("/hospitals")
		{
			hospitals.POST("", hospitalHandler.CreateHospital)
			hospitals.GET("", hospitalHandler.GetAllHospitals)
			hospitals.GET("/search", hospitalHandler.SearchHospitals)
			hospitals.GET("/user/:userId", hospitalHandler.GetHospitalByUser)
			hospitals.GET("/:id", hospitalHandler.GetHospitalByID)
			hospitals.PUT("/:id", hospitalHandler.UpdateHospital)
			hospitals.DELETE("/:id", hospitalHandler.DeleteHospital)

			inventory := hospitals.Group("/:id/blood-inventory")
			{
				inventory.POST("", hospitalHandler.UpsertInventory)
				inventory.GET("/export", hospitalHandler.ExportInventory)
				inventory.PUT("/:entryId", hospitalHandler.UpdateInventoryEntry)
				inventory.DELETE("/:entryId", hospitalHandler.DeleteInventoryEntry)
			}
		}

		bloodRequests := protected.Group("/blood-requests")
		bloodRequests.Use(middleware.RequireRoles(models.RoleHospital, models.RoleAdmin))
		{
			bloodRequests.POST("/create", bloodRequestHandler.CreateBloodRequest)
			bloodRequests.GET("/outgoing/:hospitalId", bloodRequestHandler.GetOutgoing)
			bloodRequests.GET("/incoming/:hospitalId", bloodRequestHandler.GetIncoming)
			bloodRequests.PUT("/:id/respond", bloodRequestHandler.Respond)
		}

		sos := protected.Group("/sos")
		{
			sos.POST("/create", middleware.RequireRoles(models.RolePatient), sosHandler.CreateSOS)
			sos.GET("/hospital/:hospitalId", sosHandler.GetForHospital)
			sos.GET("/patient/:patientId", sosHandler.GetForPatient)
			sos.PUT("/:id/respond", middleware.RequireRoles(models.RoleHospital, models.RoleAdmin), sosHandler.Respond)
		}

		aiRoutes := protected.Group("/ai")
		{
			aiRoutes.POST("/chat", assistHandler.Chat)
			aiRoutes.POST("/analyze-report", assistHandler.AnalyzeReport)
		}

		protected.POST("/sms/send-blood-request", assistHandler.SendBloodRequestSMS)
	}

	return router
}
