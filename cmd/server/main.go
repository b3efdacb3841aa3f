package main

import (
	"fmt"
	"log"
	"net/http"

	"hackreg/backend/internal/admission"
	"hackreg/backend/internal/auth"
	"hackreg/backend/internal/config"
	"hackreg/backend/internal/database"
	"hackreg/backend/internal/gavel"
	"hackreg/backend/internal/handler"
	"hackreg/backend/internal/mailer"
	"hackreg/backend/internal/settings"
	"hackreg/backend/internal/stats"
	"hackreg/backend/internal/team"
	"hackreg/backend/pkg/wordid"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	// Swagger imports
	_ "hackreg/backend/docs" // This is important for swag to find the generated docs

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func init() {
	config.LoadConfig()
}

// @title           Hackathon Registration API
// @version         1.0
// @description     Participant registration, admission and team management.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	// Connect to the database
	database.Connect(config.AppConfig.DatabaseURL)

	// Wire the engines. The admission engine drives the decline cascade
	// through the team engine, so the dependency is injected after both
	// exist.
	settingsSvc := settings.NewService(database.DB)
	post := mailer.NewSMTPMailer(
		config.AppConfig.SMTPHost,
		config.AppConfig.SMTPPort,
		config.AppConfig.SMTPUser,
		config.AppConfig.SMTPPass,
		config.AppConfig.MailFrom,
		config.AppConfig.BaseURL,
	)
	judge := gavel.NewClient(config.AppConfig.GavelURL, config.AppConfig.GavelKey)

	admissions := admission.NewEngine(database.DB, settingsSvc, post, wordid.New(config.AppConfig.JWTSecret))
	memberships := team.NewEngine(database.DB, settingsSvc, judge, config.AppConfig.MaxTeamSize)
	admissions.SetTeamLeaver(memberships)

	aggregator := stats.NewAggregator(database.DB, settingsSvc)
	aggregator.Start()
	defer aggregator.Stop()

	handler.Init(admissions, memberships, settingsSvc, aggregator)

	router := gin.Default()
	router.Use(cors.Default())

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		// Public settings
		apiV1.GET("/settings", handler.GetSettings)

		// Auth routes
		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/register", handler.Register)
			authRoutes.POST("/login", handler.Login)
			authRoutes.POST("/verify/:token", handler.VerifyEmail)
			authRoutes.POST("/reset", handler.ForgotPassword)
			authRoutes.POST("/reset/password", handler.ResetPassword)
			authRoutes.POST("/verify/resend", auth.AuthMiddleware(), handler.ResendVerification)
		}

		// Self-service routes (protected)
		userRoutes := apiV1.Group("/users")
		userRoutes.Use(auth.AuthMiddleware())
		{
			userRoutes.GET("/me", handler.GetMe)
			userRoutes.PUT("/me/profile", handler.UpdateProfile)
			userRoutes.PUT("/me/email", handler.UpdateEmail)
			userRoutes.PUT("/me/password", handler.ChangePassword)
			userRoutes.PUT("/me/confirmation", handler.SubmitConfirmation)
			userRoutes.POST("/me/decline", handler.Decline)
			userRoutes.PUT("/me/reimbursement", handler.SubmitReimbursement)
			userRoutes.PUT("/me/reimbursement/receipt", handler.UpdateReceipt)
			userRoutes.PUT("/me/matchmaking", handler.UpdateMatchmaking)
			userRoutes.POST("/me/matchmaking/exit", handler.ExitSearch)
		}

		// Matchmaking directory (protected)
		apiV1.GET("/matchmaking", auth.AuthMiddleware(), handler.ListMatchmaking)

		// Team routes (protected)
		teamRoutes := apiV1.Group("/teams")
		teamRoutes.Use(auth.AuthMiddleware())
		{
			teamRoutes.POST("", handler.CreateTeam)
			teamRoutes.GET("/me", handler.GetMyTeam)
			teamRoutes.POST("/:id/join", handler.JoinTeam)
			teamRoutes.POST("/leave", handler.LeaveTeam) // No ID needed, user leaves their own team
			teamRoutes.POST("/lock", handler.LockTeam)
			teamRoutes.POST("/kick", handler.KickFromTeam)
			teamRoutes.PUT("/priorities", handler.UpdateTeamPriorities)
			teamRoutes.GET("/gavel-token", handler.GetGavelToken)
		}

		// Admin routes (protected by auth and admin check)
		adminRoutes := apiV1.Group("/admin")
		adminRoutes.Use(auth.AuthMiddleware(), auth.AdminMiddleware())
		{
			adminRoutes.PUT("/settings", handler.UpdateSettings)

			users := adminRoutes.Group("/users")
			{
				users.GET("", handler.ListUsers)
				users.GET("/:id", handler.GetUser)
				users.PUT("/:id/profile", handler.AdminUpdateProfile)
				users.POST("/:id/soft-admit", handler.SoftAdmit)
				users.POST("/:id/admit", handler.Admit)
				users.POST("/:id/reject", handler.Reject)
				users.POST("/:id/unreject", handler.UnReject)
				users.PUT("/:id/travel-class", handler.AcceptTravelClass)
				users.POST("/:id/terminal", handler.AcceptTerminal)
				users.PUT("/:id/rate", handler.RateUser)
				users.POST("/:id/check-in", handler.CheckInUser)
				users.POST("/:id/check-out", handler.CheckOutUser)
				users.POST("/:id/special", handler.ToggleSpecial)
				users.PUT("/:id/password", handler.AdminChangePassword)
			}

			adminRoutes.PUT("/teams/:id/track", handler.AssignTrack)

			batch := adminRoutes.Group("/batch")
			{
				batch.POST("/reject", handler.MassReject)
				batch.GET("/reject/count", handler.MassRejectCount)
				batch.POST("/reject-rest", handler.MassRejectRest)
				batch.GET("/reject-rest/count", handler.MassRejectRestCount)
				batch.GET("/later-rejected/count", handler.LaterRejectionCount)
				batch.POST("/waitlist", handler.SetOnWaitlist)
				batch.POST("/confirm-by", handler.UpdateConfirmBy)
				batch.POST("/reject-emails", handler.SendRejectEmails)
				batch.POST("/lagger-emails", handler.SendLaggerEmails)
			}

			adminStats := adminRoutes.Group("/stats")
			{
				adminStats.GET("/users", handler.GetUserStats)
				adminStats.GET("/teams", handler.GetTeamStats)
			}
		}
	}

	addr := ":" + config.AppConfig.Port
	fmt.Printf("Server is running on %s\n", addr)
	fmt.Printf("Swagger UI is available at http://localhost:%s/swagger/index.html\n", config.AppConfig.Port)
	log.Fatal(router.Run(addr))
}
