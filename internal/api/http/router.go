package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/confroom/internal/service"
)

func SetupRouter(
	allowedOrigins []string,
	identities service.IdentityProvider,
	roomController *RoomController,
	userController *UserController,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowOrigins = allowedOrigins
	config.AllowCredentials = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
		"x-auth-token",
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	if userController != nil {
		if uploads := userController.uploads; uploads.Dir != "" && uploads.URLPrefix != "" {
			router.Static(uploads.URLPrefix, uploads.Dir)
		}

		authGroup := api.Group("/auth")
		authGroup.POST("/register", userController.Register)
		authGroup.POST("/login", userController.Login)

		users := api.Group("/users")
		users.GET("/me", RequireIdentity(identities), userController.Me)
		users.PUT("/me", RequireIdentity(identities), userController.UpdateMe)
		users.POST("/avatar", RequireIdentity(identities), userController.UploadAvatar)
		users.GET("/:userID", userController.GetUser)
	}

	if roomController != nil {
		api.GET("/webrtc/config", roomController.ICEConfig)

		rooms := api.Group("/rooms")
		rooms.GET("", roomController.ListRooms)
		rooms.GET("/ws", roomController.Connect)
		rooms.GET("/:roomID/participants", roomController.ListParticipants)
	}

	return router
}
