package app

import (
	"clubnet_backend/internal/config"
	"clubnet_backend/internal/middleware"

	"clubnet_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// public
	router.GET("/api/health", c.health.HealthCheck)

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		registerThreadRoutes(authGroup, c)
		registerClubRoutes(authGroup, c)
		registerFriendRoutes(authGroup, c)
		registerNotificationRoutes(authGroup, c)
	}
}

func registerThreadRoutes(api *gin.RouterGroup, c *controllers) {
	threads := api.Group("/threads")
	{
		threads.POST("", c.thread.StartThread)
		threads.GET("", c.thread.ListThreads)
		threads.GET("/:id", c.thread.GetThread)
		threads.POST("/:id/leave", c.thread.LeaveThread)
		threads.GET("/:id/messages", c.thread.ListMessages)
		threads.POST("/:id/messages", c.thread.SendMessage)
		threads.POST("/:id/read", c.thread.MarkRead)
	}
	api.POST("/messages/:id/pin", c.thread.TogglePin)
	api.POST("/classes/:id/thread", c.thread.ClassThread)
}

func registerClubRoutes(api *gin.RouterGroup, c *controllers) {
	clubs := api.Group("/clubs")
	{
		clubs.POST("", c.club.CreateClub)
		clubs.GET("", c.club.ListClubs)
		clubs.GET("/mine", c.club.ListMyClubs)
		clubs.GET("/:id", c.club.GetClub)
		clubs.DELETE("/:id", c.club.DeleteClub)
		clubs.POST("/:id/thread", c.thread.ClubThread)

		// membership
		clubs.GET("/:id/members", c.club.ListMembers)
		clubs.POST("/:id/join", c.club.Join)
		clubs.POST("/:id/leave", c.club.Leave)
		clubs.PUT("/:id/members/:username/role", c.club.SetRole)
		clubs.DELETE("/:id/members/:username", c.club.RemoveMember)
		clubs.POST("/:id/invites", c.club.Invite)

		// resources
		clubs.GET("/:id/events", c.club.ListEvents)
		clubs.POST("/:id/events", c.club.CreateEvent)
		clubs.PUT("/:id/events/:eventId", c.club.UpdateEvent)
		clubs.DELETE("/:id/events/:eventId", c.club.DeleteEvent)
		clubs.GET("/:id/posts", c.club.ListPosts)
		clubs.POST("/:id/posts", c.club.CreatePost)
		clubs.DELETE("/:id/posts/:postId", c.club.DeletePost)
	}

	invites := api.Group("/invites")
	{
		invites.GET("", c.club.ListInvites)
		invites.POST("/:id/accept", c.club.AcceptInvite)
		invites.POST("/:id/reject", c.club.RejectInvite)
	}
}

func registerFriendRoutes(api *gin.RouterGroup, c *controllers) {
	friends := api.Group("/friends")
	{
		friends.GET("", c.friend.ListFriends)
		friends.DELETE("/:username", c.friend.RemoveFriend)
		friends.POST("/requests", c.friend.SendRequest)
		friends.GET("/requests", c.friend.ListIncoming)
		friends.POST("/requests/:username/accept", c.friend.Accept)
		friends.POST("/requests/:username/reject", c.friend.Reject)
		friends.DELETE("/requests/:username", c.friend.Cancel)
	}
}

func registerNotificationRoutes(api *gin.RouterGroup, c *controllers) {
	notifications := api.Group("/notifications")
	{
		notifications.GET("", c.notification.List)
		notifications.POST("/read", c.notification.MarkRead)
		notifications.POST("/clear", c.notification.Clear)
		notifications.GET("/ws", c.notification.HandleWS)
	}
}
