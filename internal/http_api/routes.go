package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	v1 := s.router.Group("/api/v1")

	v1.POST("/auctions", s.trackAuction)
	v1.GET("/auctions", s.listAuctions)
	v1.POST("/auctions/:id/refresh", s.refreshAuction)
	v1.DELETE("/auctions/:id", s.deleteAuction)
	v1.POST("/refresh", s.refreshAll)

	v1.GET("/profile", s.getProfile)
	v1.PUT("/profile", s.saveProfile)
	v1.GET("/preferences", s.getPreference)
	v1.PUT("/preferences", s.savePreference)

	v1.POST("/alerts", s.subscribe)
	v1.DELETE("/alerts", s.unsubscribe)
	v1.POST("/alerts/run", s.runAlerts)

	v1.GET("/health", s.health)
}
