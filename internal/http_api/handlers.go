package http_api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zenwatch/zenwatch/internal/models"
)

// TrackRequest represents the JSON body for submitting a new auction URL
type TrackRequest struct {
	UserID string `json:"user_id" binding:"required"`
	URL    string `json:"url" binding:"required,url"`
}

// RefreshRequest represents the JSON body for a bulk refresh
type RefreshRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// SubscriptionRequest represents the JSON body for alert subscribe/unsubscribe
type SubscriptionRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	AuctionID string `json:"auction_id" binding:"required"`
}

// ProfileRequest represents the JSON body for saving a user profile
type ProfileRequest struct {
	UserID                 string `json:"user_id" binding:"required"`
	PreferredCurrency      string `json:"preferred_currency" binding:"omitempty,oneof=JPY USD EUR GBP"`
	PreferredLanguage      string `json:"preferred_language"`
	RefreshIntervalMinutes int    `json:"refresh_interval_minutes" binding:"required,min=1"`
	Email                  string `json:"email" binding:"omitempty,email"`
}

// PreferenceRequest represents the JSON body for saving alert preferences
type PreferenceRequest struct {
	UserID           string `json:"user_id" binding:"required"`
	AlertMinutes     int    `json:"alert_minutes" binding:"required,min=1,max=60"`
	EnableBrowser    bool   `json:"enable_browser"`
	EnableEmail      bool   `json:"enable_email"`
	EnableTelegram   bool   `json:"enable_telegram"`
	TelegramBotToken string `json:"telegram_bot_token"`
	TelegramChatID   string `json:"telegram_chat_id"`
}

// trackAuction is the handler for POST /auctions.
// It scrapes the listing once and inserts a tracked auction.
func (s *HTTPServer) trackAuction(c *gin.Context) {
	var req TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body: " + err.Error()})
		return
	}

	auction, err := s.zenwatch.TrackAuction(c.Request.Context(), req.UserID, req.URL)
	if err != nil {
		if errors.Is(err, models.ErrUnsupportedURL) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		s.logger.Error("Failed to track auction", "error", err, "url", req.URL)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "Failed to scrape auction page"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "auction": auction})
}

// listAuctions is the handler for GET /auctions?user_id=...
func (s *HTTPServer) listAuctions(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	auctions, err := s.zenwatch.ListAuctions(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("Failed to list auctions", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list auctions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"auctions": auctions})
}

// refreshAuction is the handler for POST /auctions/:id/refresh.
func (s *HTTPServer) refreshAuction(c *gin.Context) {
	auctionID := c.Param("id")

	auction, err := s.zenwatch.RefreshAuction(c.Request.Context(), auctionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "auction not found"})
			return
		}
		s.logger.Error("Failed to refresh auction", "error", err, "auction_id", auctionID)
		c.JSON(http.StatusBadGateway, gin.H{"error": "refresh failed, previous data kept"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"auction": auction})
}

// deleteAuction is the handler for DELETE /auctions/:id?user_id=...
func (s *HTTPServer) deleteAuction(c *gin.Context) {
	auctionID := c.Param("id")
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	if err := s.zenwatch.DeleteAuction(c.Request.Context(), auctionID, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "auction not found"})
			return
		}
		s.logger.Error("Failed to delete auction", "error", err, "auction_id", auctionID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete auction"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// refreshAll is the handler for POST /refresh. Best-effort: per-item
// failures are reported in the body, never as an HTTP error.
func (s *HTTPServer) refreshAll(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	report := s.zenwatch.RefreshAllAuctions(c.Request.Context(), req.UserID)
	c.JSON(http.StatusOK, report)
}

// getProfile is the handler for GET /profile?user_id=...
// A user without a profile row gets the resolved defaults.
func (s *HTTPServer) getProfile(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	profile, err := s.zenwatch.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			settings := models.ResolveSettings(nil)
			c.JSON(http.StatusOK, gin.H{"profile": models.UserProfile{
				UserID:                 userID,
				PreferredCurrency:      settings.Currency,
				PreferredLanguage:      settings.Language,
				RefreshIntervalMinutes: int(settings.RefreshInterval.Minutes()),
			}})
			return
		}
		s.logger.Error("Failed to get profile", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// saveProfile is the handler for PUT /profile.
func (s *HTTPServer) saveProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	profile := &models.UserProfile{
		UserID:                 req.UserID,
		PreferredCurrency:      models.Currency(req.PreferredCurrency),
		PreferredLanguage:      req.PreferredLanguage,
		RefreshIntervalMinutes: req.RefreshIntervalMinutes,
		Email:                  req.Email,
	}
	if err := s.zenwatch.SaveProfile(c.Request.Context(), profile); err != nil {
		s.logger.Error("Failed to save profile", "error", err, "user_id", req.UserID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "profile": profile})
}

// getPreference is the handler for GET /preferences?user_id=...
func (s *HTTPServer) getPreference(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	pref, err := s.zenwatch.GetPreference(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no alert preference set"})
			return
		}
		s.logger.Error("Failed to get preference", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get preference"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"preference": pref})
}

// savePreference is the handler for PUT /preferences.
func (s *HTTPServer) savePreference(c *gin.Context) {
	var req PreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	pref := &models.AlertPreference{
		UserID:           req.UserID,
		AlertMinutes:     req.AlertMinutes,
		EnableBrowser:    req.EnableBrowser,
		EnableEmail:      req.EnableEmail,
		EnableTelegram:   req.EnableTelegram,
		TelegramBotToken: req.TelegramBotToken,
		TelegramChatID:   req.TelegramChatID,
	}
	if err := s.zenwatch.SavePreference(c.Request.Context(), pref); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "preference": pref})
}

// subscribe is the handler for POST /alerts.
func (s *HTTPServer) subscribe(c *gin.Context) {
	var req SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := s.zenwatch.Subscribe(c.Request.Context(), req.AuctionID, req.UserID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "auction not found"})
			return
		}
		s.logger.Error("Failed to subscribe", "error", err, "auction_id", req.AuctionID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to subscribe"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// unsubscribe is the handler for DELETE /alerts.
func (s *HTTPServer) unsubscribe(c *gin.Context) {
	var req SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := s.zenwatch.Unsubscribe(c.Request.Context(), req.AuctionID, req.UserID); err != nil {
		s.logger.Error("Failed to unsubscribe", "error", err, "auction_id", req.AuctionID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unsubscribe"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// runAlerts is the handler for POST /alerts/run, a manual dispatcher trigger.
func (s *HTTPServer) runAlerts(c *gin.Context) {
	report := s.zenwatch.CheckAndSendAlerts(c.Request.Context())
	c.JSON(http.StatusOK, report)
}

// health is the handler for GET /health.
func (s *HTTPServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
