package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/VoiceMesh/internal/app"
	"github.com/dkeye/VoiceMesh/internal/app/orch"
	"github.com/dkeye/VoiceMesh/internal/config"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Controller is the caller layer the local API drives.
type Controller interface {
	State() orch.State
	JoinVoice(channel string) (domain.ChannelName, error)
	LeaveVoice() error
	SetMuted(muted bool)
	SetDeafened(deafened bool)
	ToggleMute() bool
	ToggleDeafen() bool
	Rename(name string) (string, error)
	CreateChannel(name string, kind domain.ChannelKind) (domain.ChannelName, error)
	SelectChannel(name string) (domain.ChannelName, error)
	SendMessage(text string) error
	Messages(channel domain.ChannelName) []app.Message
}

const requestIDHeader = "X-Request-ID"

func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()
		log.Debug().
			Str("module", "adapters.http").
			Str("request_id", id).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func SetupRouter(cfg *config.Config, ctrl Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connected": ctrl.State().Connected})
	})

	api := r.Group("/api")

	api.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctrl.State())
	})

	api.POST("/voice/join", func(c *gin.Context) {
		var req struct {
			Channel string `json:"channel"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		if req.Channel == "" {
			req.Channel = string(domain.DefaultVoiceChannel)
		}
		name, err := ctrl.JoinVoice(req.Channel)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"voice_channel": name})
	})

	api.POST("/voice/leave", func(c *gin.Context) {
		if err := ctrl.LeaveVoice(); err != nil {
			abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	// Without a body the flag is toggled.
	api.POST("/audio/mute", func(c *gin.Context) {
		var req struct {
			Muted *bool `json:"muted"`
		}
		_ = c.ShouldBindJSON(&req)
		if req.Muted != nil {
			ctrl.SetMuted(*req.Muted)
		} else {
			ctrl.ToggleMute()
		}
		st := ctrl.State()
		c.JSON(http.StatusOK, gin.H{"muted": st.Muted, "deafened": st.Deafened})
	})

	api.POST("/audio/deafen", func(c *gin.Context) {
		var req struct {
			Deafened *bool `json:"deafened"`
		}
		_ = c.ShouldBindJSON(&req)
		if req.Deafened != nil {
			ctrl.SetDeafened(*req.Deafened)
		} else {
			ctrl.ToggleDeafen()
		}
		st := ctrl.State()
		c.JSON(http.StatusOK, gin.H{"muted": st.Muted, "deafened": st.Deafened})
	})

	api.PUT("/username", func(c *gin.Context) {
		var req struct {
			Name string `json:"name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		name, err := ctrl.Rename(req.Name)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"username": name})
	})

	api.POST("/channels", func(c *gin.Context) {
		var req struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		kind, err := domain.ParseChannelKind(req.Kind)
		if err != nil {
			abort(c, err)
			return
		}
		name, err := ctrl.CreateChannel(req.Name, kind)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"name": name, "kind": kind})
	})

	api.POST("/channels/select", func(c *gin.Context) {
		var req struct {
			Name string `json:"name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		name, err := ctrl.SelectChannel(req.Name)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"text_channel": name})
	})

	api.GET("/messages", func(c *gin.Context) {
		ch := domain.ChannelName(c.Query("channel"))
		c.JSON(http.StatusOK, gin.H{"messages": ctrl.Messages(ch)})
	})

	api.POST("/messages", func(c *gin.Context) {
		var req struct {
			Text string `json:"text"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		if err := ctrl.SendMessage(req.Text); err != nil {
			abort(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	})

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}

func abort(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("request_id", c.GetString("request_id")).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, orch.ErrNotConnected),
		errors.Is(err, domain.ErrTransportClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrUsernameEmpty),
		errors.Is(err, domain.ErrUsernameTooLong),
		errors.Is(err, domain.ErrChannelNameEmpty),
		errors.Is(err, domain.ErrChannelNameTooLong),
		errors.Is(err, domain.ErrUnknownChannelKind),
		errors.Is(err, domain.ErrChannelKindClash):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
