package relaytest

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	contextKeyUserID   = "user_id"
	contextKeyUsername = "username"
)

// MessageResponse is the body of every JSON reply from the relay's HTTP side.
type MessageResponse struct {
	Message string `json:"message"`
}

// CreateChannelRequest is the body of POST /api/channel.
type CreateChannelRequest struct {
	ChannelName string `json:"channelName" binding:"required"`
	UserID      string `json:"userId" binding:"required"`
}

// ProfileResponse is the body of GET /profile.
type ProfileResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (r *Relay) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, MessageResponse{Message: "missing or malformed authorization header"})
			return
		}

		claims, err := validateToken(r.secret, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, MessageResponse{Message: "invalid token"})
			return
		}

		c.Set(contextKeyUserID, claims.UserID)
		c.Set(contextKeyUsername, claims.Username)
		c.Next()
	}
}

// registerChannel handles POST /api/channel. The first registration creates
// the channel; later ones add the user as a member.
func (r *Relay) registerChannel(c *gin.Context) {
	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, MessageResponse{Message: "invalid request body"})
		return
	}

	if req.UserID != c.GetString(contextKeyUserID) {
		c.JSON(http.StatusForbidden, MessageResponse{Message: "user id does not match token"})
		return
	}

	ch, created, err := r.store.RegisterMember(c.Request.Context(), req.ChannelName, req.UserID)
	if err != nil {
		if errors.Is(err, ErrChannelClosed) {
			c.JSON(http.StatusConflict, MessageResponse{Message: fmt.Sprintf("Channel %s is closed", req.ChannelName)})
			return
		}
		r.log.Error().Err(err).Str("channel", req.ChannelName).Msg("register channel failed")
		c.JSON(http.StatusInternalServerError, MessageResponse{Message: "internal server error"})
		return
	}

	if created {
		c.JSON(http.StatusCreated, MessageResponse{Message: fmt.Sprintf("Channel %s created", ch.Name)})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: fmt.Sprintf("Joined channel %s", ch.Name)})
}

// profile handles GET /profile.
func (r *Relay) profile(c *gin.Context) {
	c.SetCookie("relay_session", c.GetString(contextKeyUserID), 3600, "/", "", false, true)
	c.JSON(http.StatusOK, ProfileResponse{
		UserID:   c.GetString(contextKeyUserID),
		Username: c.GetString(contextKeyUsername),
	})
}
