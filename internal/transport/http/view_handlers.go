package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrelay/internal/core"
)

// ViewHandlers serves read-only views of presence and history.
type ViewHandlers struct {
	gateway  *core.Gateway
	registry *core.Registry
	log      *zerolog.Logger
}

// NewViewHandlers creates a new view handlers instance.
func NewViewHandlers(gateway *core.Gateway, registry *core.Registry, logger *zerolog.Logger) *ViewHandlers {
	return &ViewHandlers{
		gateway:  gateway,
		registry: registry,
		log:      logger,
	}
}

// Online returns the current presence snapshot.
// GET /api/online
func (h *ViewHandlers) Online(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Snapshot())
}

// PublicMessages returns global history.
// GET /api/messages
func (h *ViewHandlers) PublicMessages(c *gin.Context) {
	msgs, err := h.gateway.PublicHistory(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load public history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Server error"})
		return
	}
	c.JSON(http.StatusOK, nonNil(msgs))
}

// RoomMessages returns a room's history.
// GET /api/rooms/:room/messages
func (h *ViewHandlers) RoomMessages(c *gin.Context) {
	room := strings.TrimSpace(c.Param("room"))
	if room == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room is required"})
		return
	}

	msgs, err := h.gateway.RoomHistory(c.Request.Context(), room)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("failed to load room history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Server error"})
		return
	}
	c.JSON(http.StatusOK, nonNil(msgs))
}
