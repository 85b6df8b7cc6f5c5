package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/realtime"
)

// EventsHandler streams job progress to the browser over SSE. Each connection
// is subscribed to the caller's user channel, so all runs they own are visible.
type EventsHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
}

func NewEventsHandler(baseLog *logger.Logger, hub *realtime.SSEHub) *EventsHandler {
	return &EventsHandler{log: baseLog.With("handler", "EventsHandler"), hub: hub}
}

func (h *EventsHandler) Stream(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	client := h.hub.NewSSEClient(owner)
	h.hub.AddChannel(client, owner.String())

	h.log.Debug("SSE stream opened", "user_id", owner)
	h.hub.ServeHTTP(c.Writer, c.Request, client)
	h.hub.CloseClient(client)
	h.log.Debug("SSE stream closed", "user_id", owner)
}
