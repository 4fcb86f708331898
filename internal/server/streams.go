package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/fieldops/internal/realtime"
)

const streamHeartbeat = 15 * time.Second

func (s *Server) StreamAdmins(c *gin.Context) {
	s.stream(c, realtime.AdminsStream)
}

// StreamUser delivers notifications addressed to the caller.
func (s *Server) StreamUser(c *gin.Context) {
	s.stream(c, realtime.UserStream(currentActor(c).ID.String()))
}

// StreamOrder joins the viewer room of an order the caller can see.
func (s *Server) StreamOrder(c *gin.Context) {
	order, err := s.visibleOrder(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.stream(c, realtime.OrderStream(order.ID.String()))
}

func (s *Server) stream(c *gin.Context, key string) {
	if s.hub == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	subscription, backlog, err := s.hub.Subscribe(key)
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	defer subscription.Close()

	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	headers := writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if _, err := io.WriteString(writer, "retry: 2000\n\n"); err != nil {
		return
	}
	for _, event := range backlog {
		if err := writeStreamEvent(writer, event); err != nil {
			return
		}
	}
	flusher.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-subscription.Events():
			if !ok {
				return
			}
			if err := writeStreamEvent(writer, event); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeStreamEvent(w io.Writer, event realtime.Event) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, event.Payload)
	return err
}
