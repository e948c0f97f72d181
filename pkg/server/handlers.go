package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/solarstation/livedash/pkg/dashboard"
	"github.com/solarstation/livedash/pkg/metrics"
	"github.com/solarstation/livedash/pkg/status"
	"github.com/solarstation/livedash/pkg/version"
)

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// MetricsResponse is the body of /api/metrics.
type MetricsResponse struct {
	Metrics metrics.Metrics `json:"metrics"`
	Status  status.Status   `json:"status"`
}

// getMetrics returns the last good metrics, which stay current while the
// source is failing. Before the first success it answers like the dongle:
// {"error":"No data"}.
func (s *Server) getMetrics(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	if s.tracker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No data"})
		return
	}
	m, ok := s.tracker.Metrics()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No data"})
		return
	}
	c.JSON(http.StatusOK, MetricsResponse{Metrics: m, Status: s.tracker.Status()})
}

// StatusResponse is the body of /api/status.
type StatusResponse struct {
	status.Status
	Stats *dashboard.Stats `json:"stats,omitempty"`
}

func (s *Server) getStatus(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	var resp StatusResponse
	if s.tracker != nil {
		resp.Status = s.tracker.Status()
	} else {
		resp.Status = status.Status{State: status.Idle, Message: status.MessageIdle}
	}
	if s.stats != nil {
		st := s.stats()
		resp.Stats = &st
	}
	c.JSON(http.StatusOK, resp)
}

// VersionResponse is the body of /api/version.
type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
}

func getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, VersionResponse{Version: version.Version, GitCommit: version.GitCommit})
}

// streamEvents pushes hub events as server-sent events until the client
// goes away.
func (s *Server) streamEvents(c *gin.Context) {
	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-s.done:
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", "{}")
			return true
		}
	})
}

type wsMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// serveWebSocket pushes hub events as JSON text frames. Incoming frames are
// read and discarded only to notice the client closing.
func (s *Server) serveWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			goingAway(conn)
			return
		case <-s.done:
			goingAway(conn)
			return
		case <-closed:
			return
		case <-keepAlive.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case ev, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(wsMessage{Event: ev.Name, Data: ev.Data}); err != nil {
				logrus.WithError(err).Debug("failed to write websocket message")
				return
			}
		}
	}
}

func goingAway(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(time.Second))
}
