package web

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/spacesedan/feedbot/internal/models"
	"github.com/spacesedan/feedbot/internal/monitoring"
	"github.com/spacesedan/feedbot/internal/poller"
	"github.com/spacesedan/feedbot/internal/view"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleLiveInsights keeps one poller running for as long as the socket is
// open and pushes every composed snapshot to the browser.
func (s *Server) handleLiveInsights(c *gin.Context) {
	brand := strings.TrimSpace(c.Query("brand"))
	if brand == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "brand is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("[Web] Failed to upgrade websocket connection",
			slog.String("brand", brand),
			slog.String("error", err.Error()))
		return
	}

	monitoring.LiveViews.Inc()
	defer monitoring.LiveViews.Dec()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	composer := view.NewComposer(brand)
	composer.BindJob(s.jobs.Job())

	updates := make(chan view.Insights, 1)
	push := func(in view.Insights) {
		// latest snapshot wins when the browser is slow
		select {
		case <-updates:
		default:
		}
		updates <- in
	}
	push(composer.Insights())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writePump(ctx, conn, updates)
		cancel()
	}()

	sub := poller.Start(ctx, s.backend, brand, poller.Options{
		Interval: s.opts.PollInterval,
		Limit:    s.opts.ResultsLimit,
	}, func(posts []models.Post) {
		composer.BindJob(s.jobs.Job())
		push(composer.Apply(posts))
	})

	slog.Info("[Web] Live insights view opened", slog.String("brand", brand))

	readPump(ctx, conn)

	sub.Stop()
	cancel()
	<-writerDone
	_ = conn.Close()

	slog.Info("[Web] Live insights view closed", slog.String("brand", brand))
}

// readPump discards client messages and returns once the peer goes away.
func readPump(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				slog.Debug("[Web] Websocket read ended", slog.String("error", err.Error()))
			}
			return
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, updates <-chan view.Insights) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case in := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(in); err != nil {
				slog.Debug("[Web] Websocket write failed", slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
