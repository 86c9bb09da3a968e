package server

import (
	"net/http"
	"time"

	"github.com/etnz/finntra/state"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

func newUpgrader(origins originSet) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origins.allows(origin)
		},
	}
}

// stream pushes every view of the user's Synchronizer as a JSON text message.
// The stream ends after the signed out view, or when the client goes away.
func (h *handlers) stream(upgrader websocket.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := h.synchronizer(c)
		if !ok {
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.Warn("failed to upgrade connection", zap.Error(err))
			return
		}
		defer conn.Close()
		userID := claimsOf(c).Sub
		h.logger.Debug("websocket connection established", zap.String("user_id", userID), zap.String("remote", c.Request.RemoteAddr))

		views, stop := s.Subscribe()
		defer stop()

		// the read loop only serves control frames and notices the close.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-closed:
				h.logger.Debug("websocket connection closed", zap.String("user_id", userID))
				return
			case v, ok := <-views:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(v); err != nil {
					h.logger.Debug("websocket write failed", zap.String("user_id", userID), zap.Error(err))
					return
				}
				if v.Status == state.Unauthenticated {
					msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "signed out")
					_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
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
}
