package relay

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/famkaliuzhnyi-web/Mini-games-sub000/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	// The relay carries no secrets and serves arbitrary game clients.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SetupRouter builds the gin engine serving the relay: a health endpoint and
// the WebSocket upgrade. Clients identify their session room and peer id via
// query parameters.
func SetupRouter(cfg *config.Relay, hub *Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.GET("/ws", func(c *gin.Context) {
		sessionID := c.Query("session")
		peerID := c.Query("peer")
		if sessionID == "" || peerID == "" {
			c.String(http.StatusBadRequest, "session and peer query parameters are required")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("upgrade failed")
			return
		}

		client := NewClient(hub, conn, sessionID, peerID, cfg.ReadLimit, cfg.PingPeriod)
		client.Register()
		go client.WritePump()
		go client.ReadPump()
	})

	return r
}
