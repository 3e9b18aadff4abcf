package relay

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"LiveCanvas/internal/state"
)

const maxPeerLen = 64

// NewRouter exposes the hub over HTTP, wrapped in CORS handling for
// allowedOrigins.
func NewRouter(hub *Hub, allowedOrigins []string) http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, hub.Stats())
	})

	router.GET("/rooms/*room", func(c *gin.Context) {
		room, ok := roomParam(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"room": room, "peers": hub.Peers(c.Request.Context(), room)})
	})

	router.GET("/ws/*room", func(c *gin.Context) {
		room, ok := roomParam(c)
		if !ok {
			return
		}
		peer := c.Query("peer")
		if len(peer) > maxPeerLen {
			c.JSON(http.StatusBadRequest, gin.H{"error": "peer id too long"})
			return
		}
		if peer == "" {
			peer = uuid.NewString()
		}
		if err := hub.Serve(c.Writer, c.Request, room, peer); err != nil {
			log.Warn().Err(err).Str("room", room).Str("peer", peer).Msg("websocket upgrade failed")
		}
	})

	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowCredentials: false,
	}).Handler(router)
}

func roomParam(c *gin.Context) (string, bool) {
	room, err := state.ParseRoom(c.Param("room"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	if room == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room is required"})
		return "", false
	}
	return room, true
}
