package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/AffDk/spy-server/internal/hub"
	"github.com/AffDk/spy-server/internal/words"
	"github.com/AffDk/spy-server/internal/ws"
)

// SetupRoutes wires the HTTP surface: the websocket endpoint, the word pool
// admin route, QR invites, health and (optionally) the static client.
func SetupRoutes(h *hub.Hub, pool *words.Supplier, publicURL, staticDir string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, log.Named("ws")))
	r.Post("/words", AddWord(pool, log.Named("words")))
	r.Get("/sessions/{code}/qr.png", SessionQR(h, publicURL))

	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}
	return r
}
