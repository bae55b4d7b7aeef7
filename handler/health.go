package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/samandartukhtayev/user-registry/logger"
)

// Pinger reports whether the store is reachable. *database.Manager implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

// HandleHealthz answers 200 when the store responds to a ping and 503 otherwise.
func HandleHealthz(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			logger.From(r.Context()).Warn("health check failed", logger.Err(err))
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}
