package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/suriekke/shopeasy2-sub000/internal/apperrors"
	"github.com/suriekke/shopeasy2-sub000/internal/logger"
	"github.com/suriekke/shopeasy2-sub000/internal/repository"
)

const healthTimeout = 2 * time.Second

func Health(store repository.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				WriteError(r.Context(), log, w, apperrors.Infrastructure(err, "store unreachable"))
				return
			}
		}
		WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
