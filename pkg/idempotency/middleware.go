package idempotency

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmehra2102/checkout-service/pkg/apperr"
	"github.com/dmehra2102/checkout-service/pkg/auth"
	"github.com/dmehra2102/checkout-service/pkg/respond"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
)

// Middleware replays the stored response for a repeated Idempotency-Key.
// Requests without the header pass through untouched. Keys are scoped per
// user and route so two callers never share a response. Server errors,
// panics and failed saves release the key so the client can retry.
func Middleware(log *slog.Logger, store *Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idemKey := r.Header.Get(HeaderKey)
			if idemKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := scopedKey(r, idemKey)

			claimed, err := store.Claim(ctx, key)
			if err != nil {
				log.Warn("idempotency store unavailable", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if !claimed {
				stored, err := store.Load(ctx, key)
				if err != nil {
					respond.Error(w, log, err)
					return
				}
				if stored == nil {
					respond.Error(w, log, apperr.Conflict("A request with this idempotency key is still being processed."))
					return
				}
				w.Header().Set(HeaderReplayed, "true")
				if stored.ContentType != "" {
					w.Header().Set("Content-Type", stored.ContentType)
				}
				w.WriteHeader(stored.Status)
				_, _ = w.Write(stored.Body)
				return
			}

			// The claim must be settled even when the client went away or
			// the handler panicked, so settle on a context that outlives r.
			settleCtx := context.WithoutCancel(ctx)
			saved := false
			defer func() {
				if saved {
					return
				}
				if err := store.Release(settleCtx, key); err != nil {
					log.Warn("idempotency release failed", "key", key, "err", err)
				}
			}()

			var body bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&body)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				return
			}
			resp := Response{Status: status, ContentType: ww.Header().Get("Content-Type"), Body: body.Bytes()}
			if err := store.Save(settleCtx, key, resp); err != nil {
				log.Warn("idempotency save failed", "key", key, "err", err)
				return
			}
			saved = true
		})
	}
}

func scopedKey(r *http.Request, idemKey string) string {
	user := "anon"
	if p, ok := auth.FromContext(r.Context()); ok {
		user = fmt.Sprintf("%d", p.UserID)
	}
	return fmt.Sprintf("idem:http:%s:%s:%s:%s", user, r.Method, r.URL.Path, idemKey)
}
