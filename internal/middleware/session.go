package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	CartIDKey    contextKey = "cart_id"
	cartIDValue             = "cart_id"
)

// NewCookieStore creates the signed cookie store that carries the cart id
func NewCookieStore(secret string, maxAge int, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.MaxAge(maxAge)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.SameSite = http.SameSiteLaxMode
	return store
}

// CartSession makes sure every request has a cart id. A new id is issued,
// and the cookie written, when the session is missing or cannot be decoded.
func CartSession(store sessions.Store, cookieName string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := store.Get(r, cookieName)
			if err != nil {
				logger.Debug("Discarding unreadable session cookie", zap.Error(err))
			}

			cartID, _ := session.Values[cartIDValue].(string)
			if cartID == "" {
				cartID = uuid.NewString()
				session.Values[cartIDValue] = cartID
				if err := session.Save(r, w); err != nil {
					logger.Error("Failed to save session", zap.Error(err))
					RespondWithError(w, http.StatusInternalServerError, "failed to start session")
					return
				}
			}

			ctx := context.WithValue(r.Context(), CartIDKey, cartID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CartIDFromContext returns the cart id set by CartSession
func CartIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(CartIDKey).(string)
	return id, ok && id != ""
}
