package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/greengrocer/storefront/pkg/logger"
)

const sessionHeader = "X-Session-ID"

// maxSessionIDLen bounds client supplied ids before they become redis keys.
const maxSessionIDLen = 128

// Session resolves the guest cart session from the X-Session-ID header or
// the session cookie, minting a new id and cookie when neither is present.
func Session(cookieName string, ttl time.Duration, secure bool, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := validSessionID(r.Header.Get(sessionHeader))
			if sessionID == "" {
				if cookie, err := r.Cookie(cookieName); err == nil {
					sessionID = validSessionID(cookie.Value)
				}
			}

			if sessionID == "" {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   int(ttl.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(sessionHeader, sessionID)

			ctx := WithSessionID(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validSessionID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > maxSessionIDLen {
		return ""
	}
	for _, c := range id {
		if !(c == '-' || c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			return ""
		}
	}
	return id
}
