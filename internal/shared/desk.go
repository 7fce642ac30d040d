package shared

import (
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// DeskHeader lets non-browser clients pick their preference scope explicitly.
const DeskHeader = "X-Odyssey-Desk"

var deskPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// DeskManager identifies the desk (browser or terminal) a request comes from.
// The desk id only scopes persisted list preferences; it carries no identity.
type DeskManager struct {
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewDeskManager constructs a DeskManager.
func NewDeskManager(cookieName string, ttl time.Duration, secure bool) *DeskManager {
	return &DeskManager{cookieName: cookieName, ttl: ttl, secure: secure}
}

// Resolve returns the desk id for the request and whether it was freshly issued.
func (dm *DeskManager) Resolve(r *http.Request) (string, bool) {
	if value := r.Header.Get(DeskHeader); deskPattern.MatchString(value) {
		return value, false
	}
	if cookie, err := r.Cookie(dm.cookieName); err == nil && deskPattern.MatchString(cookie.Value) {
		return cookie.Value, false
	}
	return uuid.NewString(), true
}

// Middleware stores the desk id in the request context, issuing a cookie when new.
func (dm *DeskManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		desk, fresh := dm.Resolve(r)
		if fresh {
			http.SetCookie(w, &http.Cookie{
				Name:     dm.cookieName,
				Value:    desk,
				Path:     "/",
				HttpOnly: true,
				Secure:   dm.secure,
				SameSite: http.SameSiteLaxMode,
				Expires:  time.Now().Add(dm.ttl),
			})
		}
		next.ServeHTTP(w, r.WithContext(ContextWithDesk(r.Context(), desk)))
	})
}

// CookieName returns the cookie identifier used for desks.
func (dm *DeskManager) CookieName() string {
	return dm.cookieName
}
