package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wizardoma/radiance-wellness/internal/session"
	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

var errStaffAuthDisabled = errors.New("staff auth disabled")

// StaffClaims is the payload of a staff token issued by the admin app.
type StaffClaims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ParseStaffToken verifies an HMAC-signed staff token.
func ParseStaffToken(secret, tokenString string) (*StaffClaims, error) {
	if secret == "" {
		return nil, errStaffAuthDisabled
	}
	claims := &StaffClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// SignStaffToken issues an HS256 staff token for sess, valid for ttl. It is
// what service-to-service calls present on behalf of a staff member.
func SignStaffToken(secret string, sess session.Session, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errStaffAuthDisabled
	}
	if !sess.IsStaff() {
		return "", errors.New("staff session required")
	}
	now := time.Now()
	claims := StaffClaims{
		Name:  sess.Name,
		Email: sess.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// SessionConfig controls how callers are identified.
type SessionConfig struct {
	// StaffSecret verifies bearer tokens of the admin app.
	StaffSecret string
	// TrustClientHeaders accepts X-Client-* identity headers, which only
	// the portal gateway may set.
	TrustClientHeaders bool
}

// Session puts a session.Session on the request context: staff for a valid
// bearer token, client for gateway identity headers, guest otherwise. An
// invalid bearer token is rejected rather than downgraded to guest.
func Session(cfg SessionConfig, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := session.Guest()
			if auth := r.Header.Get("Authorization"); auth != "" {
				if !strings.HasPrefix(auth, "Bearer ") {
					http.Error(w, "invalid authorization header", http.StatusUnauthorized)
					return
				}
				claims, err := ParseStaffToken(cfg.StaffSecret, strings.TrimPrefix(auth, "Bearer "))
				if err != nil {
					logger.Warn("rejected staff token", "error", err, "path", r.URL.Path)
					http.Error(w, "invalid token", http.StatusUnauthorized)
					return
				}
				sess = session.Session{
					Role:   session.RoleStaff,
					UserID: claims.Subject,
					Name:   claims.Name,
					Email:  claims.Email,
				}
			} else if id := strings.TrimSpace(r.Header.Get("X-Client-Id")); id != "" && cfg.TrustClientHeaders {
				sess = session.Session{
					Role:   session.RoleClient,
					UserID: id,
					Name:   strings.TrimSpace(r.Header.Get("X-Client-Name")),
					Email:  strings.TrimSpace(r.Header.Get("X-Client-Email")),
					Phone:  strings.TrimSpace(r.Header.Get("X-Client-Phone")),
				}
			}
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
		})
	}
}

// RequireStaff rejects callers without a staff session.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !session.FromContext(r.Context()).IsStaff() {
			http.Error(w, "staff session required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
