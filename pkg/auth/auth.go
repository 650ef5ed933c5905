package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/dmehra2102/checkout-service/pkg/apperr"
	"github.com/dmehra2102/checkout-service/pkg/respond"
)

const RoleAdmin = "admin"

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID int64
	Role   string
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CanAccess reports whether p may read or act on a resource owned by userID.
func (p Principal) CanAccess(userID int64) bool {
	return p.IsAdmin() || p.UserID == userID
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

type Authenticator struct {
	log    *slog.Logger
	secret []byte
}

func NewAuthenticator(log *slog.Logger, secret string) *Authenticator {
	return &Authenticator{log: log, secret: []byte(secret)}
}

// Issue signs a token for userID. Used by the seed command and tests; the
// login flow lives outside this service.
func (a *Authenticator) Issue(userID int64, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) Parse(token string) (Principal, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Principal{}, apperr.Authentication("Unauthenticated.")
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Principal{}, apperr.Authentication("Unauthenticated.")
	}
	return Principal{UserID: userID, Role: claims.Role}, nil
}

// tokenFromRequest accepts a bearer Authorization header or one of the
// custom token headers some hosting proxies leave intact.
func tokenFromRequest(r *http.Request) string {
	for _, h := range []string{"X-Api-Token", "X-Access-Token"} {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return v
		}
	}
	authz := r.Header.Get("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			respond.Error(w, a.log, apperr.Authentication("Unauthenticated."))
			return
		}
		p, err := a.Parse(token)
		if err != nil {
			a.log.Debug("token rejected", "path", r.URL.Path)
			respond.Error(w, a.log, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireAdmin must run after Middleware.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := FromContext(r.Context())
		if !ok {
			respond.Error(w, a.log, apperr.Authentication("Unauthenticated."))
			return
		}
		if !p.IsAdmin() {
			respond.Error(w, a.log, apperr.Forbidden("Admin access required."))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MustPrincipal returns the request principal or an authentication error.
func MustPrincipal(ctx context.Context) (Principal, error) {
	p, ok := FromContext(ctx)
	if !ok {
		return Principal{}, apperr.Authentication("Unauthenticated.")
	}
	return p, nil
}
