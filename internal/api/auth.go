package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sapliy/editorial-notifications/pkg/jsonutil"
)

// ScopeInternal marks service tokens allowed on /internal routes.
const ScopeInternal = "internal"

// Claims is the bearer token payload. Subject carries the user id of user
// tokens.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// IssueToken signs an HS256 bearer token.
func IssueToken(secret []byte, subject, scope string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scope: scope,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

var errUnauthorized = errors.New("missing or invalid bearer token")

func parseBearer(r *http.Request, secret []byte) (*Claims, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" || len(secret) == 0 {
		return nil, errUnauthorized
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errUnauthorized
	}
	return claims, nil
}

type userKey struct{}

// userID returns the authenticated user of the request.
func userID(ctx context.Context) int64 {
	id, _ := ctx.Value(userKey{}).(int64)
	return id
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := parseBearer(r, s.jwtSecret)
		if err != nil {
			jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, err.Error())
			return
		}
		id, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil || id <= 0 {
			jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, "token subject is not a user")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, id)))
	})
}

func (s *Server) requireService(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := parseBearer(r, s.jwtSecret)
		if err != nil {
			jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, err.Error())
			return
		}
		if claims.Scope != ScopeInternal {
			jsonutil.WriteErrorJSON(w, http.StatusForbidden, "internal scope required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
