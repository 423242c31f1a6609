package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/golang-jwt/jwt/v4"
)

const (
	ErrorUnauthorized = "SMS_UNAUTHORIZED"
	tokenIssuer       = "smsbridge"
)

// Claims identifies the caller of the /v1 API.
type Claims struct {
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 bearer token for subject that expires after ttl.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("auth secret is required")
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}

	now := time.Now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ValidateToken checks signature, expiry and issuer.
func ValidateToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if !claims.VerifyIssuer(tokenIssuer, true) {
		return nil, errors.New("unexpected token issuer")
	}
	return claims, nil
}

// requireToken rejects requests without a valid bearer token. An empty secret
// disables the check.
func (s *Service) requireToken(next http.Handler) http.Handler {
	secret := strings.TrimSpace(s.cfg.AuthSecret)
	if secret == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			s.writeError(w, unauthorized("missing bearer token"))
			return
		}

		claims, err := ValidateToken(secret, raw)
		if err != nil {
			s.log.Warn("Rejected API token", "path", r.URL.Path, "error", err)
			s.writeError(w, unauthorized("invalid bearer token"))
			return
		}

		s.log.Debug("API request authorized", "path", r.URL.Path, "subject", claims.Subject)
		next.ServeHTTP(w, r)
	})
}

// bearerToken reads the Authorization header, falling back to the
// access_token query parameter for websocket clients that cannot set headers.
func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, token, found := strings.Cut(header, " "); found && strings.EqualFold(scheme, "Bearer") {
		token = strings.TrimSpace(token)
		return token, token != ""
	}

	token := strings.TrimSpace(r.URL.Query().Get("access_token"))
	return token, token != ""
}

func unauthorized(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(ErrorUnauthorized)
}
