package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/theapemachine/neurostore/pkg/errors"
)

/*
Service issues and verifies the bearer tokens the memory API accepts.
Tokens are HMAC-signed with a per-process key; the subject claim is the
owner id the token grants access to.  A token bucket in front of
verification bounds how fast clients can hammer the API.
*/
type Service struct {
	signingKey []byte
	ttl        time.Duration
	limiter    *RateLimiter
}

type ServiceOption func(*Service)

func NewService(signingKey string, options ...ServiceOption) *Service {
	service := &Service{
		signingKey: []byte(signingKey),
		ttl:        24 * time.Hour,
		limiter:    NewRateLimiter(100, time.Minute),
	}

	for _, option := range options {
		option(service)
	}

	return service
}

func WithTTL(ttl time.Duration) ServiceOption {
	return func(service *Service) {
		if ttl > 0 {
			service.ttl = ttl
		}
	}
}

func WithRateLimit(requests int64, interval time.Duration) ServiceOption {
	return func(service *Service) {
		service.limiter = NewRateLimiter(requests, interval)
	}
}

/*
IssueToken mints a token whose subject is the owner id.
*/
func (service *Service) IssueToken(ownerID string) (string, error) {
	if ownerID == "" {
		return "", errors.ErrValidation.WithMessagef("token requires an owner id")
	}

	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": ownerID,
		"iat": now.Unix(),
		"exp": now.Add(service.ttl).Unix(),
	})

	signed, err := token.SignedString(service.signingKey)

	if err != nil {
		return "", errors.ErrValidation.WithMessagef("failed to sign token: %s", err)
	}

	return signed, nil
}

/*
Allow consumes one rate-limit token.  The HTTP middleware calls this
before Authenticate so a throttled client never reaches token parsing.
*/
func (service *Service) Allow() bool {
	return service.limiter.Allow()
}

/*
Authenticate verifies a bearer header and returns the owner id the
token was issued for.
*/
func (service *Service) Authenticate(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.ErrValidation.WithMessagef("missing authorization header")
	}

	raw := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.ErrValidation.WithMessagef(
				"unexpected signing method %v", token.Header["alg"],
			)
		}

		return service.signingKey, nil
	})

	if err != nil || !token.Valid {
		return "", errors.ErrValidation.WithMessagef("invalid token")
	}

	subject, err := token.Claims.GetSubject()

	if err != nil || subject == "" {
		return "", errors.ErrValidation.WithMessagef("token has no subject")
	}

	return subject, nil
}
