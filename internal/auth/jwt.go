// Package auth issues and verifies the bearer tokens that guard admin routes.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeAdmin is the only accepted value of the typ claim.
const TokenTypeAdmin = "admin"

// DefaultAdminTokenExpiry is the lifetime of tokens issued without an explicit TTL.
const DefaultAdminTokenExpiry = 24 * time.Hour

// DefaultLeeway is the clock skew tolerated when checking exp and iat.
const DefaultLeeway = 30 * time.Second

// Issuer is written to the iss claim and required on verification.
const Issuer = "ratewings"

var (
	// ErrInvalidToken is returned when token validation fails.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")

	// ErrEmptySubject is returned when a token is requested without a subject.
	ErrEmptySubject = errors.New("subject cannot be empty")

	// ErrEmptySecret is returned when the service has no signing secret.
	ErrEmptySecret = errors.New("signing secret cannot be empty")

	// ErrMissingBearer is returned when an Authorization header is absent or not a bearer token.
	ErrMissingBearer = errors.New("missing bearer token")
)

// Claims are the JWT claims of an admin token.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}

// TokenService signs and verifies HS256 admin tokens.
// Tokens are signed with the current secret and accepted with either the
// current or the previous secret, so secrets can be rotated without downtime.
type TokenService struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
	now            func() time.Time
}

// NewTokenService creates a TokenService. previousSecret may be empty.
func NewTokenService(currentSecret, previousSecret string) *TokenService {
	svc := &TokenService{
		currentSecret: []byte(currentSecret),
		leeway:        DefaultLeeway,
		now:           time.Now,
	}
	if previousSecret != "" {
		svc.previousSecret = []byte(previousSecret)
	}
	return svc
}

// Issue creates an admin token for subject. ttl <= 0 uses DefaultAdminTokenExpiry.
func (s *TokenService) Issue(subject string, ttl time.Duration) (string, error) {
	if len(s.currentSecret) == 0 {
		return "", ErrEmptySecret
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", ErrEmptySubject
	}
	if ttl <= 0 {
		ttl = DefaultAdminTokenExpiry
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: TokenTypeAdmin,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.currentSecret)
}

// Verify parses and validates an admin token and returns its claims.
// Expired tokens return ErrExpiredToken; every other failure returns ErrInvalidToken.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, s.currentSecret)
	if err != nil && s.previousSecret != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		claims, err = s.parse(tokenString, s.previousSecret)
	}
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if claims.Type != TokenTypeAdmin || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) parse(tokenString string, secret []byte) (*Claims, error) {
	if len(secret) == 0 {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingBearer
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingBearer
	}
	return token, nil
}
