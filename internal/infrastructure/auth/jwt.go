package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/marketplace/returns/internal/domain/tracking"
	"github.com/marketplace/returns/internal/infrastructure/config"
)

// Common errors
var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrExpiredToken      = errors.New("token has expired")
	ErrInvalidClaims     = errors.New("invalid token claims")
	ErrTokenNotYetValid  = errors.New("token is not yet valid")
	ErrMissingVendorID   = errors.New("missing vendor_id in claims")
	ErrMissingActorID    = errors.New("missing actor_id in claims")
	ErrInvalidActorType  = errors.New("invalid actor_type in claims")
	ErrIssuerMismatch    = errors.New("token issuer mismatch")
	ErrSigningSecretSize = errors.New("signing secret must be at least 32 bytes")
)

// Claims carried by tokens of the identity service
type Claims struct {
	jwt.RegisteredClaims
	VendorID  string `json:"vendor_id"`
	ActorType string `json:"actor_type"`
	ActorID   string `json:"actor_id"`
}

// VendorUUID returns the vendor scope of the token
func (c *Claims) VendorUUID() (uuid.UUID, error) {
	return uuid.Parse(c.VendorID)
}

// Actor returns who the token speaks for
func (c *Claims) Actor() tracking.Actor {
	return tracking.Actor{Type: tracking.ActorType(c.ActorType), ID: c.ActorID}
}

// TokenService verifies HS256 bearer tokens. Issue exists for tooling and tests;
// production tokens come from the identity service.
type TokenService struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenService creates a token service from the auth configuration
func NewTokenService(cfg config.AuthConfig) *TokenService {
	return &TokenService{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		now:    time.Now,
	}
}

// IssueInput describes the token to mint
type IssueInput struct {
	VendorID uuid.UUID
	Actor    tracking.Actor
	TTL      time.Duration
}

// Issue signs a token for the given actor
func (s *TokenService) Issue(input IssueInput) (string, error) {
	if len(s.secret) < 32 {
		return "", ErrSigningSecretSize
	}
	now := s.now()
	ttl := input.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   input.Actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		VendorID:  input.VendorID.String(),
		ActorType: string(input.Actor.Type),
		ActorID:   input.Actor.ID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses and validates a bearer token
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrIssuerMismatch
	}
	if _, err := claims.VendorUUID(); err != nil {
		return nil, ErrMissingVendorID
	}
	if claims.ActorID == "" {
		return nil, ErrMissingActorID
	}
	switch tracking.ActorType(claims.ActorType) {
	case tracking.ActorVendor, tracking.ActorAdmin, tracking.ActorSystem:
	default:
		// courier callbacks authenticate by signature, never by bearer token
		return nil, ErrInvalidActorType
	}

	return claims, nil
}
