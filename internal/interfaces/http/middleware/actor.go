package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketplace/returns/internal/domain/shared"
	"github.com/marketplace/returns/internal/domain/tracking"
	"github.com/marketplace/returns/internal/infrastructure/auth"
	"github.com/marketplace/returns/internal/infrastructure/logger"
	"github.com/marketplace/returns/internal/interfaces/http/dto"
)

// Actor context keys and headers
const (
	ActorKey        = "actor"
	VendorIDKey     = "vendor_id"
	AuthHeaderKey   = "Authorization"
	BearerPrefix    = "Bearer "
	VendorIDHeader  = "X-Vendor-ID"
	ActorTypeHeader = "X-Actor-Type"
	ActorIDHeader   = "X-Actor-ID"
)

// TokenVerifier validates bearer tokens
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// ActorAuthConfig holds configuration for the actor middleware
type ActorAuthConfig struct {
	// Tokens verifies bearer tokens; nil disables bearer authentication
	Tokens TokenVerifier
	// AllowHeader accepts X-Vendor-ID / X-Actor-* when no bearer token is sent
	AllowHeader bool
	Logger      *zap.Logger
}

// ActorAuth resolves the acting vendor and actor for every request, from a
// bearer token or (in development) from identity headers
func ActorAuth(cfg ActorAuthConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		var (
			vendorID uuid.UUID
			actor    tracking.Actor
			err      error
		)

		authHeader := c.GetHeader(AuthHeaderKey)
		switch {
		case authHeader != "" && cfg.Tokens != nil:
			vendorID, actor, err = fromBearer(cfg.Tokens, authHeader)
		case authHeader == "" && cfg.AllowHeader:
			vendorID, actor, err = fromHeaders(c)
		default:
			err = auth.ErrInvalidToken
		}
		if err != nil {
			log.Warn("Actor authentication failed",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
			)
			abortUnauthorized(c, err)
			return
		}

		c.Set(VendorIDKey, vendorID)
		c.Set(ActorKey, actor)

		ctx := logger.WithVendorID(c.Request.Context(), vendorID.String())
		ctx = logger.WithActor(ctx, string(actor.Type)+":"+actor.ID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func fromBearer(tokens TokenVerifier, header string) (uuid.UUID, tracking.Actor, error) {
	if !strings.HasPrefix(header, BearerPrefix) {
		return uuid.Nil, tracking.Actor{}, auth.ErrInvalidToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	if token == "" {
		return uuid.Nil, tracking.Actor{}, auth.ErrInvalidToken
	}
	claims, err := tokens.Verify(token)
	if err != nil {
		return uuid.Nil, tracking.Actor{}, err
	}
	vendorID, err := claims.VendorUUID()
	if err != nil {
		return uuid.Nil, tracking.Actor{}, auth.ErrMissingVendorID
	}
	return vendorID, claims.Actor(), nil
}

func fromHeaders(c *gin.Context) (uuid.UUID, tracking.Actor, error) {
	vendorID, err := uuid.Parse(c.GetHeader(VendorIDHeader))
	if err != nil {
		return uuid.Nil, tracking.Actor{}, auth.ErrMissingVendorID
	}
	actor := tracking.Actor{
		Type: tracking.ActorType(c.GetHeader(ActorTypeHeader)),
		ID:   c.GetHeader(ActorIDHeader),
	}
	if actor.Type == "" {
		actor.Type = tracking.ActorVendor
	}
	if actor.ID == "" {
		return uuid.Nil, tracking.Actor{}, auth.ErrMissingActorID
	}
	switch actor.Type {
	case tracking.ActorVendor, tracking.ActorAdmin, tracking.ActorSystem:
	default:
		return uuid.Nil, tracking.Actor{}, auth.ErrInvalidActorType
	}
	return vendorID, actor, nil
}

func abortUnauthorized(c *gin.Context, err error) {
	code := dto.ErrCodeInvalidToken
	message := "Invalid or missing credentials"
	if errors.Is(err, auth.ErrExpiredToken) {
		code = dto.ErrCodeTokenExpired
		message = "Token has expired"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(code, message, c.GetString("request_id")))
}

// RequireActorTypes lets only the listed actor types through
func RequireActorTypes(types ...tracking.ActorType) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if ok {
			for _, t := range types {
				if actor.Type == t {
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
			shared.CodeForbidden,
			"Actor type is not allowed to perform this action",
			c.GetString("request_id"),
		))
	}
}

// GetVendorID returns the vendor resolved by ActorAuth
func GetVendorID(c *gin.Context) (uuid.UUID, bool) {
	if v, exists := c.Get(VendorIDKey); exists {
		if id, ok := v.(uuid.UUID); ok {
			return id, true
		}
	}
	return uuid.Nil, false
}

// GetActor returns the actor resolved by ActorAuth
func GetActor(c *gin.Context) (tracking.Actor, bool) {
	if v, exists := c.Get(ActorKey); exists {
		if a, ok := v.(tracking.Actor); ok {
			return a, true
		}
	}
	return tracking.Actor{}, false
}
