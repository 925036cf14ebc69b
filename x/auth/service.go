// Package auth resolves bearer tokens into identities
package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/btfhub/groupchat/core"
)

var tracer = otel.Tracer("auth")

// Service is the interface for the auth service
type Service interface {
	// ValidateToken resolves a bearer token into an identity. Any
	// failure yields the anonymous identity together with the error;
	// the caller decides whether that means rejection.
	ValidateToken(ctx context.Context, token string) (core.Identity, error)
	IssueToken(ctx context.Context, user core.User) (string, error)
	Identify(next echo.HandlerFunc) echo.HandlerFunc
}

type service struct {
	repository Repository
	config     core.Config
}

// NewService creates a new auth service
func NewService(repository Repository, config core.Config) Service {
	return &service{repository: repository, config: config}
}

func (s *service) ValidateToken(ctx context.Context, tokenStr string) (core.Identity, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.ValidateToken")
	defer span.End()

	if tokenStr == "" {
		return core.Anonymous(), core.NewErrorUnauthenticated()
	}

	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.config.Auth.Secret), nil
	})
	if err != nil || !token.Valid {
		span.RecordError(err)
		return core.Anonymous(), core.NewErrorUnauthenticated()
	}

	if s.config.Auth.Issuer != "" && claims.Issuer != s.config.Auth.Issuer {
		span.RecordError(fmt.Errorf("token is not for this service"))
		return core.Anonymous(), core.NewErrorUnauthenticated()
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		span.RecordError(err)
		return core.Anonymous(), core.NewErrorUnauthenticated()
	}

	user, err := s.repository.GetUser(ctx, uint(userID))
	if err != nil {
		span.RecordError(err)
		return core.Anonymous(), core.NewErrorUnauthenticated()
	}

	return core.Identity{
		UserID:          user.ID,
		Role:            user.Role,
		IsStaff:         user.IsStaff,
		IsAuthenticated: true,
	}, nil
}

func (s *service) IssueToken(ctx context.Context, user core.User) (string, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.IssueToken")
	defer span.End()

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(user.ID), 10),
		Issuer:    s.config.Auth.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.config.Auth.ExpireMinutes) * time.Minute)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Auth.Secret))
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	return signed, nil
}
