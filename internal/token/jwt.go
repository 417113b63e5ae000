package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/tasktracker/internal/model"
)

// DefaultTTL is the session lifetime used when none is configured.
const DefaultTTL = 24 * time.Hour

const typeAccess = "access"

// Claims represents JWT claims carrying the session identity.
type Claims struct {
	jwt.RegisteredClaims
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	TokenType string    `json:"typ"`
}

// JWT issues and verifies session credentials signed with a symmetric HMAC key.
type JWT struct {
	secretKey string
	ttl       time.Duration
	now       func() time.Time
}

// NewJWT creates a new JWT session issuer with the provided secret key.
func NewJWT(secretKey string, ttl time.Duration) *JWT {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &JWT{
		secretKey: secretKey,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Issue creates a session token for an authenticated user.
func (j *JWT) Issue(user model.User) (string, error) {
	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
		UserID:    user.ID,
		Username:  user.Username,
		TokenType: typeAccess,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// Parse validates a session token and returns the session it carries.
// Every rejection wraps model.ErrInvalidCredentials.
func (j *JWT) Parse(tokenString string) (model.Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	}, jwt.WithTimeFunc(j.now), jwt.WithExpirationRequired())
	if err != nil {
		return model.Session{}, fmt.Errorf("%w: failed to parse session token: %w", model.ErrInvalidCredentials, err)
	}
	if !token.Valid {
		return model.Session{}, fmt.Errorf("%w: session token is invalid", model.ErrInvalidCredentials)
	}
	if claims.TokenType != typeAccess {
		return model.Session{}, fmt.Errorf("%w: token type mismatch: %s", model.ErrInvalidCredentials, claims.TokenType)
	}
	if claims.UserID == uuid.Nil {
		return model.Session{}, fmt.Errorf("%w: session token has no user", model.ErrInvalidCredentials)
	}

	return model.Session{
		UserID:   claims.UserID,
		Username: claims.Username,
	}, nil
}
