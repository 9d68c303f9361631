// Package auth verifies bearer tokens issued by the identity service. The booking
// core only needs the caller's user id and role.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

var ErrUnauthorized = errors.New("unauthorized")

type Identity struct {
	UserID int64
	Role   string
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses an HS256 token and extracts sub and role. A missing role means customer.
func (v *Verifier) Verify(raw string) (Identity, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return Identity{}, fmt.Errorf("invalid token: %w", ErrUnauthorized)
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("invalid claims: %w", ErrUnauthorized)
	}

	var id Identity
	switch sub := claims["sub"].(type) {
	case float64:
		id.UserID = int64(sub)
	case string:
		parsed, err := strconv.ParseInt(sub, 10, 64)
		if err != nil {
			return Identity{}, fmt.Errorf("subject %q is not a user id: %w", sub, ErrUnauthorized)
		}
		id.UserID = parsed
	}
	if id.UserID <= 0 {
		return Identity{}, fmt.Errorf("missing subject: %w", ErrUnauthorized)
	}

	id.Role = RoleCustomer
	if role, ok := claims["role"].(string); ok && role != "" {
		id.Role = strings.ToLower(role)
	}
	return id, nil
}

// VerifyHeader accepts an Authorization header value of the form "Bearer <token>".
func (v *Verifier) VerifyHeader(header string) (Identity, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return Identity{}, fmt.Errorf("missing bearer token: %w", ErrUnauthorized)
	}
	return v.Verify(strings.TrimSpace(raw))
}

// Issue signs a token for userID. Used by tooling and tests; the service itself
// never logs anyone in.
func Issue(secret string, userID int64, role string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
