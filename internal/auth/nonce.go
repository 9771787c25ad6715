// Package auth issues and verifies the chat nonce: an HS256 JWT that binds
// a browser session id and, optionally, a logged-in storefront customer.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"store-assistant/internal/domain"
)

const issuer = "store-assistant"

var ErrInvalidNonce = errors.New("auth: invalid nonce")

// Claims carried by a chat nonce.
type Claims struct {
	jwt.RegisteredClaims
	SessionID  string `json:"sid"`
	CustomerID string `json:"cid,omitempty"`
	Email      string `json:"email,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
}

// Identity returns the customer identity, or nil for guests.
func (c *Claims) Identity() *domain.Identity {
	if c.CustomerID == "" && c.Email == "" {
		return nil
	}
	id, _ := strconv.ParseInt(c.CustomerID, 10, 64)
	return &domain.Identity{
		CustomerID: id,
		Email:      c.Email,
		FirstName:  c.GivenName,
		LastName:   c.FamilyName,
	}
}

type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret string) (*Signer, error) {
	if len(strings.TrimSpace(secret)) < 16 {
		return nil, errors.New("auth: nonce secret must be at least 16 characters")
	}
	return &Signer{secret: []byte(secret), now: time.Now}, nil
}

// Issue mints a nonce for sessionID valid for ttl.
func (s *Signer) Issue(sessionID string, identity *domain.Identity, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", time.Time{}, errors.New("auth: session id must not be empty")
	}
	now := s.now().UTC()
	expires := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		SessionID: sessionID,
	}
	if identity != nil {
		if identity.CustomerID > 0 {
			claims.CustomerID = strconv.FormatInt(identity.CustomerID, 10)
		}
		claims.Email = identity.Email
		claims.GivenName = identity.FirstName
		claims.FamilyName = identity.LastName
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign nonce: %w", err)
	}
	return token, expires, nil
}

// Verify parses a nonce. Any failure is reported as ErrInvalidNonce.
func (s *Signer) Verify(nonce string) (*Claims, error) {
	if strings.TrimSpace(nonce) == "" {
		return nil, ErrInvalidNonce
	}
	token, err := jwt.ParseWithClaims(nonce, &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNonce, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidNonce
	}
	return claims, nil
}
