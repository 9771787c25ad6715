package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"store-assistant/internal/domain"
)

const testSecret = "0123456789abcdef-test"

func TestIssueVerify_Guest(t *testing.T) {
	s, err := NewSigner(testSecret)
	require.NoError(t, err)

	nonce, expires, err := s.Issue("sess-1", nil, time.Hour)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := s.Verify(nonce)
	require.NoError(t, err)
	require.Equal(t, "sess-1", claims.SessionID)
	require.Nil(t, claims.Identity())
}

func TestIssueVerify_Customer(t *testing.T) {
	s, _ := NewSigner(testSecret)
	nonce, _, err := s.Issue("sess-2", &domain.Identity{CustomerID: 12, Email: "ana@example.com", FirstName: "Ana", LastName: "Novak"}, time.Hour)
	require.NoError(t, err)

	claims, err := s.Verify(nonce)
	require.NoError(t, err)
	require.Equal(t, &domain.Identity{CustomerID: 12, Email: "ana@example.com", FirstName: "Ana", LastName: "Novak"}, claims.Identity())
}

func TestVerify_Rejects(t *testing.T) {
	s, _ := NewSigner(testSecret)
	other, _ := NewSigner("another-secret-of-length")

	foreign, _, err := other.Issue("sess", nil, time.Hour)
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	s.now = func() time.Time { return past }
	expired, _, err := s.Issue("sess", nil, time.Hour)
	require.NoError(t, err)
	s.now = time.Now

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{SessionID: "sess"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	valid, _, _ := s.Issue("sess", nil, time.Hour)
	tampered := valid[:strings.LastIndex(valid, ".")+1] + "AAAA"

	for name, nonce := range map[string]string{
		"empty":    "",
		"garbage":  "not-a-jwt",
		"foreign":  foreign,
		"expired":  expired,
		"alg none": none,
		"tampered": tampered,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Verify(nonce)
			require.ErrorIs(t, err, ErrInvalidNonce)
		})
	}
}

func TestNewSigner_ShortSecret(t *testing.T) {
	_, err := NewSigner("short")
	require.Error(t, err)
}

func TestIssue_EmptySession(t *testing.T) {
	s, _ := NewSigner(testSecret)
	_, _, err := s.Issue(" ", nil, time.Hour)
	require.Error(t, err)
}
