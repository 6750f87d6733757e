package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	m := NewManager("secret", "collegestar", time.Hour)

	raw, err := m.Issue("u1", "asha@example.com")
	require.NoError(t, err)

	claims, err := m.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "asha@example.com", claims.Email)
	assert.Equal(t, "collegestar", claims.Issuer)
}

func TestParseRejects(t *testing.T) {
	m := NewManager("secret", "collegestar", time.Hour)
	raw, err := m.Issue("u1", "")
	require.NoError(t, err)

	other := NewManager("other", "collegestar", time.Hour)
	_, err = other.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := NewManager("secret", "someone-else", time.Hour)
	_, err = wrongIssuer.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseExpired(t *testing.T) {
	m := NewManager("secret", "collegestar", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	raw, err := m.Issue("u1", "")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsNoneAlgorithm(t *testing.T) {
	m := NewManager("secret", "collegestar", time.Hour)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: "collegestar"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
