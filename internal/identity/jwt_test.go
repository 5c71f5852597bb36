package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

// ---------------------------------------------------------------------------
// UserIDFromToken
// ---------------------------------------------------------------------------

func TestUserIDFromToken_Valid(t *testing.T) {
	v := NewTokenVerifier(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "user-1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	userID, err := v.UserIDFromToken(token)

	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestUserIDFromToken_StripsBearerPrefix(t *testing.T) {
	v := NewTokenVerifier(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{"user_id": "user-1"})

	userID, err := v.UserIDFromToken("Bearer " + token)

	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestUserIDFromToken_WrongSecret(t *testing.T) {
	v := NewTokenVerifier(testSecret)
	token := signToken(t, "other-secret", jwt.MapClaims{"user_id": "user-1"})

	_, err := v.UserIDFromToken(token)

	assert.Error(t, err)
}

func TestUserIDFromToken_Expired(t *testing.T) {
	v := NewTokenVerifier(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "user-1",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})

	_, err := v.UserIDFromToken(token)

	assert.Error(t, err)
}

func TestUserIDFromToken_MissingUserIDClaim(t *testing.T) {
	v := NewTokenVerifier(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{"sub": "user-1"})

	_, err := v.UserIDFromToken(token)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no user_id claim")
}

func TestUserIDFromToken_Garbage(t *testing.T) {
	v := NewTokenVerifier(testSecret)

	_, err := v.UserIDFromToken("not.a.token")

	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Context Provider
// ---------------------------------------------------------------------------

func TestContextProvider_RoundTrip(t *testing.T) {
	ctx := WithUserID(context.Background(), "user-1")

	userID, ok := ContextProvider{}.CurrentUserID(ctx)

	assert.True(t, ok)
	assert.Equal(t, "user-1", userID)
}

func TestContextProvider_Guest(t *testing.T) {
	_, ok := ContextProvider{}.CurrentUserID(context.Background())

	assert.False(t, ok)
}

// ---------------------------------------------------------------------------
// Notifier
// ---------------------------------------------------------------------------

func TestNotifier_FansOut(t *testing.T) {
	n := NewNotifier()
	var got []Change
	n.Subscribe(func(_ context.Context, c Change) { got = append(got, c) })
	n.Subscribe(func(_ context.Context, c Change) { got = append(got, c) })

	n.SignedIn(context.Background(), "user-1")
	n.SignedOut(context.Background())

	require.Len(t, got, 4)
	assert.True(t, got[0].SignedIn())
	assert.Equal(t, "user-1", got[0].UserID)
	assert.False(t, got[3].SignedIn())
}
