package master

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticator_VerifySecret(t *testing.T) {
	auth, err := NewAuthenticator("cluster-secret-1")
	require.NoError(t, err)

	assert.True(t, auth.VerifySecret("cluster-secret-1"))
	assert.False(t, auth.VerifySecret("wrong-secret"))
}

func TestAuthenticator_ChallengeResponseRoundTrip(t *testing.T) {
	auth, err := NewAuthenticator("cluster-secret-1")
	require.NoError(t, err)

	nonce, tag, err := auth.NewChallenge()
	require.NoError(t, err)
	assert.True(t, auth.VerifyResponse(nonce, tag))
}

func TestAuthenticator_RejectsTamperedResponse(t *testing.T) {
	auth, err := NewAuthenticator("cluster-secret-1")
	require.NoError(t, err)

	nonce, tag, err := auth.NewChallenge()
	require.NoError(t, err)

	tampered := append([]byte(nil), tag...)
	tampered[0] ^= 0xFF
	assert.False(t, auth.VerifyResponse(nonce, tampered))
}

func TestAuthenticator_RejectsWrongClusterSecret(t *testing.T) {
	authA, err := NewAuthenticator("cluster-secret-a")
	require.NoError(t, err)
	authB, err := NewAuthenticator("cluster-secret-b")
	require.NoError(t, err)

	nonce, tag, err := authA.NewChallenge()
	require.NoError(t, err)
	assert.False(t, authB.VerifyResponse(nonce, tag))
}
