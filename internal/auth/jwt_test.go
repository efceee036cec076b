package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateAndValidateToken(t *testing.T) {
	userID := uuid.New()

	token, err := GenerateToken(userID, "Ana Souza", testSecret, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	actor, err := ValidateToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, userID, actor.UserID)
	assert.Equal(t, "Ana Souza", actor.Name)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken(uuid.New(), "Ana Souza", testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken(token, "other-secret")
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	token, err := GenerateToken(uuid.New(), "Ana Souza", testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(token, testSecret)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	_, err := ValidateToken("not-a-token", testSecret)
	assert.Error(t, err)
}

func TestActorAuditName(t *testing.T) {
	id := uuid.New()

	named := Actor{UserID: id, Name: "Ana Souza"}
	assert.Equal(t, "Ana Souza", named.AuditName())

	anonymous := Actor{UserID: id}
	assert.Equal(t, id.String(), anonymous.AuditName())
}
