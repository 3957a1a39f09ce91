package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-hub/errors"
)

func Test_CreateUser_And_Lookup(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewUserRepository(newTestDB(t))

	userID, err := repository.CreateUser(ctx, "alice@example.com", "Alice", "hashed-secret")
	req.NoError(err)
	req.NotEmpty(userID)

	// Lookup by ID
	byID, err := repository.GetUserByID(ctx, userID)
	req.NoError(err)
	req.Equal("alice@example.com", byID.Email)
	req.Equal("Alice", byID.DisplayName)
	req.Equal("hashed-secret", byID.PasswordHash)

	// Lookup by email resolves through the index to the same record
	byEmail, err := repository.GetUserByEmail(ctx, "alice@example.com")
	req.NoError(err)
	req.Equal(byID.ID, byEmail.ID)
}

func Test_CreateUser_Rejects_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewUserRepository(newTestDB(t))

	_, err := repository.CreateUser(ctx, "alice@example.com", "Alice", "hash-1")
	req.NoError(err)

	_, err = repository.CreateUser(ctx, "alice@example.com", "Imposter", "hash-2")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_GetUser_Unknown(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewUserRepository(newTestDB(t))

	_, err := repository.GetUserByID(ctx, "no-such-id")
	req.ErrorIs(err, errors.ErrUserNotFound)

	_, err = repository.GetUserByEmail(ctx, "nobody@example.com")
	req.ErrorIs(err, errors.ErrUserNotFound)
}
