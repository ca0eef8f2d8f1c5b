package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/studygalaxy/internal/models"
	"github.com/markdave123-py/studygalaxy/internal/testutil"
)

func TestSignupAndLogin(t *testing.T) {
	svc := NewUserService(testutil.NewMockDB(), "secret", time.Hour)
	ctx := context.Background()

	sess, err := svc.Signup(ctx, " Ada@Example.com ", "correct horse", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", sess.User.Email)
	assert.NotEqual(t, "correct horse", sess.User.PasswordHash)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(sess.Token, claims, func(*jwt.Token) (any, error) { return []byte("secret"), nil })
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, claims["user_id"])

	_, err = svc.Signup(ctx, "ada@example.com", "another pass", "")
	assert.ErrorIs(t, err, models.ErrUserExists)

	again, err := svc.Login(ctx, "ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, again.User.ID)

	_, err = svc.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	_, err = svc.Login(ctx, "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestSignupValidates(t *testing.T) {
	svc := NewUserService(testutil.NewMockDB(), "secret", time.Hour)

	_, err := svc.Signup(context.Background(), "not-an-email", "long enough", "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = svc.Signup(context.Background(), "a@b.co", "short", "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
