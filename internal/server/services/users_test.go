package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/dmitrijs2005/myhealthdata/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T, b *memBackend) *UserService {
	t.Helper()
	db, _ := newTxDB(t, 0)
	return NewUserService(db, memRepoManager{b}, testConfig("development"))
}

func TestRegister(t *testing.T) {
	b := newMemBackend()
	s := newUserService(t, b)

	u, err := s.Register(context.Background(), " alice ", []byte("salt"), []byte("ver"))
	require.NoError(t, err)
	assert.Equal(t, "alice", u.UserName)

	_, err = s.Register(context.Background(), "alice", []byte("salt"), []byte("ver"))
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestRegister_Validation(t *testing.T) {
	s := newUserService(t, newMemBackend())

	_, err := s.Register(context.Background(), "", []byte("salt"), []byte("ver"))
	require.ErrorIs(t, err, common.ErrorValidation)

	_, err = s.Register(context.Background(), "bob", nil, []byte("ver"))
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestGetSalt(t *testing.T) {
	b := newMemBackend()
	b.addUser("u-1", "alice")
	s := newUserService(t, b)

	salt, err := s.GetSalt(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("salt-alice"), salt)

	random, err := s.GetSalt(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Len(t, random, 32)

	b.failWith = errors.New("db down")
	_, err = s.GetSalt(context.Background(), "alice")
	require.ErrorIs(t, err, common.ErrorInternal)
}

func TestLogin(t *testing.T) {
	b := newMemBackend()
	b.addUser("u-1", "alice")
	s := newUserService(t, b)

	token, err := s.Login(context.Background(), "alice", []byte("ver-alice"))
	require.NoError(t, err)

	id, err := auth.ParseToken(token, s.jwtSecret)
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{UserID: "u-1", Login: "alice"}, id)
}

func TestLogin_Rejected(t *testing.T) {
	b := newMemBackend()
	b.addUser("u-1", "alice")
	s := newUserService(t, b)

	_, err := s.Login(context.Background(), "alice", []byte("wrong"))
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = s.Login(context.Background(), "ghost", []byte("ver"))
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	b.failWith = errors.New("db down")
	_, err = s.Login(context.Background(), "alice", []byte("ver-alice"))
	require.ErrorIs(t, err, common.ErrorInternal)
}
