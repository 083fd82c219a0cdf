// Package services contains application services for the phr client.
// This file defines the account service: register, login with a
// password-derived verifier, session persistence and logout.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/myhealthdata/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/myhealthdata/internal/client/store"
	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/dmitrijs2005/myhealthdata/internal/cryptox"
)

// Metadata keys of the stored session.
const (
	keyLogin       = "session/login"
	keyAccessToken = "session/access_token"
	sessionPrefix  = "session/"
)

var ErrNotLoggedIn = errors.New("not logged in")

// AccountClient is the subset of the cloud client the account service needs.
type AccountClient interface {
	Register(ctx context.Context, login string, salt []byte, verifier []byte) error
	GetSalt(ctx context.Context, login string) ([]byte, error)
	Login(ctx context.Context, login string, verifier []byte) (string, error)
	Ping(ctx context.Context) error
	SetAccessToken(token string)
}

// AccountService manages the signed-in cloud account.
//
// The password never leaves the device: the server stores a salt and a
// verifier derived from the password with argon2, and login sends the
// verifier candidate.
type AccountService interface {
	Register(ctx context.Context, login string, password []byte) error
	Login(ctx context.Context, login string, password []byte) error
	// RestoreSession loads a stored token into the client. It returns
	// ErrNotLoggedIn when there is none.
	RestoreSession(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error
}

type accountService struct {
	client AccountClient
	store  *store.Store
}

func NewAccountService(client AccountClient, st *store.Store) AccountService {
	return &accountService{client: client, store: st}
}

func (a *accountService) Register(ctx context.Context, login string, password []byte) error {
	salt := common.GenerateRandByteArray(cryptox.SaltLength)
	key := cryptox.DeriveMasterKey(password, salt)
	defer common.WipeByteArray(key)
	verifier := cryptox.MakeVerifier(key)

	if err := a.client.Register(ctx, login, salt, verifier); err != nil {
		return fmt.Errorf("register error: %w", err)
	}
	return nil
}

// Login authenticates against the server and stores the session so later
// commands can reuse it.
func (a *accountService) Login(ctx context.Context, login string, password []byte) error {
	salt, err := a.client.GetSalt(ctx, login)
	if err != nil {
		return fmt.Errorf("get salt error: %w", err)
	}

	key := cryptox.DeriveMasterKey(password, salt)
	defer common.WipeByteArray(key)
	verifier := cryptox.MakeVerifier(key)

	token, err := a.client.Login(ctx, login, verifier)
	if err != nil {
		return fmt.Errorf("login error: %w", err)
	}

	err = a.store.Update(ctx, func(ctx context.Context, repos store.Repos) error {
		return saveSession(ctx, repos.Metadata, login, token)
	})
	if err != nil {
		return fmt.Errorf("session saving error: %w", err)
	}
	return nil
}

func saveSession(ctx context.Context, repo metadata.Repository, login, token string) error {
	if err := repo.Set(ctx, keyLogin, []byte(login)); err != nil {
		return err
	}
	return repo.Set(ctx, keyAccessToken, []byte(token))
}

func (a *accountService) RestoreSession(ctx context.Context) (string, error) {
	var login, token []byte
	err := a.store.View(ctx, func(ctx context.Context, repos store.Repos) error {
		var err error
		if login, err = repos.Metadata.Get(ctx, keyLogin); err != nil {
			return err
		}
		token, err = repos.Metadata.Get(ctx, keyAccessToken)
		return err
	})
	if err != nil {
		return "", err
	}
	if len(token) == 0 {
		return "", ErrNotLoggedIn
	}
	a.client.SetAccessToken(string(token))
	return string(login), nil
}

// Logout forgets the stored session. Records and their cloud state stay.
func (a *accountService) Logout(ctx context.Context) error {
	a.client.SetAccessToken("")
	return a.store.Update(ctx, func(ctx context.Context, repos store.Repos) error {
		return repos.Metadata.DeletePrefix(ctx, sessionPrefix)
	})
}

func (a *accountService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}
