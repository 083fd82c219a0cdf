package cli

import (
	"errors"

	"github.com/dmitrijs2005/myhealthdata/internal/client/services"
	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/spf13/cobra"
)

func newAccountCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Register, sign in and out of the cloud backend",
	}
	cmd.AddCommand(
		newCredentialCmd(rt, "register", "Create a cloud account", func(a *App, cmd *cobra.Command, login string, pw []byte) error {
			if err := a.account.Register(cmd.Context(), login, pw); err != nil {
				return err
			}
			a.printf("Registered %s. Run `phr account login` next.\n", login)
			return nil
		}),
		newCredentialCmd(rt, "login", "Sign in and store the session", func(a *App, cmd *cobra.Command, login string, pw []byte) error {
			if err := a.account.Login(cmd.Context(), login, pw); err != nil {
				return err
			}
			a.printf("Signed in as %s\n", login)
			return nil
		}),
		newLogoutCmd(rt),
		newWhoAmICmd(rt),
	)
	return cmd
}

type credentialFunc func(a *App, cmd *cobra.Command, login string, pw []byte) error

func newCredentialCmd(rt *runtime, use, short string, run credentialFunc) *cobra.Command {
	var (
		login       string
		passwdStdin bool
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := rt.app
			if login == "" {
				var err error
				if login, err = GetSimpleText(a.in, "Login", a.out); err != nil {
					return err
				}
			}
			if login == "" {
				return errors.New("login is required")
			}

			var (
				pw  []byte
				err error
			)
			if passwdStdin {
				pw, err = ReadSecretLine(a.in)
			} else {
				pw, err = GetPassword(a.out)
			}
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pw)

			return run(a, cmd, login, pw)
		},
	}
	cmd.Flags().StringVarP(&login, "login", "l", "", "account login")
	cmd.Flags().BoolVar(&passwdStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func newLogoutCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.app.account.Logout(cmd.Context()); err != nil {
				return err
			}
			rt.app.printf("Signed out\n")
			return nil
		},
	}
}

func newWhoAmICmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the signed-in login and check the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := rt.withTimeout(cmd)
			defer cancel()

			login, err := rt.app.account.RestoreSession(ctx)
			if errors.Is(err, services.ErrNotLoggedIn) {
				rt.app.printf("Not signed in\n")
				return nil
			}
			if err != nil {
				return err
			}
			rt.app.printf("Signed in as %s\n", login)
			if err := rt.app.account.Ping(ctx); err != nil {
				rt.app.printf("Backend unreachable: %v\n", err)
			}
			return nil
		},
	}
}
