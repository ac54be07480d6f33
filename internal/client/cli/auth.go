package cli

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aliceout/nodea/internal/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for a username and a password (twice) and creates the
// account. The password never leaves the process; only the salt and the
// verifier of the derived key are sent.
func (a *App) Register(ctx context.Context) error {
	userName := a.config.Username
	if userName == "" {
		var err error
		if userName, err = getSimpleText(a.reader, "Choose a username", a.prompt); err != nil {
			return err
		}
	}

	password, err := getPassword(a.reader, a.prompt)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := getPassword(a.reader, a.prompt)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(password, confirm) {
		return fmt.Errorf("%w: passwords do not match", common.ErrorValidation)
	}

	userID, err := a.auth.Register(ctx, userName, password)
	if err != nil {
		return err
	}

	a.printf("%s account %s created (%s)\n", color.GreenString("✓"), color.CyanString(userName), userID)
	return nil
}

// Login opens a session now instead of on the first command that needs it.
func (a *App) Login(ctx context.Context) error {
	if a.isLoggedIn() {
		a.logout(ctx)
	}
	sess, err := a.ensureSession(ctx)
	if err != nil {
		return err
	}
	a.printf("%s logged in as %s\n", color.GreenString("✓"), color.CyanString(sess.Username))
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.logout(ctx)
	a.printf("logged out\n")
	return nil
}

func (r *runner) registerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Creates a new account on the server.

The password is stretched locally into the encryption key. Only a random
salt and a hash of the key are sent; the key itself is never stored.`,
		Args: cobra.NoArgs,
		RunE: r.withApp(func(ctx context.Context, a *App, _ []string) error {
			return a.Register(ctx)
		}),
	}
}

func (r *runner) pingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server is reachable",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(ctx context.Context, a *App, _ []string) error {
			if err := a.auth.Ping(ctx); err != nil {
				return err
			}
			a.printf("%s %s is up\n", color.GreenString("✓"), a.config.ServerURL)
			return nil
		}),
	}
}
