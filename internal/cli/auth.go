// Package cli provides authentication commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newAuthCmd creates the 'auth' command group.
func newAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, sign out and inspect the current session",
	}

	authCmd.AddCommand(newAuthLoginCmd())
	authCmd.AddCommand(newAuthCompleteCmd())
	authCmd.AddCommand(newAuthLogoutCmd())
	authCmd.AddCommand(newAuthWhoamiCmd())
	authCmd.AddCommand(newAuthRefreshCmd())

	return authCmd
}

// newAuthLoginCmd creates the 'auth login' command.
func newAuthLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Request a magic sign-in link",
		Long: `Request a magic sign-in link for the given email address.

The link lands in your inbox; opening it completes authentication and
shows an access/refresh token pair. Feed that pair to 'auth complete'.

Examples:
  nimbus auth login me@example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			email := args[0]
			if err := a.sessions.RequestMagicLink(ctx, email); err != nil {
				return fmt.Errorf("request magic link: %w", err)
			}
			fmt.Printf("Magic link sent to %s. Open it, then run:\n", email)
			fmt.Println("  nimbus auth complete --access <token> --refresh <token>")
			return nil
		},
	}
	return cmd
}

// newAuthCompleteCmd creates the 'auth complete' command.
func newAuthCompleteCmd() *cobra.Command {
	var accessToken string
	var refreshToken string

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Complete sign-in with the token pair from the magic link",
		RunE: func(cmd *cobra.Command, args []string) error {
			if accessToken == "" || refreshToken == "" {
				return fmt.Errorf("both --access and --refresh are required")
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.sessions.CompleteSignIn(ctx, accessToken, refreshToken); err != nil {
				return fmt.Errorf("complete sign-in: %w", err)
			}
			user := a.sessions.User()
			fmt.Printf("Signed in as %s\n", user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&accessToken, "access", "", "Access token from the magic link")
	cmd.Flags().StringVar(&refreshToken, "refresh", "", "Refresh token from the magic link")
	return cmd
}

// newAuthLogoutCmd creates the 'auth logout' command.
func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.sessions.SignOut(ctx); err != nil {
				// Local state is cleared even when the backend call fails.
				logger.Warn().Err(err).Msg("Sign-out notification failed")
			}
			fmt.Println("Signed out.")
			return nil
		},
	}
}

// newAuthWhoamiCmd creates the 'auth whoami' command.
func newAuthWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.sessions.SignedIn() {
				fmt.Println("Not signed in.")
				return nil
			}
			user := a.sessions.User()
			fmt.Printf("%s <%s>\n", user.DisplayName, user.Email)
			return nil
		},
	}
}

// newAuthRefreshCmd creates the 'auth refresh' command.
func newAuthRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Force a token refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.requireSession(); err != nil {
				return err
			}
			if err := a.sessions.Refresh(ctx); err != nil {
				return fmt.Errorf("refresh: %w", err)
			}
			fmt.Println("Session refreshed.")
			return nil
		},
	}
}
