package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goliatone/go-print"
	"github.com/invencare/go-auth"
	"github.com/invencare/go-auth/web"
	"github.com/spf13/cobra"
)

// withSession runs fn against the restored session and closes the provider.
func withSession(a *app, fn func(cmd *cobra.Command, args []string, m *auth.SessionManager) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		manager, closeFn, err := a.session(cmd)
		if err != nil {
			return err
		}
		defer closeFn()
		return fn(cmd, args, manager)
	}
}

func requireFlag(cmd *cobra.Command, name string) (string, error) {
	value, _ := cmd.Flags().GetString(name)
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("--%s is required", name)
	}
	return value, nil
}

func printView(cmd *cobra.Command, v any) {
	fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(v))
}

func newSignUpCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a new account",
		Long: `Register a new dashboard account. A confirmation code is sent to the
email address; finish with "storeauth confirm".

Examples:
  storeauth signup --username carol --email carol@example.com --password 'Secret123!'`,
		RunE: withSession(a, func(cmd *cobra.Command, _ []string, m *auth.SessionManager) error {
			username, _ := cmd.Flags().GetString("username")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")

			result, err := m.SignUp(cmd.Context(), auth.SignUpInput{
				Username: username,
				Email:    email,
				Password: password,
			})
			if err != nil {
				return fmt.Errorf("sign up failed: %w", err)
			}

			if result.ConfirmationRequired {
				fmt.Fprintf(cmd.OutOrStdout(), "Account created, confirmation code sent to %s\n", result.Delivery.Destination)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account created")
			return nil
		}),
	}
	cmd.Flags().String("username", "", "username")
	cmd.Flags().String("email", "", "email address")
	cmd.Flags().String("password", "", "password")
	return cmd
}

func newConfirmCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm a new account with the emailed code",
		RunE: withSession(a, func(cmd *cobra.Command, _ []string, m *auth.SessionManager) error {
			username, _ := cmd.Flags().GetString("username")
			code, _ := cmd.Flags().GetString("code")
			if err := m.ConfirmSignUp(cmd.Context(), username, code); err != nil {
				return fmt.Errorf("confirmation failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account confirmed, you can now sign in")
			return nil
		}),
	}
	cmd.Flags().String("username", "", "username")
	cmd.Flags().String("code", "", "confirmation code")
	return cmd
}

func newResendCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resend",
		Short: "Send the confirmation code again",
		RunE: withSession(a, func(cmd *cobra.Command, _ []string, m *auth.SessionManager) error {
			username, _ := cmd.Flags().GetString("username")
			delivery, err := m.ResendConfirmationCode(cmd.Context(), username)
			if err != nil {
				return fmt.Errorf("resend failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Code sent by %s to %s\n", delivery.Medium, delivery.Destination)
			return nil
		}),
	}
	cmd.Flags().String("username", "", "username")
	return cmd
}

func newSignInCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in to the dashboard",
		Long: `Sign in with username and password. The session is stored in the
credentials file and restored by later commands.

Examples:
  storeauth signin --username alice --password 'Correct1!'`,
		RunE: withSession(a, func(cmd *cobra.Command, _ []string, m *auth.SessionManager) error {
			username, err := requireFlag(cmd, "username")
			if err != nil {
				return err
			}
			password, err := requireFlag(cmd, "password")
			if err != nil {
				return err
			}

			if err := m.SignIn(cmd.Context(), username, password); err != nil {
				if auth.IsUserNotConfirmed(err) {
					return fmt.Errorf("account %s is not confirmed, run storeauth confirm", username)
				}
				return fmt.Errorf("sign in failed: %s", auth.ProviderMessage(err))
			}

			snap := m.Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s), stores: %s\n",
				snap.Identity.Username, snap.Role(), snap.StoreAccess())
			return nil
		}),
	}
	cmd.Flags().String("username", "", "username")
	cmd.Flags().String("password", "", "password")
	return cmd
}

func newSignOutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and remove stored credentials",
		RunE: withSession(a, func(cmd *cobra.Command, _ []string, m *auth.SessionManager) error {
			m.SignOut(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		}),
	}
}

func newWhoAmICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: withSession(a, func(cmd *cobra.Command, _ []string, m *auth.SessionManager) error {
			printView(cmd, web.NewSessionView(m.Snapshot()))
			return nil
		}),
	}
}

func newResetPasswordCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Request a password reset code",
		RunE: withSession(a, func(cmd *cobra.Command, _ []string, m *auth.SessionManager) error {
			username, _ := cmd.Flags().GetString("username")
			delivery, err := m.ResetPassword(cmd.Context(), username)
			if err != nil {
				return fmt.Errorf("reset failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset code sent by %s to %s\n", delivery.Medium, delivery.Destination)
			return nil
		}),
	}
	cmd.Flags().String("username", "", "username")
	return cmd
}

func newConfirmResetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm-reset",
		Short: "Set a new password with the reset code",
		RunE: withSession(a, func(cmd *cobra.Command, _ []string, m *auth.SessionManager) error {
			username, _ := cmd.Flags().GetString("username")
			code, _ := cmd.Flags().GetString("code")
			password, _ := cmd.Flags().GetString("new-password")
			if err := m.ConfirmResetPassword(cmd.Context(), username, code, password); err != nil {
				return fmt.Errorf("reset failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated, you can now sign in")
			return nil
		}),
	}
	cmd.Flags().String("username", "", "username")
	cmd.Flags().String("code", "", "reset code")
	cmd.Flags().String("new-password", "", "new password")
	return cmd
}

func newChangePasswordCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "change-password",
		Short: "Change the password of the signed in user",
		RunE: withSession(a, func(cmd *cobra.Command, _ []string, m *auth.SessionManager) error {
			oldPassword, _ := cmd.Flags().GetString("old-password")
			newPassword, _ := cmd.Flags().GetString("new-password")
			if err := m.UpdatePassword(cmd.Context(), oldPassword, newPassword); err != nil {
				return fmt.Errorf("change password failed: %w", err)
			}
			if snap := m.RefreshAuth(cmd.Context()); !snap.IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Password changed, sign in again")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password changed")
			return nil
		}),
	}
	cmd.Flags().String("old-password", "", "current password")
	cmd.Flags().String("new-password", "", "new password")
	return cmd
}

func newDeleteAccountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-account",
		Short: "Delete the signed in account",
		RunE: withSession(a, func(cmd *cobra.Command, _ []string, m *auth.SessionManager) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return errors.New("refusing to delete the account without --yes")
			}
			if err := m.DeleteUser(cmd.Context()); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account deleted")
			return nil
		}),
	}
	cmd.Flags().Bool("yes", false, "confirm the deletion")
	return cmd
}

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print the ID token of the current session",
		Long: `Print the ID token, refreshed when close to expiry, for use as a
bearer token against the inventory API.

Examples:
  curl -H "Authorization: Bearer $(storeauth token)" https://api.example.com/inventory`,
		RunE: withSession(a, func(cmd *cobra.Command, _ []string, m *auth.SessionManager) error {
			access, _ := cmd.Flags().GetBool("access")

			token := m.IDToken(cmd.Context())
			if access {
				token = m.AccessToken(cmd.Context())
			}
			if token == "" {
				return auth.ErrNotAuthenticated
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		}),
	}
	cmd.Flags().Bool("access", false, "print the access token instead")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Call the inventory API with the session token",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(a, func(cmd *cobra.Command, args []string, m *auth.SessionManager) error {
			if a.cfg.Backend.BaseURL == "" {
				return errors.New("backend.base_url is not configured")
			}

			client := auth.NewAuthenticatedClient(m, a.cfg.Backend.Timeout)
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet,
				strings.TrimRight(a.cfg.Backend.BaseURL, "/")+"/"+strings.TrimLeft(args[0], "/"), nil)
			if err != nil {
				return err
			}

			res, err := client.Do(req)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthorizedResponse) {
					return errors.New("session rejected by the backend, sign in again")
				}
				return err
			}
			defer res.Body.Close()

			if res.StatusCode >= http.StatusBadRequest {
				return fmt.Errorf("backend answered %s", res.Status)
			}
			_, err = io.Copy(cmd.OutOrStdout(), res.Body)
			return err
		}),
	}
}
