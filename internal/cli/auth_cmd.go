package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"museflow/internal/writing"
)

func newSignupCmd(app *App) *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := app.Client.Signup(cmd.Context(), email, password, name)
			if err != nil {
				return err
			}
			if err := app.rememberToken(res.Token); err != nil {
				return fmt.Errorf("saving token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "欢迎, %s\n", displayName(res.User.FullName, res.User.Email))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password, at least 6 characters")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCmd(app *App) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := app.Client.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := app.rememberToken(res.Token); err != nil {
				return fmt.Errorf("saving token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已登录: %s\n", res.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved token",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := app.Client.Logout(cmd.Context())
			// A token the server no longer accepts is as good as signed out.
			if err != nil && !errors.Is(err, writing.ErrAuthRequired) {
				return err
			}
			app.Client.SetToken("")
			if err := app.rememberToken(""); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "已退出登录")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := app.Client.Me(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", displayName(u.FullName, u.Email), u.Email)
			return nil
		},
	}
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}
