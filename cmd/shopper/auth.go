package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/storefront/internal/page"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session in the state file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("STOREFRONT_PASSWORD")
			}
			return a.cartOp(cmd.Context(), func(ctx context.Context, p *page.Page) error {
				_, err := p.Session().Login(ctx, email, password)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or STOREFRONT_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var (
		name, email, password, phone, cpf string
		extra                             map[string]string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Create an account. The fields are sent to the API unchanged; the
shopper is logged in only when the API answers with a token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields := map[string]any{}
			for k, v := range extra {
				fields[k] = v
			}
			for k, v := range map[string]string{"name": name, "email": email, "password": password, "phone": phone, "cpf": cpf} {
				if v != "" {
					fields[k] = v
				}
			}
			if email == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "--email is required")
			}
			return a.cartOp(cmd.Context(), func(ctx context.Context, p *page.Page) error {
				_, err := p.Session().Register(ctx, fields)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "email")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&phone, "phone", "", "phone")
	cmd.Flags().StringVar(&cpf, "cpf", "", "CPF")
	cmd.Flags().StringToStringVar(&extra, "field", nil, "additional field, e.g. --field birthDate=1990-01-01")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.cartOp(cmd.Context(), func(ctx context.Context, p *page.Page) error {
				return p.Session().Logout(ctx)
			})
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.load(cmd.Context(), page.KindCart)
			if err != nil {
				return err
			}
			user := p.Session().CurrentUser()
			if user == nil {
				return pkgerrors.New(pkgerrors.CodeNotAuthenticated, "not logged in")
			}
			if a.asJSON {
				return a.printJSON(user)
			}
			fmt.Fprintf(a.out, "%s <%s>\nclient %s\n", user.Name, user.Email, a.clientID)
			return nil
		},
	}
}
