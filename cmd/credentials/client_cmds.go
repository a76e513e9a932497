package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	auth "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-credentials/client"
)

const defaultServerURL = "http://localhost:8978"

// NewSignUpCmd creates the signup subcommand.
func NewSignUpCmd() *cobra.Command {
	var (
		serverURL   string
		phoneRegion string
		in          auth.RegistrationInput
	)

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account on a running server",
		Long: `Create an account. The input is validated locally first, nothing is sent
when a field is invalid. Passwords are prompted for when not given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if region := strings.TrimSpace(phoneRegion); region != "" {
				auth.DefaultPhoneRegion = strings.ToUpper(region)
			}

			p := newPrompter(cmd)

			if in.Password == "" {
				pw, err := p.secret("Password: ")
				if err != nil {
					return err
				}
				in.Password = pw
			}
			if in.ConfirmPassword == "" {
				pw, err := p.secret("Confirm password: ")
				if err != nil {
					return err
				}
				in.ConfirmPassword = pw
			}

			form := client.NewSignUpForm(client.New(serverURL))

			score, label := form.Strength(in.Password)
			cmd.PrintErrf("Password strength: %s (%d/3)\n", label, score)

			res, err := form.Submit(cmd.Context(), in)
			if err != nil {
				printValidation(cmd, err)
				return err
			}

			return printJSON(cmd, res)
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", defaultServerURL, "server base URL")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "mobile phone number")
	cmd.Flags().StringVar(&phoneRegion, "phone-region", auth.DefaultPhoneRegion, "region of phone numbers given without a country code, match the server auth.phone_region")
	cmd.Flags().StringVar(&in.Password, "password", "", "password (prompted when empty)")
	cmd.Flags().StringVar(&in.ConfirmPassword, "confirm-password", "", "password confirmation (prompted when empty)")
	cmd.Flags().BoolVar(&in.Accepted, "accept-terms", false, "accept the terms")

	return cmd
}

// NewSignInCmd creates the signin subcommand.
func NewSignInCmd() *cobra.Command {
	var (
		serverURL string
		in        auth.SignInInput
	)

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and print the session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.Password == "" {
				pw, err := newPrompter(cmd).secret("Password: ")
				if err != nil {
					return err
				}
				in.Password = pw
			}

			c := client.New(serverURL)

			res, err := client.NewSignInForm(c).Submit(cmd.Context(), in)
			if err != nil {
				printValidation(cmd, err)
				return err
			}

			if err := printJSON(cmd, res); err != nil {
				return err
			}

			if token := c.Token(); token != "" {
				cmd.PrintErrln("Session token:")
				fmt.Fprintln(cmd.OutOrStdout(), token)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", defaultServerURL, "server base URL")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "password (prompted when empty)")
	cmd.Flags().BoolVar(&in.RememberMe, "remember", false, "request an extended session")

	return cmd
}

// NewSessionCmd creates the session subcommand.
func NewSessionCmd() *cobra.Command {
	var serverURL, token string
	var signOut bool

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Show or end the session of a token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := client.New(serverURL, client.WithToken(token))

			if signOut {
				if err := c.SignOut(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			}

			session, err := c.Session(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, session)
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", defaultServerURL, "server base URL")
	cmd.Flags().StringVar(&token, "token", "", "session token printed by signin")
	cmd.Flags().BoolVar(&signOut, "signout", false, "revoke the session instead of showing it")

	return cmd
}

// NewStrengthCmd creates the strength subcommand.
func NewStrengthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strength [password]",
		Short: "Score a password from 0 (too weak) to 3 (strong)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				pw, err := newPrompter(cmd).secret("Password: ")
				if err != nil {
					return err
				}
				password = pw
			}

			score := auth.PasswordStrength(password)
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", score, auth.StrengthLabel(score))
			return nil
		},
	}
}
