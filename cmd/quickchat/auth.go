package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/danhigham/quickchat/internal/domain"
)

var errNotLoggedIn = errors.New("not logged in; run 'quickchat login' first")

var (
	authEmail    string
	authPassword string
	authName     string
	authBio      string
)

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVar(&authEmail, "email", "", "account email")
		c.Flags().StringVar(&authPassword, "password", "", "account password (prompted when omitted)")
	}
	registerCmd.Flags().StringVar(&authName, "name", "", "full name")
	registerCmd.Flags().StringVar(&authBio, "bio", "", "profile bio")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return authenticate(cmd, domain.AuthLogin)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and store the session credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return authenticate(cmd, domain.AuthRegister)
	},
}

func authenticate(cmd *cobra.Command, mode domain.AuthMode) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	in := bufio.NewReader(os.Stdin)
	creds := domain.Credentials{
		FullName: authName,
		Email:    authEmail,
		Password: authPassword,
		Bio:      authBio,
	}
	if mode == domain.AuthRegister && creds.FullName == "" {
		if creds.FullName, err = prompt(in, "Full name: "); err != nil {
			return err
		}
	}
	if creds.Email == "" {
		if creds.Email, err = prompt(in, "Email: "); err != nil {
			return err
		}
	}
	if creds.Password == "" {
		if creds.Password, err = prompt(in, "Password: "); err != nil {
			return err
		}
	}

	// Replace whatever credential is stored.
	if err := e.mgr.Logout(cmd.Context()); err != nil {
		return err
	}
	profile, err := e.mgr.Authenticate(cmd.Context(), mode, creds)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s <%s>\n", profile.FullName, profile.Email)
	return nil
}

func prompt(in *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", errors.Wrapf(err, "read %s", strings.TrimSuffix(strings.ToLower(label), ": "))
	}
	return strings.TrimSpace(line), nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.logger.Sync()

		if err := e.mgr.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.logger.Sync()

		if err := e.restore(cmd.Context()); err != nil {
			return err
		}
		p := e.mgr.Session().Profile
		fmt.Printf("ID:    %s\n", p.ID)
		fmt.Printf("Name:  %s\n", p.FullName)
		fmt.Printf("Email: %s\n", p.Email)
		if p.Bio != "" {
			fmt.Printf("Bio:   %s\n", p.Bio)
		}
		return nil
	},
}
