package cli

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mvarela/gapfill/internal/auth"
)

var hashpwCmd = &cobra.Command{
	Use:   "hashpw",
	Short: "Hash an admin password for the config file",
	Long: `Prompt for a password and print its bcrypt hash, suitable for the
auth.admin_password_hash config key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		if len(password) == 0 {
			return fmt.Errorf("password must not be empty")
		}

		hash, err := auth.HashPassword(string(password))
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}

		fmt.Println(hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashpwCmd)
}
