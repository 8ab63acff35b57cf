package main

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/erazemk/shramba/internal/auth"
	"github.com/erazemk/shramba/internal/db"
	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/store"
)

func newAddUserCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "adduser <username>",
		Short: "Create an account with a generated password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			if err := model.ValidateUsername(username); err != nil {
				return err
			}

			database, err := db.Open(root.cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := db.Migrate(database); err != nil {
				return fmt.Errorf("migrating database: %w", err)
			}

			password, err := generatePassword(16)
			if err != nil {
				return fmt.Errorf("generating password: %w", err)
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			user, err := store.CreateUser(cmd.Context(), database, username, hash)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Account created:")
			fmt.Fprintf(out, "  Username: %s\n", user.Username)
			fmt.Fprintf(out, "  Password: %s\n", password)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Save this password, it cannot be recovered.")
			return nil
		},
	}
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
