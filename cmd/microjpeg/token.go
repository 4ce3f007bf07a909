package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/applelectricals/microjpeg/adapters/hasher"
	"github.com/applelectricals/microjpeg/adapters/random"
)

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token [token]",
	Short: "Hash an admin token for the configuration file",
	Long: `Hash an admin token with bcrypt for admin.tokens[].token_hash.

Without an argument a random token is generated and printed once.

Examples:
  microjpeg hash-token
  microjpeg hash-token my-long-secret --name=ops`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHashToken,
}

var (
	hashTokenName string
	hashTokenCost int
)

func init() {
	rootCmd.AddCommand(hashTokenCmd)

	hashTokenCmd.Flags().StringVar(&hashTokenName, "name", "admin", "token name recorded in audit entries")
	hashTokenCmd.Flags().IntVar(&hashTokenCost, "cost", bcrypt.DefaultCost, "bcrypt cost")
}

func runHashToken(cmd *cobra.Command, args []string) error {
	token := ""
	if len(args) == 1 {
		token = args[0]
	} else {
		var err error
		token, err = random.Real{}.Token(24)
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Token (shown once): %s\n\n", token)
	}
	if len(token) < 12 {
		return fmt.Errorf("token must be at least 12 characters")
	}

	hash, err := hasher.NewBcrypt(hashTokenCost).Hash(token)
	if err != nil {
		return fmt.Errorf("hash token: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "admin:")
	fmt.Fprintln(out, "  tokens:")
	fmt.Fprintf(out, "    - name: %s\n", hashTokenName)
	fmt.Fprintf(out, "      token_hash: %q\n", string(hash))
	return nil
}
