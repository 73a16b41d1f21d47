package main

import (
	"fmt"
	"strings"

	"github.com/marmos91/wopihost/pkg/auth"
	"github.com/marmos91/wopihost/pkg/config"
	"github.com/spf13/cobra"
)

var (
	tokenUser        string
	tokenName        string
	tokenEmail       string
	tokenPermissions []string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token",
	Long: `Mint an access token for a user, signed with the configured secret.

The token and its expiry (access_token_ttl, in milliseconds since the Unix
epoch) are what a host page passes to the office client.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		perms, err := parsePermissions(tokenPermissions)
		if err != nil {
			return err
		}

		resolver, err := config.CreateTokenResolver(&cfg.Auth)
		if err != nil {
			return err
		}

		token, expires, err := resolver.Issue(auth.Principal{
			UserID:       tokenUser,
			FriendlyName: tokenName,
			Email:        tokenEmail,
			Permissions:  perms,
		})
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "access_token: %s\n", token)
		fmt.Fprintf(out, "access_token_ttl: %d\n", expires.UnixMilli())
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenUser, "user", "u", "", "user ID (required)")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "friendly name shown by the client")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email address")
	tokenCmd.Flags().StringSliceVarP(&tokenPermissions, "perms", "p", auth.AllPermissions,
		"granted permissions: "+strings.Join(auth.AllPermissions, ", ")+" (empty for read-only)")
	_ = tokenCmd.MarkFlagRequired("user")
}

// parsePermissions checks every requested permission is known.
func parsePermissions(requested []string) ([]string, error) {
	known := make(map[string]bool, len(auth.AllPermissions))
	for _, p := range auth.AllPermissions {
		known[p] = true
	}

	perms := make([]string, 0, len(requested))
	for _, p := range requested {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !known[p] {
			return nil, fmt.Errorf("unknown permission %q (valid: %s)", p, strings.Join(auth.AllPermissions, ", "))
		}
		perms = append(perms, p)
	}
	return perms, nil
}
