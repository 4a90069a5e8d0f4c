package main

import (
	"fmt"

	"github.com/fjod/go_market/internal/auth"
	"github.com/fjod/go_market/internal/domain"
	"github.com/spf13/cobra"
)

type tokenOptions struct {
	UserID  string
	Name    string
	Contact string
	Role    string
}

// newTokenCommand signs a bearer token for local testing.
func newTokenCommand() *cobra.Command {
	opts := &tokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := bootstrap()
			if err != nil {
				return err
			}
			role := domain.Role(opts.Role)
			switch role {
			case domain.RoleBuyer, domain.RoleSeller, domain.RoleOperator:
			default:
				return fmt.Errorf("invalid role %q: must be buyer, seller or operator", opts.Role)
			}

			token, err := auth.NewJWTProvider(cfg.JWTSecret, cfg.JWTTTL).Issue(domain.Identity{
				UserID:      opts.UserID,
				DisplayName: opts.Name,
				Contact:     opts.Contact,
				Role:        role,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Contact, "contact", "", "contact number or email")
	cmd.Flags().StringVar(&opts.Role, "role", string(domain.RoleBuyer), "buyer|seller|operator")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
