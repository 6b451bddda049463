package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tenant-config-service/internal/model"
)

func grantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grant [tenant-id] [email]",
		Short: "Grant a user access to a tenant, or change their tier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tierName, _ := cmd.Flags().GetString("tier")
			tier, err := model.ParseTier(tierName)
			if err != nil {
				return err
			}

			eng, err := buildEngine()
			if err != nil {
				return err
			}
			entry, err := eng.resolver.Grant(context.Background(), args[0], args[1], tier, cliActor)
			if err != nil {
				return err
			}
			if emit(entry) {
				return nil
			}
			perms := make([]string, 0, 4)
			for _, p := range entry.Tier.Permissions() {
				perms = append(perms, string(p))
			}
			fmt.Printf("Granted %s tier %s on %s (%s)\n",
				entry.Email, entry.Tier, args[0], strings.Join(perms, ", "))
			return nil
		},
	}
	cmd.Flags().StringP("tier", "t", "basic", "Subscription tier to grant")
	return cmd
}

func revokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke [tenant-id] [email]",
		Short: "Remove a user from a tenant's access list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			if err := eng.resolver.Revoke(context.Background(), args[0], args[1], cliActor); err != nil {
				return err
			}
			fmt.Printf("Revoked %s from %s\n", args[1], args[0])
			return nil
		},
	}
}
