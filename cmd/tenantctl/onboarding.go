package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tenant-config-service/internal/model"
)

func inviteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invite [email]",
		Short: "Create an onboarding invitation and print the link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			session, link, err := eng.flow.Invite(context.Background(), args[0])
			if err != nil {
				return err
			}
			if emit(map[string]string{"token": session.Token, "link": link}) {
				return nil
			}
			fmt.Printf("Invited %s\n", session.Email)
			fmt.Printf("  Token: %s\n", session.Token)
			fmt.Printf("  Link:  %s\n", link)
			fmt.Printf("  Valid: until %s\n", session.ExpiresAt.Format("2006-01-02 15:04"))
			return nil
		},
	}
}

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List onboarding sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			sessions, err := eng.flow.ListSessions(context.Background())
			if err != nil {
				return err
			}
			if emit(sessions) {
				return nil
			}
			if len(sessions) == 0 {
				fmt.Println("No onboarding sessions")
				return nil
			}
			for _, s := range sessions {
				fmt.Printf("%-36s  %-18s  %s\n", s.Token, s.State, s.Email)
			}
			return nil
		},
	}
}

func approveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve [token]",
		Short: "Approve a submitted session and create the tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, _ := cmd.Flags().GetString("tenant-id")
			tierName, _ := cmd.Flags().GetString("tier")
			tier, err := model.ParseTier(tierName)
			if err != nil {
				return err
			}

			eng, err := buildEngine()
			if err != nil {
				return err
			}
			session, err := eng.flow.Approve(context.Background(), args[0], tenantID, tier)
			if err != nil {
				return err
			}
			if emit(session) {
				return nil
			}
			fmt.Printf("Approved: tenant %q created for %s (%s tier)\n",
				session.AssignedTenantID, session.Email, tier)
			return nil
		},
	}
	cmd.Flags().String("tenant-id", "", "Tenant ID to assign (defaults to the draft's short name)")
	cmd.Flags().String("tier", "premium", "Subscription tier for the initial admin")
	return cmd
}

func requestChangesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request-changes [token]",
		Short: "Return a submitted session to the applicant with a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			note, _ := cmd.Flags().GetString("note")

			eng, err := buildEngine()
			if err != nil {
				return err
			}
			session, err := eng.flow.RequestChanges(context.Background(), args[0], note)
			if err != nil {
				return err
			}
			if emit(session) {
				return nil
			}
			fmt.Printf("Changes requested from %s\n", session.Email)
			return nil
		},
	}
	cmd.Flags().StringP("note", "n", "", "Review note explaining what to fix")
	return cmd
}

func manualEntryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manual-entry [email]",
		Short: "Create a submitted session from a draft JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draftPath, _ := cmd.Flags().GetString("draft")
			raw, err := os.ReadFile(draftPath)
			if err != nil {
				return fmt.Errorf("read draft file: %w", err)
			}
			var draft model.Draft
			if err := json.Unmarshal(raw, &draft); err != nil {
				return fmt.Errorf("parse draft file: %w", err)
			}

			eng, err := buildEngine()
			if err != nil {
				return err
			}
			session, err := eng.flow.ManualEntry(context.Background(), args[0], draft)
			if err != nil {
				return err
			}
			if emit(session) {
				return nil
			}
			fmt.Printf("Submitted session %s for %s, ready for approval\n", session.Token, session.Email)
			return nil
		},
	}
	cmd.Flags().StringP("draft", "d", "", "Path to the draft JSON file")
	_ = cmd.MarkFlagRequired("draft")
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired onboarding sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			removed, err := eng.flow.Sweep(context.Background())
			if err != nil {
				return err
			}
			if emit(map[string]int{"removed": removed}) {
				return nil
			}
			fmt.Printf("Removed %d expired sessions\n", removed)
			return nil
		},
	}
}
