package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tenant-config-service/internal/access"
	"tenant-config-service/internal/model"
)

const cliActor = access.Operator

func tenantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tenants",
		Short: "List tenants with their status and company name",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			infos, err := eng.tenants.List(context.Background())
			if err != nil {
				return err
			}
			if emit(infos) {
				return nil
			}
			if len(infos) == 0 {
				fmt.Println("No tenants")
				return nil
			}
			for _, info := range infos {
				fmt.Printf("%-32s  %-10s  %s\n", info.TenantID, info.Status, info.ContactEmail)
			}
			return nil
		},
	}
}

func setStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-status [tenant-id] [status]",
		Short: "Set a tenant's lifecycle status (active, inactive, suspended)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := model.ParseTenantStatus(args[1])
			if err != nil {
				return err
			}

			eng, err := buildEngine()
			if err != nil {
				return err
			}
			if err := eng.tenants.SetStatus(context.Background(), args[0], status, cliActor); err != nil {
				return err
			}
			fmt.Printf("Tenant %s is now %s\n", args[0], status)
			return nil
		},
	}
}

func readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read [tenant-id] [kind]",
		Short: "Print the current revision of a tenant document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.ParseDocumentKind(args[1])
			if err != nil {
				return err
			}

			eng, err := buildEngine()
			if err != nil {
				return err
			}
			doc, err := eng.docs.Read(context.Background(), args[0], kind)
			if err != nil {
				return err
			}
			if emit(doc) {
				return nil
			}
			fmt.Printf("Revision %s by %s at %s\n",
				doc.RevisionID, doc.Author, doc.Timestamp.Format("2006-01-02 15:04:05"))
			fmt.Println(string(doc.Content))
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [tenant-id] [kind]",
		Short: "List revision history of a tenant document, newest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			kind, err := model.ParseDocumentKind(args[1])
			if err != nil {
				return err
			}

			eng, err := buildEngine()
			if err != nil {
				return err
			}
			metas, err := eng.docs.History(context.Background(), args[0], kind, limit)
			if err != nil {
				return err
			}
			if emit(metas) {
				return nil
			}
			for _, meta := range metas {
				fmt.Printf("%-36s  %-20s  %-24s  %s\n",
					meta.RevisionID, meta.Timestamp.Format("2006-01-02 15:04:05"), meta.Author, meta.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "Maximum revisions to show")
	return cmd
}
