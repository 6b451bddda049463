package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func markUsedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mark-used [tenant-id] [item-id...]",
		Short: "Mark content items as used, all or nothing",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, _ := cmd.Flags().GetString("newsletter")

			eng, err := buildEngine()
			if err != nil {
				return err
			}
			records, err := eng.tracker.MarkManyUsed(context.Background(), args[0], args[1:], ref)
			if err != nil {
				return err
			}
			if emit(records) {
				return nil
			}
			fmt.Printf("Marked %d items used on %s\n", len(records), args[0])
			return nil
		},
	}
	cmd.Flags().StringP("newsletter", "r", "", "Newsletter issue reference")
	return cmd
}
