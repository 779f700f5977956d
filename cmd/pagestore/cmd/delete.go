/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/pagestore/pkg/store"
)

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete records",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]store.RecordID, 0, len(args))
		for _, arg := range args {
			id, err := store.ParseRecordID(arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		return withStore(cmd, false, func(e *store.Engine) error {
			for _, id := range ids {
				if err := e.Delete(id); err != nil {
					return err
				}
				cmd.Printf("Deleted record %s\n", id)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
