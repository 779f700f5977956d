/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/pagestore/pkg/store"
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the store for corruption",
	Long: `Open the store read-only and check every shard: slots lie inside owned
pages and do not overlap, chains are intact and every record reads back with
a valid checksum.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, true, func(e *store.Engine) error {
			if err := e.Verify(); err != nil {
				cmd.Printf("❌ Verification failed:\n%v\n", err)
				return err
			}
			st, err := e.Stats()
			if err != nil {
				return err
			}
			cmd.Printf("✅ Store %s is consistent: %d records on %d pages (head %d)\n",
				st.StoreID, st.Records, st.Pages, st.HeadVersion)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
