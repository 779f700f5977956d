/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/pagestore/pkg/store"
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Write a record's payload to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := store.ParseRecordID(args[0])
		if err != nil {
			return err
		}

		return withStore(cmd, true, func(e *store.Engine) error {
			data, err := e.GetBytes(id)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
