/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/pagestore/pkg/store"
)

// putCmd represents the put command
var putCmd = &cobra.Command{
	Use:   "put [value]",
	Short: "Store a record and print its id",
	Long: `Store a new record. The payload is the argument, or the contents of
--file ("-" reads stdin). With --id the record is replaced instead.

Examples:
  pagestore put "hello world"
  pagestore put --file ./photo.jpg
  pagestore put --id 17 "new value"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readPayload(cmd, args)
		if err != nil {
			return err
		}
		idArg, _ := cmd.Flags().GetString("id")

		return withStore(cmd, false, func(e *store.Engine) error {
			if idArg != "" {
				id, err := store.ParseRecordID(idArg)
				if err != nil {
					return err
				}
				if err := e.UpdateBytes(id, data); err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
				return err
			}

			id, err := e.PutBytes(data)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
	putCmd.Flags().StringP("file", "f", "", `Read the payload from a file, "-" for stdin`)
	putCmd.Flags().String("id", "", "Replace the record with this id")
}

func readPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	file, _ := cmd.Flags().GetString("file")
	switch {
	case file != "" && len(args) > 0:
		return nil, fmt.Errorf("pass either a value or --file, not both")
	case file == "-":
		return io.ReadAll(cmd.InOrStdin())
	case file != "":
		return os.ReadFile(file)
	case len(args) == 1:
		return []byte(args[0]), nil
	default:
		return nil, fmt.Errorf("a value or --file is required")
	}
}
