package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newRecordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Load records into a datastore table",
	}

	ingest := &cobra.Command{
		Use:   "ingest <datastore> <table> <file|->",
		Short: "Insert a JSON array of records",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(args[2])
			if err != nil {
				return err
			}
			res, err := apiClient.Records.Ingest(cmd.Context(), args[0], args[1], records)
			if err != nil {
				return err
			}
			return output(res, strconv.Itoa(res.Inserted))
		},
	}

	cmd.AddCommand(ingest)
	return cmd
}
