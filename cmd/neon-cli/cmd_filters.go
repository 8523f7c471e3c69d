package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newFiltersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Inspect the shared filter collection",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List active filter designs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			designs, err := apiClient.Filters.List(cmd.Context())
			if err != nil {
				return err
			}
			if flagFmt == "table" {
				formatDesigns(stdout, designs, nil)
				return nil
			}
			return output(designs, strconv.Itoa(len(designs)))
		},
	}

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every filter design",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear filters without --yes")
			}
			n, err := apiClient.Filters.Clear(cmd.Context())
			if err != nil {
				return err
			}
			return output(map[string]int{"deleted": n}, strconv.Itoa(n))
		},
	}
	clearCmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")

	cmd.AddCommand(list, clearCmd)
	return cmd
}
