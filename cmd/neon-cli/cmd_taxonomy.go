package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/neonviz/neon/client"
)

func newTaxonomyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "taxonomy",
		Aliases: []string{"tax"},
		Short:   "Inspect and toggle widget taxonomies",
	}
	cmd.AddCommand(newWidgetsCmd(), newBuildCmd(), newShowCmd(), newToggleCmd())
	return cmd
}

func newWidgetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "widgets",
		Short: "List configured widgets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			widgets, err := apiClient.Taxonomy.Widgets(cmd.Context())
			if err != nil {
				return err
			}
			if flagFmt == "table" {
				rows := make([][]string, 0, len(widgets))
				for _, w := range widgets {
					rows = append(rows, []string{w.ID, w.Datastore + "." + w.Table, w.Category.Column, w.Title})
				}
				formatTable(stdout, []string{"ID", "TABLE", "CATEGORY", "TITLE"}, rows)
				return nil
			}
			return output(widgets, strconv.Itoa(len(widgets)))
		},
	}
}

func newBuildCmd() *cobra.Command {
	var recordsFile string
	cmd := &cobra.Command{
		Use:   "build <widget>",
		Short: "Aggregate a widget's records into a fresh tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				tax *client.Taxonomy
				err error
			)
			if recordsFile != "" {
				records, rerr := readRecords(recordsFile)
				if rerr != nil {
					return rerr
				}
				tax, err = apiClient.Taxonomy.BuildFrom(cmd.Context(), args[0], records)
			} else {
				tax, err = apiClient.Taxonomy.Build(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return printTaxonomy(tax)
		},
	}
	cmd.Flags().StringVar(&recordsFile, "records", "", "JSON array of records to aggregate instead of the datastore ('-' for stdin)")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <widget>",
		Short: "Show a widget's current tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tax, err := apiClient.Taxonomy.Get(cmd.Context(), args[0])
			if client.IsNotBuilt(err) {
				return fmt.Errorf("widget %q has no tree yet; run: neon-cli taxonomy build %s", args[0], args[0])
			}
			if err != nil {
				return err
			}
			return printTaxonomy(tax)
		},
	}
}

func newToggleCmd() *cobra.Command {
	var uncheck bool
	cmd := &cobra.Command{
		Use:   "toggle <widget> <node-path|node-id>",
		Short: "Check or uncheck a node and apply the resulting filters",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.Toggle{Checked: !uncheck}
			if id, err := strconv.Atoi(args[1]); err == nil && id > 0 {
				req.NodeID = id
			} else {
				req.Path = args[1]
			}

			res, err := apiClient.Taxonomy.Toggle(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			switch flagFmt {
			case "table":
				formatTree(stdout, res.Groups)
				fmt.Fprintln(stdout)
				formatDesigns(stdout, res.FiltersToSet, res.FiltersToDelete)
				return nil
			case "quiet":
				return output(nil, fmt.Sprintf("%d %d", len(res.FiltersToSet), len(res.FiltersToDelete)))
			}
			return output(res, "")
		},
	}
	cmd.Flags().BoolVar(&uncheck, "uncheck", false, "Uncheck the node instead of checking it")
	return cmd
}

func printTaxonomy(tax *client.Taxonomy) error {
	if flagFmt == "table" {
		formatTree(stdout, tax.Groups)
		return nil
	}
	return output(tax, strconv.Itoa(tax.Total))
}

// readRecords decodes a JSON array of objects from path, or stdin for "-".
func readRecords(path string) ([]map[string]any, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open records: %w", err)
		}
		defer f.Close()
		r = f
	}

	var records []map[string]any
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}

