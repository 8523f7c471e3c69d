package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/neonviz/neon/client"
	"github.com/neonviz/neon/internal/models"
	"github.com/neonviz/neon/internal/taxonomy"
	"github.com/neonviz/neon/internal/widgets"
)

// localResult mirrors the server's toggle response for an offline build.
type localResult struct {
	WidgetID        string                `json:"widget_id"`
	Total           int                   `json:"total"`
	Records         int                   `json:"records"`
	Groups          []models.TaxonomyNode `json:"groups"`
	FiltersToSet    []models.FilterDesign `json:"filters_to_set"`
	FiltersToDelete []models.FilterDesign `json:"filters_to_delete"`
}

func newLocalCmd() *cobra.Command {
	var unchecked []string
	cmd := &cobra.Command{
		Use:   "local <widgets.yaml> <widget> <records.json|->",
		Short: "Build a taxonomy offline and print the filters its unchecked nodes imply",
		Args:  cobra.ExactArgs(3),
		// No server is contacted.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := runLocal(args[0], args[1], args[2], unchecked)
			if err != nil {
				return err
			}
			if flagFmt != "table" {
				return output(res, fmt.Sprintf("%d %d", len(res.FiltersToSet), len(res.FiltersToDelete)))
			}

			var view struct {
				Groups []client.TaxonomyNode `json:"groups"`
				Set    []client.FilterDesign `json:"filters_to_set"`
				Delete []client.FilterDesign `json:"filters_to_delete"`
			}
			data, err := json.Marshal(res)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(data, &view); err != nil {
				return err
			}
			formatTree(stdout, view.Groups)
			fmt.Fprintln(stdout)
			formatDesigns(stdout, view.Set, view.Delete)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&unchecked, "uncheck", nil, "Dotted node paths to uncheck, applied in order")
	return cmd
}

func runLocal(widgetsPath, widgetID, recordsPath string, unchecked []string) (*localResult, error) {
	f, err := os.Open(widgetsPath)
	if err != nil {
		return nil, fmt.Errorf("open widgets: %w", err)
	}
	defer f.Close()

	defs, err := widgets.Parse(f)
	if err != nil {
		return nil, err
	}

	var widget *widgets.Widget
	for i := range defs {
		if defs[i].ID == widgetID {
			widget = &defs[i]
			break
		}
	}
	if widget == nil {
		return nil, fmt.Errorf("widget %q not found in %s", widgetID, widgetsPath)
	}

	raw, err := readRecords(recordsPath)
	if err != nil {
		return nil, err
	}
	records := make([]models.Record, len(raw))
	for i, r := range raw {
		records[i] = models.Record(r)
	}

	tree := taxonomy.Build(records, widget.TaxonomyFields(), nil)
	for _, path := range unchecked {
		i, err := tree.FindPath(path)
		if err != nil {
			return nil, fmt.Errorf("path %q: %w", path, err)
		}
		tree.Toggle(i, false)
	}

	ex := tree.Exchange()
	return &localResult{
		WidgetID:        widget.ID,
		Total:           tree.Total(),
		Records:         tree.Records(),
		Groups:          tree.View(),
		FiltersToSet:    ex.Set,
		FiltersToDelete: ex.Delete,
	}, nil
}
