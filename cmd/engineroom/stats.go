package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show construct library statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	stats, err := c.store.Stats()
	if err != nil {
		return err
	}
	categories, err := c.store.EngineCategories()
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]interface{}{
			"tables":            stats,
			"engine_categories": categories,
		})
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("engineroom library (%s)", c.store.Path())))
	fmt.Println()

	order := []struct{ table, label string }{
		{"engines", "Engines"},
		{"engine_versions", "Engine versions"},
		{"paradigms", "Paradigms"},
		{"pipelines", "Pipelines"},
		{"consumers", "Consumers"},
		{"consumer_dependencies", "Tracked dependencies"},
		{"changes", "Change events"},
		{"change_notifications", "Notifications"},
	}
	rows := make([][]string, 0, len(order))
	for _, o := range order {
		rows = append(rows, []string{o.label, fmt.Sprintf("%d", stats[o.table])})
	}
	printTable([]string{"CONSTRUCT", "COUNT"}, rows)

	if len(categories) > 0 {
		names := make([]string, 0, len(categories))
		for name := range categories {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Println()
		fmt.Println(headerStyle.Render("Engines by category:"))
		catRows := make([][]string, 0, len(names))
		for _, name := range names {
			catRows = append(catRows, []string{orNone(name), fmt.Sprintf("%d", categories[name])})
		}
		printTable([]string{"CATEGORY", "COUNT"}, catRows)
	}
	return nil
}
