package main

import (
	"errors"
	"fmt"
	"strconv"

	"engineroom/internal/engine"
	"engineroom/internal/propagation"
	"engineroom/internal/store"

	"github.com/spf13/cobra"
)

var (
	engineCategory string
	engineKind     string
	engineParadigm string
	engineStatus   string
	engineSearch   string
	engineLimit    int
	engineOffset   int
	importDir      string
	changedBy      string
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "Manage analytical engine definitions",
}

var enginesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List engines",
	RunE:  runEnginesList,
}

var enginesShowCmd = &cobra.Command{
	Use:   "show <engine-key>",
	Short: "Show one engine in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnginesShow,
}

var enginesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import engine definitions from a directory",
	Long: `Walks a directory of YAML or JSON engine definition files and inserts
every engine not yet in the registry at version 1. Existing engines are
skipped; a bad file is reported and the walk continues.`,
	RunE: runEnginesImport,
}

var enginesDeleteCmd = &cobra.Command{
	Use:   "delete <engine-key>",
	Short: "Archive an engine",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnginesDelete,
}

var enginesRestoreCmd = &cobra.Command{
	Use:   "restore <engine-key> <version>",
	Short: "Restore an earlier version as a new version",
	Args:  cobra.ExactArgs(2),
	RunE:  runEnginesRestore,
}

var enginesVersionsCmd = &cobra.Command{
	Use:   "versions <engine-key>",
	Short: "List an engine's version history",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnginesVersions,
}

func init() {
	enginesListCmd.Flags().StringVar(&engineCategory, "category", "", "filter by category")
	enginesListCmd.Flags().StringVar(&engineKind, "kind", "", "filter by kind")
	enginesListCmd.Flags().StringVar(&engineParadigm, "paradigm", "", "filter by associated paradigm key")
	enginesListCmd.Flags().StringVar(&engineStatus, "status", "", "filter by status")
	enginesListCmd.Flags().StringVar(&engineSearch, "search", "", "substring match over key, name, description")
	enginesListCmd.Flags().IntVar(&engineLimit, "limit", 0, "max engines to return")
	enginesListCmd.Flags().IntVar(&engineOffset, "offset", 0, "offset into the result set")

	enginesImportCmd.Flags().StringVar(&importDir, "dir", "", "directory of engine definition files")
	enginesImportCmd.MarkFlagRequired("dir")

	enginesCmd.PersistentFlags().StringVar(&changedBy, "by", "", "author attribution for recorded changes")

	enginesCmd.AddCommand(enginesListCmd)
	enginesCmd.AddCommand(enginesShowCmd)
	enginesCmd.AddCommand(enginesImportCmd)
	enginesCmd.AddCommand(enginesDeleteCmd)
	enginesCmd.AddCommand(enginesRestoreCmd)
	enginesCmd.AddCommand(enginesVersionsCmd)
}

func runEnginesList(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	engines, err := c.store.ListEngines(store.EngineFilter{
		Category: engineCategory,
		Kind:     engine.Kind(engineKind),
		Paradigm: engineParadigm,
		Status:   engine.Status(engineStatus),
		Search:   engineSearch,
		Limit:    engineLimit,
		Offset:   engineOffset,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		summaries := make([]engine.Summary, 0, len(engines))
		for _, e := range engines {
			summaries = append(summaries, e.Summarize())
		}
		return printJSON(summaries)
	}

	if len(engines) == 0 {
		fmt.Println(dimStyle.Render("No engines match."))
		return nil
	}

	rows := make([][]string, 0, len(engines))
	for _, e := range engines {
		rows = append(rows, []string{
			e.EngineKey,
			truncate(e.EngineName, 32),
			e.Category,
			string(e.Kind),
			fmt.Sprintf("v%d", e.Version),
			string(e.Status),
			boolMark(e.HasStageContext()),
		})
	}
	printTable([]string{"KEY", "NAME", "CATEGORY", "KIND", "VERSION", "STATUS", "STAGE CTX"}, rows)
	return nil
}

func runEnginesShow(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	e, err := c.store.GetEngine(args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(e)
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("%s  v%d  (%s)", e.EngineKey, e.Version, e.Status)))
	fmt.Println(keyStyle.Render(e.EngineName))
	fmt.Println()
	fmt.Println(e.Description)
	fmt.Println()
	fmt.Printf("%s %s / %s\n", headerStyle.Render("Category:"), e.Category, e.Kind)
	if len(e.ParadigmKeys) > 0 {
		fmt.Printf("%s %v\n", headerStyle.Render("Paradigms:"), e.ParadigmKeys)
	}
	if e.HasStageContext() {
		fmt.Printf("%s stage context (framework: %s)\n", headerStyle.Render("Prompts:"), orNone(e.StageContext.FrameworkKey))
	} else {
		fmt.Printf("%s legacy static prompts\n", headerStyle.Render("Prompts:"))
	}
	return nil
}

func runEnginesImport(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	definitions, err := engine.LoadDefinitions(importDir)
	if err != nil {
		return err
	}

	created, skipped := 0, 0
	for _, def := range definitions {
		err := c.store.CreateEngine(def, changedBy, "Initial import")
		switch {
		case errors.Is(err, store.ErrExists):
			skipped++
			continue
		case err != nil:
			fmt.Println(errorStyle.Render(fmt.Sprintf("Skipping %s: %v", def.EngineKey, err)))
			continue
		}
		created++
		if _, err := c.recorder.Record(propagation.ConstructEngine, def.EngineKey, propagation.ChangeCreate, nil, def, changedBy, "Initial import"); err != nil {
			fmt.Println(warnStyle.Render(fmt.Sprintf("Imported %s but failed to record change: %v", def.EngineKey, err)))
		}
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("Imported %d engines (%d already present)", created, skipped)))
	return nil
}

func runEnginesDelete(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	key := args[0]
	current, err := c.store.GetEngine(key)
	if err != nil {
		return err
	}
	if err := c.store.DeleteEngine(key); err != nil {
		return err
	}
	if _, err := c.recorder.Record(propagation.ConstructEngine, key, propagation.ChangeDelete, current, nil, changedBy, ""); err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("Archived %s but failed to record change: %v", key, err)))
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("Archived engine %s (version history retained)", key)))
	return nil
}

func runEnginesRestore(cmd *cobra.Command, args []string) error {
	version, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("version must be a number: %w", err)
	}

	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	key := args[0]
	before, err := c.store.GetEngine(key)
	if err != nil {
		return err
	}
	restored, err := c.store.RestoreEngine(key, version, changedBy)
	if err != nil {
		return err
	}
	if _, err := c.recorder.Record(propagation.ConstructEngine, key, propagation.ChangeUpdate, before, restored,
		changedBy, fmt.Sprintf("Restored from version %d", version)); err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("Restored %s but failed to record change: %v", key, err)))
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("Restored %s version %d as version %d", key, version, restored.Version)))
	return nil
}

func runEnginesVersions(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	records, err := c.store.EngineVersions(args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(records)
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			fmt.Sprintf("v%d", r.Version),
			r.CreatedAt.Format("2006-01-02 15:04"),
			orNone(r.ChangedBy),
			truncate(r.ChangeSummary, 60),
		})
	}
	printTable([]string{"VERSION", "DATE", "BY", "SUMMARY"}, rows)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
