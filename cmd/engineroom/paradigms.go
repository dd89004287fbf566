package main

import (
	"fmt"

	"engineroom/internal/paradigm"
	"engineroom/internal/store"

	"github.com/spf13/cobra"
)

var (
	paradigmStatus string
	paradigmSearch string
	primerPretty   bool
)

var paradigmsCmd = &cobra.Command{
	Use:   "paradigms",
	Short: "Manage paradigm ontologies",
}

var paradigmsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List paradigms",
	RunE:  runParadigmsList,
}

var paradigmsShowCmd = &cobra.Command{
	Use:   "show <paradigm-key>",
	Short: "Show one paradigm's four ontology layers",
	Args:  cobra.ExactArgs(1),
	RunE:  runParadigmsShow,
}

var paradigmsPrimerCmd = &cobra.Command{
	Use:   "primer <paradigm-key>",
	Short: "Render a paradigm's markdown primer",
	Args:  cobra.ExactArgs(1),
	RunE:  runParadigmsPrimer,
}

func init() {
	paradigmsListCmd.Flags().StringVar(&paradigmStatus, "status", "", "filter by status")
	paradigmsListCmd.Flags().StringVar(&paradigmSearch, "search", "", "substring match over key, name, description")
	paradigmsPrimerCmd.Flags().BoolVar(&primerPretty, "pretty", false, "render the primer as markdown")

	paradigmsCmd.AddCommand(paradigmsListCmd)
	paradigmsCmd.AddCommand(paradigmsShowCmd)
	paradigmsCmd.AddCommand(paradigmsPrimerCmd)
}

func runParadigmsList(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	paradigms, err := c.store.ListParadigms(store.ParadigmFilter{
		Status: paradigm.Status(paradigmStatus),
		Search: paradigmSearch,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		summaries := make([]paradigm.Summary, 0, len(paradigms))
		for _, p := range paradigms {
			summaries = append(summaries, p.Summarize())
		}
		return printJSON(summaries)
	}

	if len(paradigms) == 0 {
		fmt.Println(dimStyle.Render("No paradigms match."))
		return nil
	}

	rows := make([][]string, 0, len(paradigms))
	for _, p := range paradigms {
		rows = append(rows, []string{
			p.ParadigmKey,
			truncate(p.ParadigmName, 36),
			p.Version,
			string(p.Status),
			fmt.Sprintf("%d", p.EngineCount()),
		})
	}
	printTable([]string{"KEY", "NAME", "VERSION", "STATUS", "ENGINES"}, rows)
	return nil
}

func runParadigmsShow(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	p, err := c.store.GetParadigm(args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(p)
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("%s  v%s  (%s)", p.ParadigmKey, p.Version, p.Status)))
	fmt.Println(keyStyle.Render(p.ParadigmName))
	fmt.Println()
	fmt.Println(p.Description)
	fmt.Println()
	fmt.Printf("%s %s\n", headerStyle.Render("Guiding thinkers:"), p.GuidingThinkers)

	printLayerList("Foundational / assumptions", p.Foundational.Assumptions)
	printLayerList("Foundational / core tensions", p.Foundational.CoreTensions)
	printLayerList("Structural / primary entities", p.Structural.PrimaryEntities)
	printLayerList("Structural / relations", p.Structural.Relations)
	printLayerList("Dynamic / change mechanisms", p.Dynamic.ChangeMechanisms)
	printLayerList("Explanatory / key concepts", p.Explanatory.KeyConcepts)
	printLayerList("Explanatory / analytical methods", p.Explanatory.AnalyticalMethods)
	return nil
}

func runParadigmsPrimer(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	p, err := c.store.GetParadigm(args[0])
	if err != nil {
		return err
	}

	primer := p.GeneratePrimer()
	if jsonOutput {
		return printJSON(map[string]string{"paradigm_key": p.ParadigmKey, "primer": primer})
	}
	if primerPretty {
		fmt.Print(renderMarkdown(primer))
	} else {
		fmt.Println(primer)
	}
	return nil
}

func printLayerList(heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(headerStyle.Render(heading))
	for _, item := range items {
		fmt.Println("  - " + item)
	}
}
