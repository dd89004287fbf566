package main

import (
	"errors"
	"fmt"

	"engineroom/internal/compose"
	"engineroom/internal/engine"

	"github.com/spf13/cobra"
)

var (
	composeStage    string
	composeAudience string
	composePretty   bool
)

var composeCmd = &cobra.Command{
	Use:   "compose <engine-key>",
	Short: "Compose a stage prompt for an engine",
	Long: `Composes the prompt for one stage of one engine, phrased for the
requested audience.

Engines with a stage_context render through the stage template, with
framework guidance merged in and audience vocabulary applied. Engines
without one serve their stored legacy prompt unchanged.

Example:
  engineroom compose claim_extractor --stage extraction --audience researcher`,
	Args: cobra.ExactArgs(1),
	RunE: runCompose,
}

func init() {
	composeCmd.Flags().StringVar(&composeStage, "stage", "extraction", "stage to compose (extraction|curation|concretization)")
	composeCmd.Flags().StringVar(&composeAudience, "audience", "", "audience tag (researcher|analyst|executive|activist)")
	composeCmd.Flags().BoolVar(&composePretty, "pretty", false, "render the prompt as markdown")
}

func runCompose(cmd *cobra.Command, args []string) error {
	stage, err := engine.ParseStage(composeStage)
	if err != nil {
		return err
	}
	var audience engine.Audience
	if composeAudience != "" {
		if audience, err = engine.ParseAudience(composeAudience); err != nil {
			return err
		}
	}

	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	e, err := c.store.GetEngine(args[0])
	if err != nil {
		return err
	}

	result, err := c.adapter.GetPrompt(e, stage, audience)
	if err != nil && !errors.Is(err, compose.ErrNotAvailable) {
		return err
	}

	if jsonOutput {
		return printJSON(result)
	}

	switch {
	case errors.Is(err, compose.ErrNotAvailable):
		fmt.Println(warnStyle.Render(fmt.Sprintf("No %s prompt available for %s: the engine has neither a stage context nor a legacy prompt.", stage, e.EngineKey)))
		return nil
	case result.Skipped:
		fmt.Println(dimStyle.Render(fmt.Sprintf("Concretization is marked as not applicable for %s.", e.EngineKey)))
		return nil
	case result.Error != "":
		fmt.Println(errorStyle.Render("Composition failed: " + result.Error))
		return nil
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("%s / %s (audience: %s)", result.EngineKey, result.PromptType, result.Audience)))
	if result.Composed {
		framework := result.FrameworkUsed
		if framework == "" {
			framework = "none"
		}
		fmt.Println(dimStyle.Render("composed from stage context, framework: " + framework))
	} else {
		fmt.Println(dimStyle.Render("legacy static prompt (audience parameter has no effect)"))
	}
	for _, note := range result.Notes {
		fmt.Println(warnStyle.Render("note: " + note))
	}
	fmt.Println()

	if composePretty {
		fmt.Print(renderMarkdown(result.Prompt))
	} else {
		fmt.Println(result.Prompt)
	}
	return nil
}
