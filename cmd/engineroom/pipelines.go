package main

import (
	"fmt"

	"engineroom/internal/pipeline"
	"engineroom/internal/store"

	"github.com/spf13/cobra"
)

var (
	pipelineStatus   string
	pipelineCategory string
)

var pipelinesCmd = &cobra.Command{
	Use:   "pipelines",
	Short: "Manage pipeline compositions",
}

var pipelinesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipelines",
	RunE:  runPipelinesList,
}

var pipelinesShowCmd = &cobra.Command{
	Use:   "show <pipeline-key>",
	Short: "Show one pipeline and its stages",
	Args:  cobra.ExactArgs(1),
	RunE:  runPipelinesShow,
}

func init() {
	pipelinesListCmd.Flags().StringVar(&pipelineStatus, "status", "", "filter by status")
	pipelinesListCmd.Flags().StringVar(&pipelineCategory, "category", "", "filter by category")

	pipelinesCmd.AddCommand(pipelinesListCmd)
	pipelinesCmd.AddCommand(pipelinesShowCmd)
}

func runPipelinesList(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	pipelines, err := c.store.ListPipelines(store.PipelineFilter{
		Status:   pipeline.Status(pipelineStatus),
		Category: pipelineCategory,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		summaries := make([]pipeline.Summary, 0, len(pipelines))
		for _, p := range pipelines {
			summaries = append(summaries, p.Summarize())
		}
		return printJSON(summaries)
	}

	if len(pipelines) == 0 {
		fmt.Println(dimStyle.Render("No pipelines match."))
		return nil
	}

	rows := make([][]string, 0, len(pipelines))
	for _, p := range pipelines {
		rows = append(rows, []string{
			p.PipelineKey,
			truncate(p.PipelineName, 36),
			string(p.BlendMode),
			fmt.Sprintf("%d", len(p.Stages)),
			string(p.Status),
		})
	}
	printTable([]string{"KEY", "NAME", "BLEND", "STAGES", "STATUS"}, rows)
	return nil
}

func runPipelinesShow(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	p, err := c.store.GetPipeline(args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(p)
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("%s  (%s, %s)", p.PipelineKey, p.BlendMode, p.Status)))
	fmt.Println(keyStyle.Render(p.PipelineName))
	fmt.Println()
	fmt.Println(p.Description)
	fmt.Println()

	rows := make([][]string, 0, len(p.Stages))
	for _, s := range p.Stages {
		target := s.EngineKey
		if s.SubPipelineKey != "" {
			target = "pipeline:" + s.SubPipelineKey
		} else if len(s.SubPassEngineKeys) > 0 {
			target = fmt.Sprintf("%d sub-pass engines (%s)", len(s.SubPassEngineKeys), s.BlendMode)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", s.StageOrder),
			s.StageName,
			target,
			boolMark(s.PassContext),
		})
	}
	printTable([]string{"ORDER", "STAGE", "TARGET", "PASS CTX"}, rows)
	return nil
}
