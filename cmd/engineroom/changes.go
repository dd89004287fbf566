package main

import (
	"context"
	"fmt"
	"strings"

	"engineroom/internal/propagation"
	"engineroom/internal/store"

	"github.com/spf13/cobra"
)

var (
	changeFilterType   string
	changeFilterKey    string
	changeFilterKind   string
	changeFilterStatus string
	changeLimit        int

	recordType    string
	recordKey     string
	recordSummary string
	recordBy      string

	notifyOnly bool

	ackConsumer string
	ackAction   string
	ackMessage  string
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Inspect and propagate construct change events",
}

var changesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded change events",
	RunE:  runChangesList,
}

var changesShowCmd = &cobra.Command{
	Use:   "show <change-id>",
	Short: "Show a change event with its field and prompt diffs",
	Args:  cobra.ExactArgs(1),
	RunE:  runChangesShow,
}

var changesRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a manual change annotation for a construct",
	Long: `Records a change event for a construct without modifying it, so that
out-of-band edits (a migration script, a direct database fix) still
reach the consumers that depend on the construct.`,
	RunE: runChangesRecord,
}

var changesPropagateCmd = &cobra.Command{
	Use:   "propagate <change-id>",
	Short: "Notify affected consumers of a change",
	Args:  cobra.ExactArgs(1),
	RunE:  runChangesPropagate,
}

var changesHintsCmd = &cobra.Command{
	Use:   "hints <change-id>",
	Short: "Show migration hints derived from a change's diff",
	Args:  cobra.ExactArgs(1),
	RunE:  runChangesHints,
}

var changesAckCmd = &cobra.Command{
	Use:   "ack <change-id>",
	Short: "Acknowledge a change on behalf of a consumer",
	Args:  cobra.ExactArgs(1),
	RunE:  runChangesAck,
}

func init() {
	changesListCmd.Flags().StringVar(&changeFilterType, "construct-type", "", "filter by construct type (engine|paradigm|pipeline)")
	changesListCmd.Flags().StringVar(&changeFilterKey, "construct-key", "", "filter by construct key")
	changesListCmd.Flags().StringVar(&changeFilterKind, "kind", "", "filter by change type (create|update|delete)")
	changesListCmd.Flags().StringVar(&changeFilterStatus, "status", "", "filter by propagation status")
	changesListCmd.Flags().IntVar(&changeLimit, "limit", 50, "maximum number of changes to show")

	changesRecordCmd.Flags().StringVar(&recordType, "construct-type", "engine", "construct type (engine|paradigm|pipeline)")
	changesRecordCmd.Flags().StringVar(&recordKey, "construct-key", "", "construct key")
	changesRecordCmd.Flags().StringVar(&recordSummary, "summary", "", "what changed and why")
	changesRecordCmd.Flags().StringVar(&recordBy, "by", "", "who made the change")
	changesRecordCmd.MarkFlagRequired("construct-key")
	changesRecordCmd.MarkFlagRequired("summary")

	changesPropagateCmd.Flags().BoolVar(&notifyOnly, "notify-only", false, "record notifications without calling webhooks")

	changesAckCmd.Flags().StringVar(&ackConsumer, "consumer", "", "consumer name")
	changesAckCmd.Flags().StringVar(&ackAction, "action", "updated", "action taken (updated|ignored|rollback_requested|pending)")
	changesAckCmd.Flags().StringVar(&ackMessage, "message", "", "response message")
	changesAckCmd.MarkFlagRequired("consumer")

	changesCmd.AddCommand(changesListCmd)
	changesCmd.AddCommand(changesShowCmd)
	changesCmd.AddCommand(changesRecordCmd)
	changesCmd.AddCommand(changesPropagateCmd)
	changesCmd.AddCommand(changesHintsCmd)
	changesCmd.AddCommand(changesAckCmd)
}

func runChangesList(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	changes, err := c.store.ListChanges(store.ChangeFilter{
		ConstructType: propagation.ConstructType(changeFilterType),
		ConstructKey:  changeFilterKey,
		ChangeType:    propagation.ChangeType(changeFilterKind),
		Status:        propagation.Status(changeFilterStatus),
		Limit:         changeLimit,
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(changes)
	}

	if len(changes) == 0 {
		fmt.Println(dimStyle.Render("No changes recorded."))
		return nil
	}

	rows := make([][]string, 0, len(changes))
	for _, ch := range changes {
		rows = append(rows, []string{
			ch.ID[:8],
			string(ch.ConstructType),
			ch.ConstructKey,
			string(ch.ChangeType),
			string(ch.PropagationStatus),
			ch.ChangedAt.Format("2006-01-02 15:04"),
			truncate(ch.ChangeSummary, 48),
		})
	}
	printTable([]string{"ID", "TYPE", "KEY", "CHANGE", "PROPAGATION", "WHEN", "SUMMARY"}, rows)
	return nil
}

func runChangesShow(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	ch, err := findChange(c.store, args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(ch)
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Change %s", ch.ID)))
	fmt.Printf("%s %s %s (%s)\n", headerStyle.Render("Construct:"), ch.ConstructType, keyStyle.Render(ch.ConstructKey), ch.ChangeType)
	fmt.Printf("%s %s\n", headerStyle.Render("When:"), ch.ChangedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("%s %s\n", headerStyle.Render("By:"), orNone(ch.ChangedBy))
	fmt.Printf("%s %s\n", headerStyle.Render("Summary:"), ch.ChangeSummary)
	fmt.Printf("%s %s\n", headerStyle.Render("Propagation:"), ch.PropagationStatus)
	fmt.Printf("%s %d\n", headerStyle.Render("Affected consumers:"), len(ch.AffectedConsumers))

	if d := ch.Diff; d != nil && !d.Empty() {
		fmt.Println()
		fmt.Println(headerStyle.Render("Diff: ") + d.Summary())
		for _, f := range d.Added {
			fmt.Printf("  %s %s\n", successStyle.Render("+"), f)
		}
		for _, f := range d.Removed {
			fmt.Printf("  %s %s\n", errorStyle.Render("-"), f)
		}
		for _, fc := range d.Changed {
			fmt.Printf("  %s %s\n", warnStyle.Render("~"), fc.Field)
		}
		for field, unified := range d.PromptDiffs {
			fmt.Println()
			fmt.Println(headerStyle.Render(fmt.Sprintf("Prompt diff (%s):", field)))
			for _, line := range strings.Split(strings.TrimRight(unified, "\n"), "\n") {
				switch {
				case strings.HasPrefix(line, "+ "):
					fmt.Println("  " + successStyle.Render(line))
				case strings.HasPrefix(line, "- "):
					fmt.Println("  " + errorStyle.Render(line))
				default:
					fmt.Println("  " + dimStyle.Render(line))
				}
			}
		}
	}

	notifications, err := c.store.ListNotifications(ch.ID)
	if err != nil {
		return err
	}
	if len(notifications) > 0 {
		fmt.Println()
		fmt.Println(headerStyle.Render("Notifications:"))
		rows := make([][]string, 0, len(notifications))
		for _, n := range notifications {
			acked := dimStyle.Render("pending")
			if n.Acknowledged() {
				acked = fmt.Sprintf("%s (%s)", n.AcknowledgedAt.Format("2006-01-02 15:04"), n.ActionTaken)
			}
			rows = append(rows, []string{n.ConsumerID[:8], n.NotifiedAt.Format("2006-01-02 15:04"), acked})
		}
		printTable([]string{"CONSUMER", "NOTIFIED", "ACKNOWLEDGED"}, rows)
	}
	return nil
}

func runChangesRecord(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	ct := propagation.ConstructType(recordType)
	current, err := loadConstruct(c.store, ct, recordKey)
	if err != nil {
		return err
	}

	ch, err := c.recorder.Record(ct, recordKey, propagation.ChangeUpdate, current, current, recordBy, recordSummary)
	if err != nil {
		return err
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("Recorded change %s (%d affected consumers)", ch.ID, len(ch.AffectedConsumers))))
	return nil
}

func runChangesPropagate(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	ch, err := findChange(c.store, args[0])
	if err != nil {
		return err
	}

	report, err := c.propagator().Propagate(context.Background(), ch, notifyOnly)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(report)
	}

	switch report.Status {
	case propagation.StatusSkipped:
		fmt.Println(dimStyle.Render("No consumers depend on this construct; nothing to propagate."))
	case propagation.StatusCompleted:
		fmt.Println(successStyle.Render(fmt.Sprintf("Propagated to %d consumers (%d webhooks delivered)", report.Notified, report.Delivered)))
	default:
		fmt.Println(warnStyle.Render(fmt.Sprintf("Propagation %s: %d notified, %d delivered", report.Status, report.Notified, report.Delivered)))
	}
	for _, failure := range report.Failures {
		fmt.Println("  " + errorStyle.Render(failure))
	}
	return nil
}

func runChangesHints(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	ch, err := findChange(c.store, args[0])
	if err != nil {
		return err
	}

	hints := propagation.Hints(ch)
	if jsonOutput {
		return printJSON(hints)
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Migration hints for %s %s", ch.ConstructType, ch.ConstructKey)))
	for _, h := range hints {
		marker := dimStyle.Render("•")
		switch h.Kind {
		case propagation.HintBreaking:
			marker = errorStyle.Render("!")
		case propagation.HintAdditive:
			marker = successStyle.Render("+")
		case propagation.HintCompatible:
			marker = warnStyle.Render("~")
		}
		fmt.Printf("%s [%s/%s] %s\n", marker, h.Kind, h.Action, h.Message)
	}
	return nil
}

func runChangesAck(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	ch, err := findChange(c.store, args[0])
	if err != nil {
		return err
	}
	consumer, err := c.store.GetConsumerByName(ackConsumer)
	if err != nil {
		return err
	}

	action := propagation.Action(ackAction)
	if !action.Valid() {
		return fmt.Errorf("unknown acknowledgement action %q", ackAction)
	}
	if err := c.store.Acknowledge(ch.ID, consumer.ID, action, ackMessage); err != nil {
		return err
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("%s acknowledged change %s (%s)", consumer.Name, ch.ID[:8], action)))
	return nil
}

// findChange resolves a change by full ID, or by unambiguous ID prefix so
// the short IDs printed by `changes list` work as arguments.
func findChange(s *store.ConsoleStore, id string) (*propagation.Change, error) {
	ch, err := s.GetChange(id)
	if err == nil {
		return ch, nil
	}

	changes, listErr := s.ListChanges(store.ChangeFilter{})
	if listErr != nil {
		return nil, err
	}
	var match *propagation.Change
	for _, candidate := range changes {
		if strings.HasPrefix(candidate.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("change ID prefix %q is ambiguous", id)
			}
			match = candidate
		}
	}
	if match == nil {
		return nil, err
	}
	return match, nil
}

// loadConstruct fetches the current snapshot of a construct for manual
// change records.
func loadConstruct(s *store.ConsoleStore, ct propagation.ConstructType, key string) (interface{}, error) {
	switch ct {
	case propagation.ConstructEngine:
		return s.GetEngine(key)
	case propagation.ConstructParadigm:
		return s.GetParadigm(key)
	case propagation.ConstructPipeline:
		return s.GetPipeline(key)
	default:
		return nil, fmt.Errorf("unknown construct type %q", ct)
	}
}
