package main

import (
	"fmt"

	"engineroom/internal/propagation"

	"github.com/spf13/cobra"
)

var (
	consumerType    string
	consumerRepo    string
	consumerWebhook string
	consumerEmail   string
	consumerAuto    bool

	trackConsumer string
	trackType     string
	trackKey      string
	trackLocation string
	trackUsage    string
)

var consumersCmd = &cobra.Command{
	Use:   "consumers",
	Short: "Manage downstream consumers and their dependencies",
}

var consumersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered consumers",
	RunE:  runConsumersList,
}

var consumersRegisterCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Register a new consumer",
	Long: `Registers a downstream consumer of the construct library. A consumer
with a webhook URL receives a POST whenever a construct it depends on
changes.

Example:
  engineroom consumers register analysis-svc --type service \
    --webhook https://analysis.internal/hooks/engineroom`,
	Args: cobra.ExactArgs(1),
	RunE: runConsumersRegister,
}

var consumersTrackCmd = &cobra.Command{
	Use:   "track",
	Short: "Track a consumer's dependency on a construct",
	Long: `Records that a consumer uses a construct. Tracked dependencies
determine which consumers a change event reaches.

Example:
  engineroom consumers track --consumer analysis-svc \
    --construct-type engine --construct-key claim_extractor`,
	RunE: runConsumersTrack,
}

func init() {
	consumersRegisterCmd.Flags().StringVar(&consumerType, "type", "service", "consumer type (service|cli|library)")
	consumersRegisterCmd.Flags().StringVar(&consumerRepo, "repo", "", "repository URL")
	consumersRegisterCmd.Flags().StringVar(&consumerWebhook, "webhook", "", "webhook URL for change notifications")
	consumersRegisterCmd.Flags().StringVar(&consumerEmail, "email", "", "contact email")
	consumersRegisterCmd.Flags().BoolVar(&consumerAuto, "auto-update", false, "consumer follows changes automatically")

	consumersTrackCmd.Flags().StringVar(&trackConsumer, "consumer", "", "consumer name")
	consumersTrackCmd.Flags().StringVar(&trackType, "construct-type", "engine", "construct type (engine|paradigm|pipeline)")
	consumersTrackCmd.Flags().StringVar(&trackKey, "construct-key", "", "construct key")
	consumersTrackCmd.Flags().StringVar(&trackLocation, "location", "", "where in the consumer the construct is used")
	consumersTrackCmd.Flags().StringVar(&trackUsage, "usage", "direct", "usage type (direct|indirect|optional)")
	consumersTrackCmd.MarkFlagRequired("consumer")
	consumersTrackCmd.MarkFlagRequired("construct-key")

	consumersCmd.AddCommand(consumersListCmd)
	consumersCmd.AddCommand(consumersRegisterCmd)
	consumersCmd.AddCommand(consumersTrackCmd)
}

func runConsumersList(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	consumers, err := c.store.ListConsumers()
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(consumers)
	}

	if len(consumers) == 0 {
		fmt.Println(dimStyle.Render("No consumers registered."))
		return nil
	}

	rows := make([][]string, 0, len(consumers))
	for _, consumer := range consumers {
		active := 0
		for _, d := range consumer.Dependencies {
			if d.IsActive {
				active++
			}
		}
		rows = append(rows, []string{
			consumer.Name,
			string(consumer.ConsumerType),
			fmt.Sprintf("%d", active),
			boolMark(consumer.WebhookURL != ""),
			boolMark(consumer.AutoUpdate),
		})
	}
	printTable([]string{"NAME", "TYPE", "ACTIVE DEPS", "WEBHOOK", "AUTO"}, rows)
	return nil
}

func runConsumersRegister(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	consumer := &propagation.Consumer{
		Name:         args[0],
		ConsumerType: propagation.ConsumerType(consumerType),
		RepoURL:      consumerRepo,
		WebhookURL:   consumerWebhook,
		ContactEmail: consumerEmail,
		AutoUpdate:   consumerAuto,
	}
	if err := c.store.RegisterConsumer(consumer); err != nil {
		return err
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("Registered consumer %s (%s)", consumer.Name, consumer.ID)))
	return nil
}

func runConsumersTrack(cmd *cobra.Command, args []string) error {
	c, err := openConsole()
	if err != nil {
		return err
	}
	defer c.Close()

	consumer, err := c.store.GetConsumerByName(trackConsumer)
	if err != nil {
		return err
	}

	dep := &propagation.Dependency{
		ConsumerID:    consumer.ID,
		ConstructType: propagation.ConstructType(trackType),
		ConstructKey:  trackKey,
		UsageLocation: trackLocation,
		UsageType:     propagation.UsageType(trackUsage),
		IsActive:      true,
	}
	if err := c.store.AddDependency(dep); err != nil {
		return err
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("Tracking: %s depends on %s %s", consumer.Name, trackType, trackKey)))
	return nil
}
