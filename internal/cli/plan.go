package cli

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/davidthor/trectl/pkg/engine"
	"github.com/davidthor/trectl/pkg/resource"
)

func newPlanCmd() *cobra.Command {
	var (
		templatePath string
		templateName string
		action       string
		triggerPath  string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Expand a pipeline into an execution plan",
		Long: `Expand a template's pipeline for a lifecycle action into the ordered,
fully resolved execution plan, without dispatching anything. The plan
prints as JSON for audit or review.

Examples:
  trectl plan -t workspace-base.yaml -a install -r workspace.json
  trectl plan --name workspace-base -a uninstall -r workspace.json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			trigger, err := loadTrigger(triggerPath)
			if err != nil {
				return err
			}

			eng := engine.NewEngine(nil)
			plan, err := eng.Plan(engine.RunOptions{
				TemplatePath: templatePath,
				CatalogDir:   viper.GetString("catalog"),
				TemplateName: templateName,
				Action:       resource.Action(action),
				Trigger:      trigger,
			})
			if err != nil {
				return err
			}

			return printJSON(plan)
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Path to a template document")
	cmd.Flags().StringVar(&templateName, "name", "", "Template name to look up in the catalog")
	cmd.Flags().StringVarP(&action, "action", "a", "", "Lifecycle action (install, upgrade, uninstall)")
	cmd.Flags().StringVarP(&triggerPath, "resource", "r", "", "Path to the triggering resource snapshot (JSON)")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("resource")

	return cmd
}

// loadTrigger reads a triggering resource snapshot from a JSON file.
func loadTrigger(path string) (*resource.Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resource snapshot %s: %w", path, err)
	}

	var trigger resource.Instance
	if err := json.Unmarshal(data, &trigger); err != nil {
		return nil, fmt.Errorf("failed to parse resource snapshot %s: %w", path, err)
	}
	if trigger.ID == "" {
		return nil, fmt.Errorf("resource snapshot %s has no id", path)
	}
	return &trigger, nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
