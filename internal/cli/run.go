package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/davidthor/trectl/pkg/dispatch"
	"github.com/davidthor/trectl/pkg/engine"
	"github.com/davidthor/trectl/pkg/engine/executor"
	"github.com/davidthor/trectl/pkg/resource"
)

func newRunCmd() *cobra.Command {
	var (
		templatePath string
		templateName string
		action       string
		triggerPath  string
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a lifecycle pipeline",
		Long: `Plan and execute a template's pipeline for a lifecycle action against
the configured dispatcher.

Steps run strictly in plan order. A step failure halts the remaining
steps; completed steps are not rolled back. Re-running the same action
is safe - planning and patching are idempotent.

Examples:
  trectl run -t workspace-base.yaml -a install -r workspace.json
  trectl run --name workspace-base -a uninstall -r workspace.json --dry-run`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			trigger, err := loadTrigger(triggerPath)
			if err != nil {
				return err
			}

			dispatcher, err := newDispatcher()
			if err != nil {
				return err
			}

			eng := engine.NewEngine(dispatcher)
			result, err := eng.Run(cmd.Context(), engine.RunOptions{
				TemplatePath: templatePath,
				CatalogDir:   viper.GetString("catalog"),
				TemplateName: templateName,
				Action:       resource.Action(action),
				Trigger:      trigger,
				DryRun:       dryRun,
			})
			if err != nil {
				return err
			}

			if dryRun {
				return printJSON(result.Plan)
			}

			printExecution(result.Execution)
			if result.Execution.Status == executor.StatusFailed {
				return fmt.Errorf("pipeline failed at step %q: %v",
					result.Execution.FailedStep, result.Execution.Cause)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Path to a template document")
	cmd.Flags().StringVar(&templateName, "name", "", "Template name to look up in the catalog")
	cmd.Flags().StringVarP(&action, "action", "a", "", "Lifecycle action (install, upgrade, uninstall)")
	cmd.Flags().StringVarP(&triggerPath, "resource", "r", "", "Path to the triggering resource snapshot (JSON)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan without executing")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("resource")

	return cmd
}

// newDispatcher builds the dispatcher selected by configuration.
func newDispatcher() (dispatch.Dispatcher, error) {
	name := viper.GetString("dispatcher")
	config := map[string]string{
		"path": viper.GetString("resources"),
	}
	return dispatch.New(name, config)
}

func printExecution(result *executor.Result) {
	for _, step := range result.StepResults {
		status := "ok"
		if !step.Success {
			status = fmt.Sprintf("failed: %v", step.Error)
		}
		fmt.Printf("  step %-24s %s (%s)\n", step.StepID, status, step.Duration.Round(time.Millisecond))
	}
	fmt.Printf("Pipeline %s: %d step(s) completed\n", result.Status, len(result.CompletedSteps))
}
