package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/davidthor/trectl/pkg/errors"
	"github.com/davidthor/trectl/pkg/schema/template"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate template documents",
		Long: `Validate a template document, or every template in the catalog
directory, without executing anything.

Examples:
  trectl validate ./templates/workspace-base.yaml
  trectl validate --catalog ./templates`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := template.NewLoader()

			if len(args) > 0 {
				if err := loader.Validate(args[0]); err != nil {
					return formatValidationError(err)
				}
				fmt.Println("Template is valid!")
				return nil
			}

			templates, err := loader.LoadDir(viper.GetString("catalog"))
			if err != nil {
				return formatValidationError(err)
			}
			fmt.Printf("All %d templates are valid!\n", len(templates))
			return nil
		},
	}

	return cmd
}

// formatValidationError extracts and displays validation error details
func formatValidationError(err error) error {
	var trectlErr *errors.Error
	unwrapped := err
	for unwrapped != nil {
		if e, ok := unwrapped.(*errors.Error); ok {
			trectlErr = e
			break
		}
		if u, ok := unwrapped.(interface{ Unwrap() error }); ok {
			unwrapped = u.Unwrap()
		} else {
			break
		}
	}

	if trectlErr != nil && trectlErr.Code == errors.ErrCodeValidation {
		if errList, ok := trectlErr.Details["errors"].([]string); ok && len(errList) > 0 {
			var sb strings.Builder
			sb.WriteString("validation failed\n")
			sb.WriteString("\nValidation errors:\n")
			for _, e := range errList {
				sb.WriteString(fmt.Sprintf("  - %s\n", e))
			}
			return fmt.Errorf("%s", sb.String())
		}
	}

	return fmt.Errorf("validation failed: %w", err)
}
