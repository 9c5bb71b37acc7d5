package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/davidthor/trectl/pkg/dispatch/local"
	"github.com/davidthor/trectl/pkg/resource"
)

func newResourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resources",
		Aliases: []string{"resource", "rs"},
		Short:   "Inspect the local resource store",
	}

	cmd.AddCommand(newResourcesListCmd())
	cmd.AddCommand(newResourcesShowCmd())
	cmd.AddCommand(newResourcesPutCmd())
	cmd.AddCommand(newResourcesDeleteCmd())

	return cmd
}

func newResourcesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "list",
		Short:        "List stored resources",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}

			instances, err := store.List()
			if err != nil {
				return err
			}
			if len(instances) == 0 {
				fmt.Println("No resources found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tTEMPLATE\tVERSION")
			for _, inst := range instances {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					inst.ID, inst.Type, inst.TemplateName, inst.TemplateVersion)
			}
			return w.Flush()
		},
	}
}

func newResourcesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "show <id>",
		Short:        "Show a stored resource",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}

			inst, err := store.Load(args[0])
			if err != nil {
				return err
			}
			return printJSON(inst)
		},
	}
}

func newResourcesPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "put <file>",
		Short:        "Create or update a resource from a JSON document",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			var inst resource.Instance
			if err := json.Unmarshal(data, &inst); err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}
			if inst.ID == "" {
				return fmt.Errorf("resource document %s has no id", args[0])
			}

			store, err := newStore()
			if err != nil {
				return err
			}
			if err := store.Save(&inst, inst.Etag); err != nil {
				return err
			}

			fmt.Printf("Saved resource %s\n", inst.ID)
			return nil
		},
	}
}

func newResourcesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "delete <id>",
		Short:        "Delete a stored resource",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted resource %s\n", args[0])
			return nil
		},
	}
}

func newStore() (*local.Store, error) {
	return local.NewStore(viper.GetString("resources"))
}
