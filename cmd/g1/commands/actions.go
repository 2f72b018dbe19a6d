package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-g1/pkg/actions"
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Print the action tables and the intent catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, g := range []actions.Group{actions.GroupArm, actions.GroupLoco} {
			fmt.Fprintf(w, "[%s]\n", g)
			for _, e := range actions.List(g) {
				fmt.Fprintf(w, "  %d\t%s\n", e.ID, e.Name)
			}
		}
		fmt.Fprintln(w, "[intents]")
		for _, id := range actions.DefaultCatalog.IDs() {
			in := actions.DefaultCatalog[id]
			fmt.Fprintf(w, "  %d\t%s/%s\t%s\n", id, in.Group, in.Name, in.Desc)
		}
		return w.Flush()
	},
}
