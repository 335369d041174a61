package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
	"github.com/kirillkom/pageindex-recall/internal/infrastructure/pageindex"
)

func newInspectCmd() *cobra.Command {
	var (
		depth   int
		listIDs bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <index.json>",
		Short: "Summarize a page index file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := pageindex.NewLoader().Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if listIDs {
				for _, id := range index.IDs() {
					fmt.Fprintln(out, id)
				}
				return nil
			}
			fmt.Fprintf(out, "%d addressable nodes, %d roots\n", index.Len(), len(index.Roots))
			var walk func(nodes []*domain.DocumentNode, level int)
			walk = func(nodes []*domain.DocumentNode, level int) {
				if level >= depth {
					return
				}
				for _, n := range nodes {
					id := n.ID
					if id == "" {
						id = "-"
					}
					fmt.Fprintf(out, "%*s%s  %s\n", level*2, "", id, n.Title)
					walk(n.Children, level+1)
				}
			}
			walk(index.Roots, 0)
			return nil
		},
	}
	cmd.Flags().IntVarP(&depth, "depth", "d", 2, "Tree depth to print")
	cmd.Flags().BoolVar(&listIDs, "ids", false, "Print addressable node ids in traversal order")
	return cmd
}
