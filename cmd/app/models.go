package main

import (
	"fmt"
	"text/tabwriter"

	"amzaki/internal/llm"

	"github.com/spf13/cobra"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List known Gemini models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, m := range llm.AvailableModels {
				marker := " "
				if m.ID == llm.DefaultModel {
					marker = "*"
				}
				fmt.Fprintf(w, "%s %s\t%s\t%s\n", marker, m.ID, m.Name, m.Description)
			}
			return w.Flush()
		},
	}
}
