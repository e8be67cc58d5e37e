package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/video-note/internal/service"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List, inspect and select speech models",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known models and whether they are available locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderModels(a.svc.Models()))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "current",
		Short: "Show the current model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			current := a.svc.CurrentModel()
			fmt.Fprintf(cmd.OutOrStdout(), "%s (loaded: %s)\n", current.ID, yesNo(current.Loaded))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "select <id>",
		Short: "Load a model and make it the default; downloads it on first use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			current, err := a.svc.SelectModel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Selected %s\n", current.ID)
			return nil
		},
	})
	return cmd
}

func renderModels(models []service.ModelInfo) string {
	rows := make([][]string, 0, len(models))
	for _, m := range models {
		marker := ""
		if m.Current {
			marker = "*"
		}
		rows = append(rows, []string{marker, m.ID, m.Name, m.Size, m.Language, yesNo(m.Available)})
	}
	return renderTable(
		[]string{"", "ID", "Name", "Size", "Language", "Available"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}
