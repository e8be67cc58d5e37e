package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/video-note/internal/service"
	"github.com/MimeLyc/video-note/internal/subtitle"
	"github.com/MimeLyc/video-note/pkg/file"
)

func newNoteCommand(ctx *commandContext) *cobra.Command {
	var (
		prompt       string
		instructions string
		tag          string
	)

	cmd := &cobra.Command{
		Use:   "note <subtitle>",
		Short: "Generate a markdown note from a subtitle",
		Long: `Generate a markdown note from a subtitle.

The argument is either a path to an SRT/VTT file or the name of a subtitle
in the data directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			req := service.NoteRequest{
				Instructions: instructions,
				Prompt:       prompt,
				Tag:          tag,
			}
			if st, err := os.Stat(args[0]); err == nil && !st.IsDir() {
				sub, err := subtitle.NewReader().Read(args[0])
				if err != nil {
					return err
				}
				req.Text = sub.Text()
				req.SourceName = file.Stem(filepath.Base(args[0]))
			} else {
				req.SubtitleFile = args[0]
			}

			note, err := a.svc.GenerateNote(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Note: %s\n", note.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Name of a stored prompt")
	cmd.Flags().StringVar(&instructions, "instructions", "", "Instructions for the note writer")
	cmd.Flags().StringVar(&tag, "tag", "", "Tag recorded in the note header")
	return cmd
}
