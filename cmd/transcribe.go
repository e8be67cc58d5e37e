package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/video-note/internal/service"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var (
		modelID  string
		lang     string
		format   string
		outDir   string
		showText bool
	)

	cmd := &cobra.Command{
		Use:   "transcribe <media-file>",
		Short: "Transcribe a local audio or video file into a subtitle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if outDir = strings.TrimSpace(outDir); outDir != "" {
				abs, err := filepath.Abs(outDir)
				if err != nil {
					return err
				}
				cfg.Storage.SubtitleDir = abs
			}

			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			res, err := a.svc.ExtractPath(cmd.Context(), args[0], service.ExtractRequest{
				ModelID:  modelID,
				Language: lang,
				Format:   format,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.Degraded {
				fmt.Fprintln(out, "Warning: speech backend unavailable, the subtitle holds placeholder text")
			}
			fmt.Fprintf(out, "Subtitle: %s\n", res.SubtitlePath)
			fmt.Fprintf(out, "Model:    %s\n", res.ModelID)
			fmt.Fprintf(out, "Language: %s\n", res.Language)
			fmt.Fprintf(out, "Duration: %s (%s segments)\n", formatSeconds(res.Duration), humanize.Comma(int64(len(res.Segments))))
			if showText {
				fmt.Fprintln(out)
				fmt.Fprintln(out, res.Text)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&modelID, "model", "m", "", "Model to use instead of the current one")
	cmd.Flags().StringVarP(&lang, "language", "l", "", "Spoken language, or auto to detect it")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Subtitle format: srt or vtt")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory for the subtitle file")
	cmd.Flags().BoolVar(&showText, "text", false, "Print the transcript text")
	return cmd
}

func formatSeconds(sec float64) string {
	total := int(sec + 0.5)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
