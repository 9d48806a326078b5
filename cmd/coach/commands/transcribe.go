package commands

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amanullahtanweer/interview-coach/internal/interview"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file>",
	Short: "Transcribe a recorded answer",
	Long: `Upload an audio file to the final round submit endpoint and print the
transcript and the detected keywords.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		rec := interview.Recording{Data: data, MIMEType: mimeType(args[0])}
		result, err := newClient().Transcribe(cmd.Context(), rec)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{"transcript": result.Text, "keywords": result.Topics})
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Text)
		if len(result.Topics) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "\nKeywords: %s\n", strings.Join(result.Topics, ", "))
		}
		return nil
	},
}

func mimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav":
		return "audio/wav"
	case ".webm":
		return "audio/webm"
	case ".mp3":
		return "audio/mpeg"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func init() {
	rootCmd.AddCommand(transcribeCmd)
}
