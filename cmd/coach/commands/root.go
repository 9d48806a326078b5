package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/amanullahtanweer/interview-coach/internal/apiclient"
)

var (
	// Global flags
	configFile string
	serverURL  string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "coach",
	Short: "Voice interview practice server and client",
	Long: `coach - interview practice over the phone and over HTTP.

The serve command runs the HTTP API used by the browser client and an
Asterisk AudioSocket server that interviews callers. The other commands
talk to a running server.

Examples:
  coach serve --config config.yaml
  coach screening --role "backend engineer" --skills "Go, Postgres"
  coach feedback -q "Why Go?" -a "Simple concurrency."
  coach transcribe answer.wav
  coach ask --role "data engineer"`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", apiclient.DefaultBaseURL, "base URL of a running coach server")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

func newClient() *apiclient.Client {
	return apiclient.New(serverURL)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
