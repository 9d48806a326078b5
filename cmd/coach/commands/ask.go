package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amanullahtanweer/interview-coach/internal/interview"
)

var askRole string

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Run a final round interview in the terminal",
	Long: `Run the final round as a text conversation: the server asks, you type
the answer, and the loop ends when the interviewer closes the interview.
An empty line ends the session early.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client := newClient()
		out := cmd.OutOrStdout()
		in := bufio.NewScanner(cmd.InOrStdin())

		opening, err := client.Start(ctx, askRole)
		if err != nil {
			return err
		}
		history := []interview.Turn{{Speaker: interview.SpeakerInterviewer, Text: opening.Text}}
		fmt.Fprintf(out, "Interviewer: %s\n", opening.Text)

		for {
			fmt.Fprint(out, "> ")
			if !in.Scan() {
				return in.Err()
			}
			answer := strings.TrimSpace(in.Text())
			if answer == "" {
				return nil
			}
			history = append(history, interview.Turn{Speaker: interview.SpeakerCandidate, Text: answer})

			next, err := client.Next(ctx, history, askRole)
			if err != nil {
				return err
			}
			history = append(history, interview.Turn{Speaker: interview.SpeakerInterviewer, Text: next.Text})
			fmt.Fprintf(out, "Interviewer: %s\n", next.Text)
			if next.Closing {
				return nil
			}
		}
	},
}

func init() {
	askCmd.Flags().StringVar(&askRole, "role", "", "job role")
	rootCmd.AddCommand(askCmd)
}
