package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	feedbackQuestion string
	feedbackAnswer   string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Grade an answer to a screening question",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fb, err := newClient().ScreeningFeedback(cmd.Context(), feedbackQuestion, feedbackAnswer)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), fb)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Assessment:  %s\n", fb.Assessment)
		fmt.Fprintf(out, "Strength:    %s\n", fb.Strength)
		fmt.Fprintf(out, "Improvement: %s\n", fb.Improvement)
		fmt.Fprintf(out, "Score:       %v/10\n", fb.ScoreOutOf10)
		return nil
	},
}

func init() {
	feedbackCmd.Flags().StringVarP(&feedbackQuestion, "question", "q", "", "the screening question")
	feedbackCmd.Flags().StringVarP(&feedbackAnswer, "answer", "a", "", "the candidate's answer")
	rootCmd.AddCommand(feedbackCmd)
}
