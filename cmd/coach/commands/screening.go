package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	screeningRole       string
	screeningExperience string
	screeningSkills     string
)

var screeningCmd = &cobra.Command{
	Use:   "screening",
	Short: "Fetch screening round questions",
	Long: `Ask the server for the five screening questions of a role.

Examples:
  coach screening --role "site reliability engineer" --experience "5 years"
  coach screening --skills "Kubernetes, Terraform" --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		questions, err := newClient().ScreeningQuestions(cmd.Context(), screeningRole, screeningExperience, screeningSkills)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string][]string{"questions": questions})
		}
		for i, q := range questions {
			fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, q)
		}
		return nil
	},
}

func init() {
	screeningCmd.Flags().StringVar(&screeningRole, "role", "", "job role")
	screeningCmd.Flags().StringVar(&screeningExperience, "experience", "", "experience level")
	screeningCmd.Flags().StringVar(&screeningSkills, "skills", "", "comma separated skills")
	rootCmd.AddCommand(screeningCmd)
}
