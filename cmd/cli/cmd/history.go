package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var historyCmd = &cobra.Command{
	Use:   "history [job_id]",
	Short: "Show a job's transition history",
	Long:  `Print the immutable audit trail of a job's stage and status changes, oldest first.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]
		after, _ := cmd.Flags().GetInt64("after")
		limit, _ := cmd.Flags().GetInt("limit")

		token := viper.GetString("token")
		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the JOBTRACK_TOKEN environment variable")
			return
		}

		client := NewTrackClient(viper.GetString("url"), token, viper.GetString("actor"))
		page, err := client.History(jobID, after, limit)
		if err != nil {
			cmd.Printf("Failed to fetch history: %v\n", err)
			return
		}

		if len(page.Records) == 0 {
			cmd.Println("No transitions recorded.")
			return
		}

		for _, rec := range page.Records {
			from := "(created)"
			if rec.FromStageID != nil {
				from = *rec.FromStageID
			}
			to := "-"
			if rec.ToStageID != nil {
				to = *rec.ToStageID
			}
			marker := ""
			if rec.Backfill {
				marker = " [backfill]"
			}
			cmd.Printf("#%d  %s  %s -> %s  (%s -> %s)%s\n",
				rec.ID, rec.CreatedAt.Format(time.RFC3339), from, to, rec.FromStatus, rec.ToStatus, marker)
			if rec.Notes != "" {
				cmd.Printf("     note: %s\n", rec.Notes)
			}
		}
		if page.NextCursor != 0 {
			cmd.Printf("More records: rerun with --after %d\n", page.NextCursor)
		}
	},
}

func init() {
	historyCmd.Flags().Int64("after", 0, "Return records after this record ID")
	historyCmd.Flags().Int("limit", 50, "Maximum records per page")

	rootCmd.AddCommand(historyCmd)
}
