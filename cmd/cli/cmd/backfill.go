package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Backfill audit records for pre-existing jobs",
	Long: `Write synthetic creation records for jobs that predate the audit log.

Manager only. Safe to run repeatedly: jobs that already have records are
skipped.`,
	Run: func(cmd *cobra.Command, args []string) {
		token := viper.GetString("token")
		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the JOBTRACK_TOKEN environment variable")
			return
		}

		client := NewTrackClient(viper.GetString("url"), token, viper.GetString("actor"))
		resp, err := client.Backfill()
		if err != nil {
			cmd.Printf("Backfill failed: %v\n", err)
			return
		}

		cmd.Printf("Backfilled %d record(s).\n", resp.Records)
	},
}

func init() {
	rootCmd.AddCommand(backfillCmd)
}
