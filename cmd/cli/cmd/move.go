package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jobtrack/pkg/api"
)

var moveCmd = &cobra.Command{
	Use:   "move [job_id]",
	Short: "Move a job to another stage or status",
	Long: `Request a stage or status transition for a job.

Exactly one of --stage and --status must be given. Stage moves are
validated against the tenant's stage graph; a rejected move prints the
allowed next stages. --status is for hold/resume: a held job keeps its
stage and returns to it on resume.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]
		stage, _ := cmd.Flags().GetString("stage")
		status, _ := cmd.Flags().GetString("status")
		notes, _ := cmd.Flags().GetString("notes")

		if (stage == "") == (status == "") {
			cmd.Println("Exactly one of --stage and --status is required")
			return
		}

		token := viper.GetString("token")
		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the JOBTRACK_TOKEN environment variable")
			return
		}

		req := api.TransitionRequest{Notes: notes}
		if stage != "" {
			req.StageID = &stage
		}
		if status != "" {
			req.Status = &status
		}

		client := NewTrackClient(viper.GetString("url"), token, viper.GetString("actor"))
		resp, err := client.Transition(jobID, req)
		if err != nil {
			cmd.Printf("Transition failed: %v\n", err)
			return
		}

		if resp.NoOp {
			cmd.Println("Job already in the requested state; nothing recorded.")
			return
		}

		cmd.Printf("Job %s moved.\n", resp.Job.ID)
		cmd.Printf("Status:  %s\n", resp.Job.Status)
		if resp.Job.CurrentStageID != nil {
			cmd.Printf("Stage:   %s\n", *resp.Job.CurrentStageID)
		}
		cmd.Printf("Version: %d\n", resp.Job.Version)
		cmd.Printf("Record:  %d\n", resp.RecordID)
	},
}

func init() {
	moveCmd.Flags().String("stage", "", "Target stage ID")
	moveCmd.Flags().String("status", "", "Target status (planning, active, on_hold, complete)")
	moveCmd.Flags().String("notes", "", "Free-form note recorded with the transition")

	rootCmd.AddCommand(moveCmd)
}
