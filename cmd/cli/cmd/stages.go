package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the tenant's workflow stages",
	Long: `List the stages jobs move through, in pipeline order.

Tenants without custom stages see the shared system set.`,
	Run: func(cmd *cobra.Command, args []string) {
		entityType, _ := cmd.Flags().GetString("entity-type")

		token := viper.GetString("token")
		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the JOBTRACK_TOKEN environment variable")
			return
		}

		client := NewTrackClient(viper.GetString("url"), token, viper.GetString("actor"))
		stages, err := client.ListStages(entityType)
		if err != nil {
			cmd.Printf("Failed to list stages: %v\n", err)
			return
		}

		if len(stages) == 0 {
			cmd.Println("No stages defined.")
			return
		}

		cmd.Printf("%-4s %-20s %-10s %s\n", "SEQ", "NAME", "CATEGORY", "ID")
		for _, s := range stages {
			cmd.Printf("%-4d %-20s %-10s %s\n", s.Sequence, s.Name, s.Category, s.ID)
		}
	},
}

func init() {
	stagesCmd.Flags().String("entity-type", "job", "Entity type (job or project)")

	rootCmd.AddCommand(stagesCmd)
}
