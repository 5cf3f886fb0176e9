package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jobtrack/pkg/api"
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage tenants",
}

var tenantCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Provision a new tenant",
	Long: `Provision a new tenant with its first manager user and an API key.

The API key is printed exactly once; store it somewhere safe.`,
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("name")
		managerEmail, _ := cmd.Flags().GetString("manager-email")
		managerPhone, _ := cmd.Flags().GetString("manager-phone")

		if name == "" {
			cmd.Println("A tenant name is required (--name)")
			return
		}

		client := NewTrackClient(viper.GetString("url"), viper.GetString("token"), viper.GetString("actor"))
		resp, err := client.CreateTenant(api.CreateTenantRequest{
			Name:         name,
			ManagerEmail: managerEmail,
			ManagerPhone: managerPhone,
		})
		if err != nil {
			cmd.Printf("Failed to create tenant: %v\n", err)
			return
		}

		cmd.Printf("Tenant created: %s\n", resp.TenantID)
		cmd.Printf("Manager user:  %s\n", resp.ManagerID)
		cmd.Printf("API key:       %s\n", resp.APIKey)
		cmd.Println("Store the API key now; it will not be shown again.")
	},
}

func init() {
	tenantCreateCmd.Flags().String("name", "", "Tenant name")
	tenantCreateCmd.Flags().String("manager-email", "", "Email of the first manager")
	tenantCreateCmd.Flags().String("manager-phone", "", "Phone number of the first manager")

	tenantCmd.AddCommand(tenantCreateCmd)
	rootCmd.AddCommand(tenantCmd)
}
