package commands

import (
	"github.com/spf13/cobra"

	"github.com/hearsaylabs/hearsay/pkg/cli"
	"github.com/hearsaylabs/hearsay/pkg/hearsay"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage calibrated speaker profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List calibrated speakers",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		users, err := app.core.ListCalibrated(cmd.Context())
		if err != nil {
			return err
		}
		return output(struct {
			Count int                      `json:"count" yaml:"count"`
			Users []hearsay.CalibratedUser `json:"users" yaml:"users"`
		}{Count: len(users), Users: users})
	},
}

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete <user-id>",
	Short: "Delete a speaker's profile locally and at the provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		if err := app.core.RemoveCalibration(cmd.Context(), args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("deleted profile for %s", args[0])
		return nil
	},
}

func init() {
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesDeleteCmd)
	rootCmd.AddCommand(profilesCmd)
}
