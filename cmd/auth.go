package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/macmole/internal/auth"
	"github.com/lakshaymaurya-felt/macmole/internal/ui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage deletion re-authentication",
}

var setPasswordCmd = &cobra.Command{
	Use:   "set-password",
	Short: "Require a password before every deletion",
	Long: `Store a bcrypt hash of a new deletion password in the config file.

Without a password, deletions ask for a yes/no confirmation instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := auth.PromptNewPassword()
		if err != nil {
			return err
		}
		hash, err := auth.HashPassword(pw)
		if err != nil {
			return err
		}
		if err := deps.settings.SetPasswordHash(hash); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Deletion password saved.\n", ui.Success(ui.IconCheck))
		return nil
	},
}

func init() {
	authCmd.AddCommand(setPasswordCmd)
}
