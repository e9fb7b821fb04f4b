package cmd

import (
	"github.com/aweris/regsync"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the destination registry",
	Long:  "Authenticate against the destination registry with the configured credentials and exit.",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := regsync.Login(cmd.Context(), newBackend(cfg), cfg); err != nil {
		return err
	}

	logrus.WithField("endpoint", cfg.Endpoint).Info("Login succeeded")
	return nil
}
