package commands

import (
	"context"
	"fmt"
	"os"

	"cumulus-backend/lib/configutil"
	"cumulus-backend/lib/scrapers/cumulus"
	"cumulus-backend/lib/telemetry"

	"github.com/spf13/cobra"
)

var verbose bool
var configPath string

var rootCmd = &cobra.Command{
	Use:   "cumulus-cli",
	Short: "Fetch purchase receipts from the Cumulus loyalty portal.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
		tel, err := telemetry.SetupFromEnv(cmd.Context(), "cumulus-cli")
		if err == nil {
			cobra.OnFinalize(func() {
				tel.Shutdown(context.Background())
			})
			telemetry.InstrumentPerfStats(cmd.Context())
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "cumulus.json5", "path to the credentials config file")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

type credentialsConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// newSession reads credentials, constructs a client and runs the full login
// sequence. Expect it to take a few seconds, the login steps are paced on
// purpose.
func newSession(ctx context.Context) (*cumulus.Client, error) {
	config, err := configutil.ReadConfig[credentialsConfig](configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials from %s: %w", configPath, err)
	}

	client, err := cumulus.NewClient(ctx, cumulus.ClientOptions{
		Username: config.Username,
		Password: config.Password,
	})
	if err != nil {
		return nil, err
	}

	if err := client.Login(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
