package main

import (
	"fmt"
	"os"

	"github.com/reedfamily/serverkit/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func rootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serverkit",
		Short: "Operate a dedicated game server through one API",
		Long: `serverkit fronts a dedicated game server running in a container and exposes
player management, bans, chat and scheduled actions over HTTP.

Every flag can also be set through the environment, e.g. SERVERKIT_BACKEND=vintagestory.

Quick start:
  serverkit serve --backend minecraft --container mc
  serverkit operator add alice`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("data-dir", "./data", "Directory holding the database and ban file")
	flags.String("db", "", "SQLite database path (default <data-dir>/serverkit.db)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "json", "Log format: json or console")
	bindFlags(v, cmd, map[string]string{
		"data_dir":   "data-dir",
		"db":         "db",
		"log_level":  "log-level",
		"log_format": "log-format",
	})

	cmd.AddCommand(serveCmd(v))
	cmd.AddCommand(operatorCmd(v))
	return cmd
}

// bindFlags binds config keys to the named flags of cmd.
func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			flag = cmd.PersistentFlags().Lookup(name)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func main() {
	if err := rootCmd(config.New()).Execute(); err != nil {
		os.Exit(1)
	}
}
