package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	cometlog "github.com/cometbft/cometbft/libs/log"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/strangelove-ventures/fomc-oracle/pkg/config"
	"github.com/strangelove-ventures/fomc-oracle/pkg/tss"
	"github.com/strangelove-ventures/fomc-oracle/version"
)

const (
	flagHome     = "home"
	flagLogLevel = "log-level"
)

var (
	homeDir  string
	logLevel string
	cfg      config.RuntimeConfig
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oracle",
		Short: "Threshold BLS signed FOMC interest rate oracle",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&homeDir, flagHome, "", "Directory for config and data (default is $HOME/.oracle)")
	cmd.PersistentFlags().StringVar(&logLevel, flagLogLevel, "info", "Log level: debug, info, error or none")

	cmd.AddCommand(configCmd())
	cmd.AddCommand(keygenCmd())
	cmd.AddCommand(participantCmd())
	cmd.AddCommand(attestCmd())
	cmd.AddCommand(healthCmd())
	cmd.AddCommand(watchCmd())
	cmd.AddCommand(auditCmd())
	cmd.AddCommand(version.NewVersionCommand(tss.DST))

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	handleInitError(rootCmd().Execute())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	var home string
	if homeDir == "" {
		userHome, err := homedir.Dir()
		if err != nil {
			return err
		}
		home = filepath.Join(userHome, ".oracle")
	} else {
		home = homeDir
	}
	cfg = config.RuntimeConfig{
		HomeDir:    home,
		ConfigFile: filepath.Join(home, "config.yaml"),
		PidFile:    filepath.Join(home, "oracle.pid"),
	}

	v := viper.New()
	v.SetConfigFile(cfg.ConfigFile)
	v.SetEnvPrefix("oracle")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		// Commands that need a config validate it themselves.
		return nil
	}
	bz, err := os.ReadFile(v.ConfigFileUsed())
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(bz, &cfg.Config); err != nil {
		return fmt.Errorf("parse %s: %w", v.ConfigFileUsed(), err)
	}
	if debugAddr := v.GetString("debug_addr"); debugAddr != "" {
		cfg.Config.DebugAddr = debugAddr
	}
	return nil
}

func handleInitError(err error) {
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newLogger(out io.Writer, module string) (cometlog.Logger, error) {
	logger := cometlog.NewTMLogger(cometlog.NewSyncWriter(out)).With("module", module)
	option, err := cometlog.AllowLevel(logLevel)
	if err != nil {
		return nil, err
	}
	return cometlog.NewFilter(logger, option), nil
}
