package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/leadbot/core/bootstrap"
	"github.com/m3rciful/leadbot/core/buildinfo"
	corecmd "github.com/m3rciful/leadbot/core/cmd"
	coreconfig "github.com/m3rciful/leadbot/core/config"
	coredatabase "github.com/m3rciful/leadbot/core/database"
	"github.com/m3rciful/leadbot/core/logger"
	"github.com/m3rciful/leadbot/internal/app"
)

const (
	configEnvVar      = "CONFIG_PATH"
	defaultConfigPath = "config.yaml"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Printf("leadbot: %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "leadbot",
		Short:         "Telegram lead-capture bot",
		Long:          "Runs the pitch, quiz and contact form conversation and posts finished leads to the intake endpoint.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return corecmd.Run(corecmd.Options{
				ConfigPath:        configPath,
				ConfigEnvVar:      configEnvVar,
				DefaultConfigPath: defaultConfigPath,
				LoadConfig:        coreconfig.Load,
				Bootstrap:         buildApp,
			})
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (overrides "+configEnvVar+")")

	root.AddCommand(newMigrateCmd(&configPath), newVersionCmd())
	return root
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply lead journal migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := corecmd.ResolveConfigPath(corecmd.Options{
				ConfigPath:        *configPath,
				ConfigEnvVar:      configEnvVar,
				DefaultConfigPath: defaultConfigPath,
			})
			if err != nil {
				return err
			}
			cfg, err := coreconfig.Load(path)
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return fmt.Errorf("database.driver is not set; nothing to migrate")
			}
			if err := logger.InitLogger(cfg); err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()
			return coredatabase.RunMigrations(cfg.Database)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}

// leadApp ties the bot to the journal connection opened during bootstrap.
type leadApp struct {
	*app.App
	infra *bootstrap.Result
}

func (a *leadApp) Close() error {
	a.App.Close()
	return a.infra.Close()
}

func buildApp(cfg *coreconfig.Config) (corecmd.TelegramApp, error) {
	infra, err := bootstrap.Run(bootstrap.Options{Config: cfg})
	if err != nil {
		return nil, err
	}
	a, err := app.New(app.Options{Config: cfg, DB: infra.DB})
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	return &leadApp{App: a, infra: infra}, nil
}
