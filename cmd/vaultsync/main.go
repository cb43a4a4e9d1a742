package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openvault/vaultsync/internal/client/config"
	"github.com/openvault/vaultsync/internal/utils"
	"github.com/openvault/vaultsync/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	home, _          = os.UserHomeDir()
	defaultLogFile   = filepath.Join(home, ".vaultsync", "logs", "vaultsync.log")
	configFileName   = "config"
	defaultServerURL = ""
)

var cyan = color.New(color.FgHiCyan, color.Bold).SprintFunc()

var rootCmd = &cobra.Command{
	Use:           "vaultsync",
	Short:         "Two-way sync for a local knowledge vault",
	Version:       version.Detailed(),
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "config file")
	rootCmd.PersistentFlags().StringP("vault", "d", config.DefaultVaultDir, "local vault directory")
	rootCmd.PersistentFlags().StringP("server", "s", defaultServerURL, "remote store URL")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setupLogging() {
	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})

	fileWriter := &lumberjack.Logger{
		Filename:   defaultLogFile,
		MaxSize:    10, // MB
		MaxBackups: 3,
	}
	fileHandler := slog.NewTextHandler(fileWriter, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	logger := slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler))
	slog.SetDefault(logger)
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".vaultsync"))
		viper.AddConfigPath(filepath.Join(home, ".config", "vaultsync"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("vault_dir", cmd.Flags().Lookup("vault"))
	viper.BindPFlag("server_url", cmd.Flags().Lookup("server"))

	viper.SetEnvPrefix("VAULTSYNC")
	viper.AutomaticEnv()

	return nil
}

// currentConfig builds and validates the configuration for this invocation.
func currentConfig() (*config.Config, error) {
	cfg := &config.Config{
		Path:       viper.ConfigFileUsed(),
		VaultDir:   viper.GetString("vault_dir"),
		ServerURL:  viper.GetString("server_url"),
		RemoteRoot: viper.GetString("remote_root"),
		APIKey:     viper.GetString("api_key"),
		DeviceID:   viper.GetString("device_id"),
		QuickScan:  viper.GetBool("quick_scan"),
	}
	if cfg.Path == "" {
		cfg.Path = config.DefaultConfigPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDeviceID(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func showHeader() {
	fmt.Println(cyan(version.AppName), version.Detailed())
}
