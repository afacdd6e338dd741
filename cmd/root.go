package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/heywhy/bucket/internal/config"
	"github.com/heywhy/bucket/internal/log"
	"github.com/heywhy/bucket/pkg/bucket"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config
	cleanupFn func()
)

var rootCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Resolve components and their dependencies from manifest sources",
	Long: `bucket is a runtime component registry. Components are declared in
YAML, JSON or HCL manifests under a base directory or URL; resolving an id
loads its manifest, expands its dependency tree and constructs every
dependency before the component itself.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
	PersistentPostRun: func(*cobra.Command, []string) {
		if cleanupFn != nil {
			cleanupFn()
			cleanupFn = nil
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .bucket/config.yaml, then ~/.config/bucket/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"write debug logs (also BUCKET_DEBUG)")
	rootCmd.PersistentFlags().StringP("base", "b", "",
		"directory or http(s) URL component sources are loaded from")
	rootCmd.PersistentFlags().String("storage", "",
		"cache storage driver: sqlite or memory")

	bindFlags()
}

// bindFlags binds persistent flags to their config keys.
func bindFlags() {
	_ = viper.BindPFlag("base", rootCmd.PersistentFlags().Lookup("base"))
	_ = viper.BindPFlag("storage.driver", rootCmd.PersistentFlags().Lookup("storage"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("base", defaults.Base)
	viper.SetDefault("extension", defaults.Extension)
	viper.SetDefault("cache.automate", defaults.Cache.Automate)
	viper.SetDefault("cache.expires", defaults.Cache.Expires)
	viper.SetDefault("storage.driver", defaults.Storage.Driver)
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	viper.SetEnvPrefix("BUCKET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .bucket/config.yaml (current directory)
		// 2. ~/.config/bucket/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			viper.SetConfigFile(localConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "bucket"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "warning: reading config %s: %v\n", cfgFile, err)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// localConfigPath is where "config init" writes by default.
const localConfigPath = ".bucket/config.yaml"

// configPath returns the config file in use, or the default location.
func configPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	if cfgFile != "" {
		return cfgFile
	}
	return localConfigPath
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	debug := debugFlag || os.Getenv("BUCKET_DEBUG") != "" || cfg.Log.Debug
	if !debug {
		return nil
	}

	logPath := cfg.Log.Path
	if logPath == "" {
		logPath = config.DefaultLogPath()
	}
	cleanup, err := log.Init(logPath)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	log.SetMinLevel(log.ParseLevel(strings.ToLower(cfg.Log.Level)))
	cleanupFn = cleanup

	log.Info(log.CatCLI, "bucket starting", "command", cmd.Name(), "config", viper.ConfigFileUsed())
	return nil
}

// openBucket builds a bucket from the loaded configuration.
func openBucket() (*bucket.Bucket, error) {
	return bucket.Open(cfg)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
