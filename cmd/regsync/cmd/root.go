package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aweris/regsync"
	"github.com/aweris/regsync/internal/copier"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "regsync",
	Short: "Replicate container images between registries",
	Long: `Read line-delimited JSON records on stdin, copy every source image to its
destination registry and write one JSON record per input on stdout with a
success flag. Diagnostics go to stderr.`,
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
	RunE:              runSync,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("regsync failed")
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ~/.config/regsync/config.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("backend", regsync.BackendSkopeo, "copy backend (skopeo or crane)")
	flags.Int("retry-times", regsync.DefaultRetryTimes, "copy attempts per image")
	flags.String("skopeo-path", "skopeo", "skopeo executable")
	flags.String("skopeo-tmpdir", "", "skopeo temporary directory")
	flags.Bool("insecure", false, "allow insecure registries (crane backend)")

	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("backend", flags.Lookup("backend"))
	viper.BindPFlag("retry_times", flags.Lookup("retry-times"))
	viper.BindPFlag("skopeo.path", flags.Lookup("skopeo-path"))
	viper.BindPFlag("skopeo.tmpdir", flags.Lookup("skopeo-tmpdir"))
	viper.BindPFlag("registry.insecure", flags.Lookup("insecure"))
}

func initConfig() {
	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("REGSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Map job secrets arrive under these names.
	viper.BindEnv("registry.username", "REGSYNC_REGISTRY_USERNAME", "YT_SECURE_VAULT_TRACTO_REGISTRY_USERNAME")
	viper.BindEnv("registry.password", "REGSYNC_REGISTRY_PASSWORD", "YT_SECURE_VAULT_TRACTO_REGISTRY_PASSWORD")
	viper.BindEnv("registry.url", "REGSYNC_REGISTRY_URL", "TRACTO_REGISTRY_URL")
	viper.BindEnv("registry.proxy_url", "REGSYNC_PROXY_URL", "YT_PROXY")

	viper.ReadInConfig()
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "regsync")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "regsync")
	}
	return ".regsync"
}

func setupLogging(cmd *cobra.Command, args []string) error {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	level, err := logrus.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)
	return nil
}

// loadConfig reads the process-wide configuration once.
func loadConfig() (regsync.Config, error) {
	cfg := regsync.Config{
		Endpoint:     viper.GetString("registry.url"),
		Username:     viper.GetString("registry.username"),
		Password:     viper.GetString("registry.password"),
		Backend:      viper.GetString("backend"),
		RetryTimes:   viper.GetInt("retry_times"),
		SkopeoPath:   viper.GetString("skopeo.path"),
		SkopeoTmpDir: viper.GetString("skopeo.tmpdir"),
		Insecure:     viper.GetBool("registry.insecure"),
	}

	if cfg.Endpoint == "" {
		if proxy := viper.GetString("registry.proxy_url"); proxy != "" {
			endpoint, err := regsync.RegistryURLFromProxy(proxy)
			if err != nil {
				return regsync.Config{}, fmt.Errorf("%w: %w", regsync.ErrMissingConfiguration, err)
			}
			logrus.WithField("endpoint", endpoint).Debug("Derived registry url from proxy")
			cfg.Endpoint = endpoint
		}
	}

	if err := cfg.Validate(); err != nil {
		return regsync.Config{}, err
	}
	return cfg, nil
}

type copyBackend interface {
	regsync.Copier
	regsync.Authenticator
}

func newBackend(cfg regsync.Config) copyBackend {
	opts := []copier.Option{
		copier.WithRetryTimes(cfg.RetryTimes),
		copier.WithOutput(os.Stderr, os.Stderr),
	}

	if cfg.Backend == regsync.BackendCrane {
		opts = append(opts, copier.WithInsecure(cfg.Insecure))
		return copier.NewCrane(opts...)
	}

	opts = append(opts,
		copier.WithSkopeoPath(cfg.SkopeoPath),
		copier.WithTmpDir(cfg.SkopeoTmpDir),
	)
	return copier.NewSkopeo(opts...)
}
