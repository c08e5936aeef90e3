package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papapumpkin/contagion/internal/centrality"
	"github.com/papapumpkin/contagion/internal/config"
	"github.com/papapumpkin/contagion/internal/logging"
	"github.com/papapumpkin/contagion/internal/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "contagion",
	Short: "Viral centrality for social influence graphs",
	Long: `Contagion builds weighted influence graphs from pairwise interactions
(reshares, quotes, replies, mentions) and scores every account by viral
centrality: the expected number of other accounts reached when a cascade
starts there.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default .contagion.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("db", "", "SQLite store path (default .contagion/contagion.db)")
	rootCmd.PersistentFlags().String("events", "", "append JSONL telemetry events to this file")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("db_path", rootCmd.PersistentFlags().Lookup("db"))
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".contagion")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("CONTAGION")
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}

// bindFlags binds the named flags of the running command to config keys.
// Commands share keys such as "order", so binding happens per invocation
// rather than in init.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		f := flags.Lookup(flag)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	return nil
}

// engineFlags are the centrality flags shared by compute and watch.
var engineFlags = map[string]string{
	"order":     "order",
	"beta":      "beta",
	"tolerance": "tolerance",
	"workers":   "workers",
}

func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("order", "k", 5, "propagation rounds per seed")
	cmd.Flags().Float64("beta", 1.0, "transmissibility multiplier applied to every edge weight")
	cmd.Flags().Float64("tolerance", 0, "stop a seed early once no probability moves by more than this (0 = exactly --order rounds)")
	cmd.Flags().Int("workers", 0, "seeds computed concurrently (0 = one per CPU)")
}

// session bundles what every command needs after configuration is resolved.
type session struct {
	cfg    config.Config
	logger *zap.Logger
	events *telemetry.Emitter
}

// setup loads configuration, builds the logger and opens the telemetry
// stream. The returned cleanup must be called when the command finishes.
func setup(cmd *cobra.Command) (*session, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Verbose)
	if err != nil {
		return nil, nil, err
	}

	var events *telemetry.Emitter
	if path, _ := cmd.Flags().GetString("events"); path != "" {
		if events, err = telemetry.NewEmitter(path); err != nil {
			_ = logger.Sync()
			return nil, nil, err
		}
	}

	cleanup := func() {
		if err := events.Close(); err != nil {
			logger.Warn("closing telemetry", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return &session{cfg: cfg, logger: logger, events: events}, cleanup, nil
}

// emit records a telemetry event, logging rather than failing on error.
func (sess *session) emit(evt telemetry.Event) {
	if err := sess.events.Emit(evt); err != nil {
		sess.logger.Warn("emitting telemetry", zap.String("kind", evt.Kind), zap.Error(err))
	}
}

func (sess *session) engineOptions() centrality.Options {
	return centrality.Options{
		Order:     sess.cfg.Order,
		Beta:      sess.cfg.Beta,
		Tolerance: sess.cfg.Tolerance,
		Workers:   sess.cfg.Workers,
	}
}
