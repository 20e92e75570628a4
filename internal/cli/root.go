package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/crowdframe/internal/logger"
	"github.com/ppiankov/crowdframe/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Version is the release tag printed by the version command
const Version = "crowdframe v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "crowdframe",
	Short: "Crowdframe - crowdsourcing task sessions with gold-check quality control",
	Long: `Crowdframe runs the worker side of a crowdsourcing annotation task.

A task is a directory of JSON configuration: settings, assessment
dimensions, questionnaires, instructions and the documents of one batch.
Crowdframe assembles the per-document forms, records every answer,
search and note in append-only ledgers, and evaluates gold documents at
submission to decide between success, retry and failure.

Every action a worker takes is logged as one record to the ingestion
table of its task batch.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetVerbose(viper.GetBool("verbose"))
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number and build information for Crowdframe.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.crowdframe/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(home + "/.crowdframe")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match CROWDFRAME_*, e.g.
	// CROWDFRAME_SEARCH_API_KEY for search.api_key
	viper.SetEnvPrefix("CROWDFRAME")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	registerDefaults()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// registerDefaults makes every config key known to viper so env vars
// override keys absent from the config file
func registerDefaults() {
	raw, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return
	}
	var defaults map[string]any
	if err := yaml.Unmarshal(raw, &defaults); err != nil {
		return
	}
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}

	// omitempty keys never reach the defaults map
	for _, key := range []string{
		"search.api_key", "search.base_url", "search.engine_id", "search.market",
		"ingest.endpoint", "http.http_proxy", "http.https_proxy", "http.no_proxy",
	} {
		_ = viper.BindEnv(key)
	}
}

// loadConfig resolves the application config: defaults overlaid with the
// config file, then CROWDFRAME_* env vars
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Output.Verbose = cfg.Output.Verbose || viper.GetBool("verbose")
	return cfg, nil
}
