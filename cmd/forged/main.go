// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the forged CLI: the generation
// orchestration daemon and its one-shot mode.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/renderforge/internal/secrets"
	"github.com/pdiddy/renderforge/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the forged CLI.
var rootCmd = &cobra.Command{
	Use:   "forged",
	Short: "Generation orchestration engine",
	Long: `forged turns a content request (title, brief, notes, output format) into a
finished artifact: a slide deck, document, PDF, or web page. It coordinates
planning, research enrichment, asset acquisition, rendering, and quality
validation over fallback chains of external providers.

Run "forged serve" for the HTTP job API, or "forged generate" for a
one-shot job from the command line.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./renderforge.yaml or ~/.config/renderforge/config.yaml)")
	rootCmd.PersistentFlags().String("log-mode", "", "log mode: production or development (default production)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("renderforge")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "renderforge"))
		}
	}

	viper.SetEnvPrefix("RENDERFORGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadEngineConfig reads the YAML config file viper located, fills in
// defaults, and applies environment overrides for the settings that make
// sense per deployment.
func loadEngineConfig() (types.EngineConfig, error) {
	var cfg types.EngineConfig

	if path := viper.ConfigFileUsed(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	// RENDERFORGE_ADDR, RENDERFORGE_DATA_DIR etc. override the file.
	if addr := viper.GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if dir := viper.GetString("data_dir"); dir != "" {
		cfg.Store.Dir = filepath.Join(dir, "jobs")
		cfg.Render.OutputDir = filepath.Join(dir, "artifacts")
	}
	if key := viper.GetString("openai_api_key"); key != "" {
		cfg.Planner.LLM.APIKey = key
	}
	if model := viper.GetString("model"); model != "" {
		cfg.Planner.LLM.Model = model
	}

	return cfg.WithDefaults(), nil
}

func logMode() string {
	if mode, _ := rootCmd.PersistentFlags().GetString("log-mode"); mode != "" {
		return mode
	}
	if mode := viper.GetString("log_mode"); mode != "" {
		return mode
	}
	return "production"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
