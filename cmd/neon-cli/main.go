// Command neon-cli drives a neon server from the terminal and can build a
// taxonomy offline from a widget file and a records dump.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/neonviz/neon/client"
	"github.com/neonviz/neon/internal/config"
)

const defaultURL = "http://localhost:3040"

var (
	apiClient *client.Client
	flagURL   string
	flagKey   string
	flagFmt   string
)

type configFile struct {
	URL           string                   `yaml:"url"`
	APIKey        string                   `yaml:"api_key"`
	Profiles      map[string]configProfile `yaml:"profiles"`
	ActiveProfile string                   `yaml:"active_profile"`
}

type configProfile struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "neon-cli",
		Short:   "Build and toggle neon taxonomies",
		Version: config.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			resolveConfig()
			var opts []client.Option
			if flagKey != "" {
				opts = append(opts, client.WithAPIKey(flagKey))
			}
			apiClient = client.New(flagURL, opts...)
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("neon-cli {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagURL, "url", defaultURL, "neon server URL (env: NEON_URL)")
	rootCmd.PersistentFlags().StringVar(&flagKey, "api-key", "", "API key (env: NEON_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "json", "Output format: json|table|quiet")

	rootCmd.AddCommand(newTaxonomyCmd())
	rootCmd.AddCommand(newFiltersCmd())
	rootCmd.AddCommand(newRecordsCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newLocalCmd())

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig fills unset flags from the environment, then from
// ~/.neon/config.yaml.
func resolveConfig() {
	if flagURL == defaultURL {
		if v := os.Getenv("NEON_URL"); v != "" {
			flagURL = v
		}
	}
	if flagKey == "" {
		flagKey = os.Getenv("NEON_API_KEY")
	}

	cfg, err := loadConfigFile()
	if err != nil {
		return
	}

	url, key := cfg.resolve()
	if flagURL == defaultURL && url != "" {
		flagURL = url
	}
	if flagKey == "" && key != "" {
		flagKey = key
	}
}

func loadConfigFile() (*configFile, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(home, ".neon", "config.yaml"))
	if err != nil {
		return nil, err
	}

	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// resolve picks the active profile's settings, falling back to the flat keys.
func (c *configFile) resolve() (url, key string) {
	url, key = c.URL, c.APIKey

	name := c.ActiveProfile
	if name == "" {
		name = "default"
	}
	if p, ok := c.Profiles[name]; ok {
		if p.URL != "" {
			url = p.URL
		}
		if p.APIKey != "" {
			key = p.APIKey
		}
	}
	return url, key
}
