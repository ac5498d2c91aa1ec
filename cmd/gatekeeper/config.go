package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Prints the configuration after defaults, the config file and GATEKEEPER_*
environment variables have been applied. Credentials in connection URLs are masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(redact(viper.AllSettings()))
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

// redact masks passwords embedded in url and uri settings.
func redact(settings map[string]any) map[string]any {
	for key, value := range settings {
		switch v := value.(type) {
		case map[string]any:
			settings[key] = redact(v)
		case string:
			if strings.HasSuffix(key, "url") || strings.HasSuffix(key, "uri") {
				settings[key] = redactURL(v)
			}
		}
	}
	return settings
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

func init() {
	rootCmd.AddCommand(configCmd)
}
