package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const tokenKey = "token"

type valueKind int

const (
	kindString valueKind = iota
	kindBool
	kindInt
	kindDuration
	kindList
	kindCacheType
	kindOutput
)

// settingKinds lists the keys config set accepts and how their values parse.
var settingKinds = map[string]valueKind{
	"url":                           kindString,
	tokenKey:                        kindString,
	"output":                        kindOutput,
	"normalize":                     kindBool,
	"debug":                         kindBool,
	"revalidate":                    kindDuration,
	"tags":                          kindList,
	"timeout":                       kindDuration,
	"retry_max":                     kindInt,
	"retry_wait_min":                kindDuration,
	"retry_wait_max":                kindDuration,
	"user_agent":                    kindString,
	"cache.type":                    kindCacheType,
	"cache.memory.max_size":         kindInt,
	"cache.nats.url":                kindString,
	"cache.nats.bucket":             kindString,
	"cache.nats.ttl":                kindDuration,
	"cache.nats.replicas":           kindInt,
	"cache.memory.cleanup_interval": kindDuration,
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Show and edit the settings stored in $HOME/.strapi/config.yml",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the effective configuration after flags and environment are applied. The token is masked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := map[string]any{}

			for key := range settingKinds {
				if !viper.IsSet(key) {
					continue
				}

				settings[key] = viper.Get(key)
			}

			if token, ok := settings[tokenKey].(string); ok && token != "" {
				settings[tokenKey] = constants.MaskedSecret
			}

			if path := viper.ConfigFileUsed(); path != "" {
				settings["config_file"] = path
			}

			return render(cmd.OutOrStdout(), settings)
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a configuration value. Keys: " + strings.Join(settingNames(), ", "),
		Example: `  strapi config set url https://cms.example.com
  strapi config set cache.type nats
  strapi config set revalidate 5m`,
		Args: cobra.ExactArgs(2), //nolint:mnd // key and value
		RunE: func(cmd *cobra.Command, args []string) error {
			key, raw := strings.ToLower(args[0]), args[1]

			value, err := parseSetting(key, raw)
			if err != nil {
				return err
			}

			settings, path, err := readConfigFile()
			if err != nil {
				return err
			}

			setNested(settings, strings.Split(key, "."), value)

			if err := writeConfigFile(path, settings); err != nil {
				return err
			}

			shown := raw
			if key == tokenKey {
				shown = constants.MaskedSecret
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Set %s to %s\n", key, shown)

			return err //nolint:wrapcheck // terminal write
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Long:  "Remove a configuration value from the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.ToLower(args[0])
			if _, ok := settingKinds[key]; !ok {
				return fmt.Errorf("%w: %q", constants.ErrUnknownConfigKey, key)
			}

			settings, path, err := readConfigFile()
			if err != nil {
				return err
			}

			unsetNested(settings, strings.Split(key, "."))

			if err := writeConfigFile(path, settings); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", key)

			return err //nolint:wrapcheck // terminal write
		},
	}
}

func settingNames() []string {
	names := make([]string, 0, len(settingKinds))
	for name := range settingKinds {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// parseSetting converts raw to the type stored for key.
func parseSetting(key, raw string) (any, error) {
	kind, ok := settingKinds[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", constants.ErrUnknownConfigKey, key)
	}

	invalid := func(err error) error {
		return fmt.Errorf("%w: %s=%q: %w", constants.ErrInvalidConfig, key, raw, err)
	}

	switch kind {
	case kindBool:
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, invalid(err)
		}

		return value, nil

	case kindInt:
		value, err := strconv.Atoi(raw)
		if err != nil {
			return nil, invalid(err)
		}

		return value, nil

	case kindDuration:
		if _, err := time.ParseDuration(raw); err != nil {
			return nil, invalid(err)
		}

		return raw, nil

	case kindList:
		return strings.Split(raw, ","), nil

	case kindCacheType:
		switch strapi.CacheType(raw) {
		case strapi.CacheTypeMemory, strapi.CacheTypeNATS, strapi.CacheTypeNone:
			return raw, nil
		default:
			return nil, invalid(strapi.ErrUnsupportedCacheType)
		}

	case kindOutput:
		switch raw {
		case constants.FormatTable, constants.FormatJSON, constants.FormatYAML:
			return raw, nil
		default:
			return nil, invalid(constants.ErrUnsupportedFormat)
		}

	default:
		return raw, nil
	}
}

// configFilePath returns --config, the file viper loaded, or the default
// location under $HOME.
func configFilePath() (string, error) {
	if path := viper.GetString("config"); path != "" {
		return path, nil
	}

	if path := viper.ConfigFileUsed(); path != "" {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, constants.ConfigDirName, constants.ConfigFileName+"."+constants.ConfigFileType), nil
}

// readConfigFile loads only what is stored on disk, without flag or
// environment overrides.
func readConfigFile() (map[string]any, string, error) {
	path, err := configFilePath()
	if err != nil {
		return nil, "", err
	}

	settings := map[string]any{}

	// path is the CLI's own config file
	// #nosec G304
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return settings, path, nil
	}

	if err != nil {
		return nil, "", fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, "", fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return settings, path, nil
}

func writeConfigFile(path string, settings map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), constants.ConfigDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, constants.ConfigFilePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func setNested(settings map[string]any, path []string, value any) {
	node := settings

	for _, segment := range path[:len(path)-1] {
		child, ok := node[segment].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[segment] = child
		}

		node = child
	}

	node[path[len(path)-1]] = value
}

func unsetNested(settings map[string]any, path []string) {
	if len(path) == 1 {
		delete(settings, path[0])

		return
	}

	child, ok := settings[path[0]].(map[string]any)
	if !ok {
		return
	}

	unsetNested(child, path[1:])

	if len(child) == 0 {
		delete(settings, path[0])
	}
}
