package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/texsense/am"
	"github.com/teranos/texsense/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage texsense configuration",
	Long: `am: Manage texsense configuration ("I am")

Display and manage texsense configuration settings.

Configuration sources (in order of precedence):
1. Editor settings (workspace/didChangeConfiguration, while serving)
2. Environment variables (TEXSENSE_* prefix)
3. Project config (./am.toml, searched upwards)
4. User config (~/.texsense/am.toml)
5. System config (/etc/texsense/am.toml)
6. Default values

Examples:
  texsense am show                                  # Show current configuration
  texsense am show --format json                    # Show configuration in JSON format
  texsense am show --sources                        # Show where each value came from
  texsense am get intellisense.citation.type        # Get specific config value
  texsense am set intellisense.citation.type browser
  texsense am validate                              # Validate current configuration`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current texsense configuration from all sources",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., intellisense.citation.type, server.port)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the project am.toml (or the user file with
--user). The previous file is kept as am.toml.back1 .. .back3.`,
	Args: cobra.ExactArgs(2),
	RunE: runAmSet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Long:  "Validate that the current texsense configuration is valid",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long: `Show the configuration cascade and which files were checked.

Lists all configuration files in order of precedence, showing
which exist and which are missing.`,
	RunE: runAmWhere,
}

var (
	configFormat  string
	configSources bool
	setUser       bool
)

func init() {
	// Add flags
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	amShowCmd.Flags().BoolVar(&configSources, "sources", false, "Show the source of every setting")
	amSetCmd.Flags().BoolVar(&setUser, "user", false, "Write the user config instead of the project config")

	// Add subcommands
	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amSetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	if configSources {
		return showSources(cmd.OutOrStdout(), am.Introspect())
	}
	return showConfig(cmd.OutOrStdout(), am.GetViper().AllSettings(), configFormat)
}

// showConfig prints settings in the requested format.
func showConfig(w io.Writer, settings map[string]interface{}, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(settings, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Fprintln(w, string(data))

	case "yaml":
		data, err := yaml.Marshal(settings)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Fprintf(w, "# texsense configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(settings)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Fprintf(w, "# texsense configuration\n%s", string(data))

	default:
		return errors.WithHint(
			errors.NewInvalidRequestError("unsupported format: %s", format),
			"supported formats: toml, json, yaml")
	}
	return nil
}

func showSources(w io.Writer, settings []am.SettingInfo) error {
	data := pterm.TableData{{"Key", "Value", "Source", "From"}}
	for _, s := range settings {
		value := fmt.Sprintf("%v", s.Value)
		// Truncate long values
		if len(value) > 50 {
			value = value[:47] + "..."
		}
		data = append(data, []string{s.Key, value, string(s.Source), s.SourcePath})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "failed to render table")
	}
	fmt.Fprintln(w, table)
	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := strings.ToLower(args[0])

	if !am.IsKey(key) {
		return errors.WithHint(
			errors.NewNotFoundError("configuration key %q not found", key),
			"run 'texsense am show' to list keys")
	}

	fmt.Fprintln(cmd.OutOrStdout(), am.Get(key))
	return nil
}

func runAmSet(cmd *cobra.Command, args []string) error {
	key := strings.ToLower(args[0])

	path := am.FindProjectConfig()
	if setUser {
		path = am.UserConfigPath()
	} else if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return errors.Wrap(err, "failed to get working directory")
		}
		path = cwd + string(os.PathSeparator) + am.ConfigFileName
	}
	if path == "" {
		return errors.New("no home directory for the user config")
	}

	if err := am.SetValue(path, key, am.ParseValue(args[1])); err != nil {
		return err
	}
	am.Reset()

	pterm.Success.Printf("%s = %s (%s)\n", key, args[1], path)
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(w, "  1. [DEFAULT]  Built-in defaults")
	for i, p := range am.ConfigPaths() {
		status := "missing"
		if info, err := os.Stat(p.Path); err == nil && !info.IsDir() {
			status = "found"
		}
		fmt.Fprintf(w, "  %d. [%s] %s (%s)\n", i+2, strings.ToUpper(string(p.Source)), p.Path, status)
	}
	fmt.Fprintf(w, "  -  [ENV]     %s_* environment variables\n", am.EnvPrefix)

	var fromEnv []string
	for _, s := range am.Introspect() {
		if s.Source == am.SourceEnvironment {
			fromEnv = append(fromEnv, fmt.Sprintf("%s (%s)", s.Key, s.SourcePath))
		}
	}
	if len(fromEnv) > 0 {
		fmt.Fprintf(w, "\nSet from environment: %s\n", strings.Join(fromEnv, ", "))
	}
	return nil
}
