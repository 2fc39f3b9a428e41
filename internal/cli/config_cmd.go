package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/soyeahso/advisor/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get or set configuration values",
		Long: "Keys are dotted paths below one of: gateway, agent, conversation, background, store, logging.\n" +
			"Example: advisor config set gateway.controlUi.allowedOrigins '[http://localhost:5173]'",
	}

	cmd.AddCommand(newConfigGetCmd(), newConfigSetCmd(), newConfigUnsetCmd(), newConfigShowCmd(), newConfigPathCmd())
	return cmd
}

// rawConfig parses key and loads the config file as a generic tree.
func rawConfig(key string) (map[string]any, []string, error) {
	path, err := config.ParseConfigPath(key)
	if err != nil {
		return nil, nil, err
	}
	raw, err := config.LoadRaw(paths.Config)
	if err != nil {
		return nil, nil, err
	}
	return raw, path, nil
}

func saveConfig(raw map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(paths.Config), 0o700); err != nil {
		return err
	}
	return config.SaveRaw(paths.Config, raw)
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one value from the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, path, err := rawConfig(args[0])
			if err != nil {
				return err
			}
			if v, ok := config.GetValueAtPath(raw, path); ok {
				return printValue(cmd.OutOrStdout(), v)
			}
			return fmt.Errorf("key %q not found", args[0])
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write one value to the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, path, err := rawConfig(args[0])
			if err != nil {
				return err
			}
			v := parseValue(args[1])
			config.SetValueAtPath(raw, path, v)
			if err := saveConfig(raw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", args[0], v)
			warnInvalid(cmd.ErrOrStderr())
			return nil
		},
	}
}

func newConfigUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Drop one value from the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, path, err := rawConfig(args[0])
			if err != nil {
				return err
			}
			if !config.UnsetValueAtPath(raw, path) {
				return fmt.Errorf("key %q not found", args[0])
			}
			if err := saveConfig(raw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", args[0])
			return nil
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective config after defaults and environment overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			redact(&cfg)
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), paths.Config)
		},
	}
}

// warnInvalid reports problems a set introduced without rejecting it, so
// a multi-step edit can pass through invalid states.
func warnInvalid(w io.Writer) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(w, "warning: %v\n", err)
		return
	}
	for _, issue := range config.Validate(&cfg) {
		fmt.Fprintf(w, "warning: %s: %s\n", issue.Path, issue.Message)
	}
}

const redacted = "********"

func redact(cfg *config.Config) {
	for _, s := range []*string{&cfg.Gateway.Auth.Token, &cfg.Gateway.Auth.Password, &cfg.Agent.ClientSecret} {
		if *s != "" {
			*s = redacted
		}
	}
}

// printValue prints scalars on one line and collections as YAML.
func printValue(w io.Writer, v any) error {
	switch v.(type) {
	case map[string]any, []any:
		out, err := yaml.Marshal(v)
		if err == nil {
			_, err = w.Write(out)
		}
		return err
	}
	_, err := fmt.Fprintln(w, v)
	return err
}

// parseValue reads s as a YAML scalar or flow collection so numbers,
// booleans and lists keep their type in the file. Anything YAML cannot
// read stays a plain string.
func parseValue(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return s
	}
	if _, isMap := v.(map[string]any); isMap {
		return s
	}
	return v
}
