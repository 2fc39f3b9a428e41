package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/soyeahso/advisor/internal/config"
	"github.com/soyeahso/advisor/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show advisor paths and a configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "advisor %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(w, "Config:  %s\n", paths.Config)
			fmt.Fprintf(w, "Data:    %s\n", paths.Data)
			fmt.Fprintf(w, "Logs:    %s\n", paths.Logs)
			fmt.Fprintln(w)

			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(w, "Config:  not found (using defaults)")
			}
			cfg, err := loadConfig()
			if err != nil {
				fmt.Fprintf(w, "Config:  error loading: %v\n", err)
				return nil
			}
			printStatus(w, cfg)
			return nil
		},
	}
}

func printStatus(w io.Writer, cfg config.Config) {
	fmt.Fprintf(w, "Gateway: port=%d bind=%s auth=%s tls=%v\n",
		cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.Auth.Mode, cfg.Gateway.TLS.Enabled)

	if cfg.Agent.IsLive() {
		fmt.Fprintf(w, "Agent:   live agent=%s token=%s (%s)\n",
			cfg.Agent.AgentID, cfg.Agent.TokenMode, cfg.TokenProxyURL())
	} else {
		fmt.Fprintf(w, "Agent:   mock latency=%dms\n", cfg.Agent.MockLatencyMs)
	}

	fmt.Fprintf(w, "Chat:    space=%s welcomeDelay=%dms\n",
		cfg.Conversation.DefaultSpace, cfg.Conversation.WelcomeDelayMs)

	if cfg.Store.Driver == "sqlite" {
		fmt.Fprintf(w, "Store:   sqlite %s\n", cfg.Store.Path)
	} else {
		fmt.Fprintf(w, "Store:   %s\n", cfg.Store.Driver)
	}

	if cfg.Background.AssetBaseURL != "" {
		fmt.Fprintf(w, "Scenes:  assets=%s\n", cfg.Background.AssetBaseURL)
	} else {
		fmt.Fprintln(w, "Scenes:  gradients only")
	}

	issues := config.Validate(&cfg)
	if len(issues) > 0 {
		fmt.Fprintf(w, "\nValidation issues (%d):\n", len(issues))
		for _, issue := range issues {
			fmt.Fprintf(w, "  - %s: %s\n", issue.Path, issue.Message)
		}
	}
}
