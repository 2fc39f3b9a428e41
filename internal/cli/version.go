package cli

import (
	"encoding/json"
	"fmt"

	"github.com/soyeahso/advisor/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	var short, asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the advisor build stamp",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(version.Current())
			case short:
				_, err := fmt.Fprintln(out, version.Version)
				return err
			}
			_, err := fmt.Fprintln(out, version.Info())
			return err
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print only the version number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the build stamp as JSON")
	cmd.MarkFlagsMutuallyExclusive("short", "json")
	return cmd
}
