package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/soyeahso/advisor/internal/customer"
	"github.com/soyeahso/advisor/internal/domain"
	"github.com/spf13/cobra"
)

func newPersonasCmd() *cobra.Command {
	var space string

	cmd := &cobra.Command{
		Use:   "personas",
		Short: "List the demo shoppers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list := customer.DefaultPersonas().All()
			if space != "" {
				sp, err := parseSpace(space)
				if err != nil {
					return err
				}
				list = customer.DefaultPersonas().InSpace(sp)
			}
			printPersonas(cmd.OutOrStdout(), list)
			return nil
		},
	}

	cmd.Flags().StringVar(&space, "space", "", "only list personas of one space (consumer, b2b)")
	return cmd
}

func parseSpace(s string) (domain.Space, error) {
	switch sp := domain.Space(strings.ToLower(s)); sp {
	case domain.SpaceConsumer, domain.SpaceB2B:
		return sp, nil
	default:
		return "", fmt.Errorf("unknown space %q (want consumer or b2b)", s)
	}
}

func printPersonas(w io.Writer, list []customer.Persona) {
	for _, p := range list {
		fmt.Fprintf(w, "  %-22s %-9s %s", p.ID, p.Space, p.Label)
		if p.Subtitle != "" {
			fmt.Fprintf(w, " (%s)", p.Subtitle)
		}
		fmt.Fprintln(w)
	}
}
