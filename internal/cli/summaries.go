package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/soyeahso/advisor/internal/store"
	"github.com/spf13/cobra"
)

func newSummariesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summaries",
		Short: "Inspect stored chat summaries",
	}

	cmd.AddCommand(newSummariesListCmd())
	cmd.AddCommand(newSummariesSearchCmd())
	return cmd
}

func newSummariesListCmd() *cobra.Command {
	var (
		limit    int
		customer string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent summaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSummaries()
			if err != nil {
				return err
			}
			defer s.Close()

			var recs []store.SummaryRecord
			if customer != "" {
				recs, err = s.ForCustomer(cmd.Context(), customer, limit)
			} else {
				recs, err = s.List(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			printSummaries(cmd.OutOrStdout(), recs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of summaries")
	cmd.Flags().StringVar(&customer, "customer", "", "only show one customer's summaries")
	return cmd
}

func newSummariesSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over summaries and topics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSummaries()
			if err != nil {
				return err
			}
			defer s.Close()

			recs, err := s.Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			printSummaries(cmd.OutOrStdout(), recs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of results")
	return cmd
}

func openSummaries() (store.SummaryStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Store.Driver == "memory" {
		return nil, fmt.Errorf("store.driver is memory; nothing is persisted between runs")
	}
	return store.OpenSummaries(cfg.Store, log)
}

func printSummaries(w io.Writer, recs []store.SummaryRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No summaries.")
		return
	}
	for _, r := range recs {
		fmt.Fprintf(w, "%s  %-22s %s\n", r.Summary.SessionDate, r.CustomerID, r.Summary.Summary)
		if len(r.Summary.TopicsDiscussed) > 0 {
			fmt.Fprintf(w, "    topics: %s\n", strings.Join(r.Summary.TopicsDiscussed, ", "))
		}
	}
}
