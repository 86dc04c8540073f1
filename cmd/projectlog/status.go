package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	perrors "github.com/p-blackswan/projectlog/internal/errors"
	"github.com/p-blackswan/projectlog/internal/health"
)

func newStatusCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the event log and the read model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := (*a).store
			checker := health.NewChecker((*a).logger)
			checker.Register("store", health.StoreCheck(s))
			checker.Register("read_model", health.ReadModelCheck(s))

			results := checker.RunAll(cmd.Context())
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, r := range results {
				fmt.Fprintf(w, "%s\t%s\n", r.Name, r.Status)
			}
			if st, err := s.Stats(cmd.Context()); err == nil {
				fmt.Fprintf(w, "events\t%d\n", st.Events)
				fmt.Fprintf(w, "goals\t%d\n", st.Streams)
				fmt.Fprintf(w, "summaries\t%d\n", st.Summaries)
				fmt.Fprintf(w, "schema_version\t%d\n", st.SchemaVersion)
				fmt.Fprintf(w, "size_bytes\t%d\n", st.SizeBytes)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if health.Overall(results) == health.StatusDown {
				return &perrors.StoreError{Op: "status", Err: fmt.Errorf("a health check is down")}
			}
			return nil
		},
	}
}
