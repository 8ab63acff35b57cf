package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/shramba/internal/expiry"
	"github.com/erazemk/shramba/internal/model"
)

func newRemindCmd(root *rootOptions) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Run a single reminder pass and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			today := expiry.Today(time.Now())
			if date != "" {
				d, err := model.ParseDate(date)
				if err != nil {
					return err
				}
				today = d
			}

			a, err := newApp(cmd.Context(), root.cfg, root.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.scheduler.RunOnce(cmd.Context(), today)
			if err != nil {
				return fmt.Errorf("reminder pass: %w", err)
			}
			report.Items = nil

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "evaluate as of this date (YYYY-MM-DD, default: today)")
	return cmd
}
