package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/noah-isme/linkage-api/internal/models"
	"github.com/noah-isme/linkage-api/internal/service"
)

var errOrphansFound = errors.New("orphaned references found")

type auditReport struct {
	Orphans   []models.OrphanReport `json:"orphans"`
	Count     int                   `json:"count"`
	Truncated bool                  `json:"truncated"`
}

func newAuditCmd(opts *rootOptions) *cobra.Command {
	var (
		output string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report records whose foreign keys resolve to nothing",
		Long:  "Scan every foreign key of the identity graph and list dangling references. Exits non-zero when any are found.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("unknown output %q, want text or json", output)
			}
			if limit < 0 {
				return fmt.Errorf("limit must not be negative")
			}
			return opts.withSession(cmd, func(ctx context.Context, s *session) error {
				checker := service.NewConsistencyService(s.store, nil, s.logger, service.ConsistencyConfig{
					BatchSize:   s.cfg.Audit.BatchSize,
					Concurrency: s.cfg.Audit.Concurrency,
				})
				report, err := collectOrphans(ctx, checker, limit)
				if err != nil {
					return err
				}
				if output == "json" {
					err = writeJSON(cmd.OutOrStdout(), report)
				} else {
					err = writeOrphanTable(cmd, report)
				}
				if err != nil {
					return err
				}
				if report.Count > 0 {
					return errOrphansFound
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many orphans (0 reports all)")
	return cmd
}

func collectOrphans(ctx context.Context, checker *service.ConsistencyService, limit int) (*auditReport, error) {
	report := &auditReport{Orphans: []models.OrphanReport{}}
	for orphan, err := range checker.Orphans(ctx) {
		if err != nil {
			return nil, err
		}
		if limit > 0 && len(report.Orphans) == limit {
			report.Truncated = true
			break
		}
		report.Orphans = append(report.Orphans, orphan)
	}
	report.Count = len(report.Orphans)
	return report, nil
}

func writeOrphanTable(cmd *cobra.Command, report *auditReport) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTITY TYPE\tENTITY ID\tFIELD\tVALUE")
	for _, o := range report.Orphans {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.EntityType, o.EntityID, o.DanglingField, o.DanglingValue)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	suffix := ""
	if report.Truncated {
		suffix = " (truncated)"
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%d orphaned references%s\n", report.Count, suffix)
	return err
}
