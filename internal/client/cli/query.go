package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/kycvault/internal/server/models"
	"github.com/dmitrijs2005/kycvault/internal/server/queries"

	gs "github.com/dmitrijs2005/kycvault/internal/server/grpc"
)

func (a *App) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <verification-id>",
		Short: "Show a record with presigned download URLs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := a.Queries(cmd.Context())
			if err != nil {
				return err
			}
			bundle, err := q.GetVerification(cmd.Context(), &gs.GetVerificationRequest{ID: args[0]})
			if err != nil {
				return err
			}
			return a.printJSON(bundle)
		},
	}
}

func (a *App) newSubjectCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "subject <email>",
		Short: "List the newest records of a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := a.Queries(cmd.Context())
			if err != nil {
				return err
			}
			res, err := q.ListBySubject(cmd.Context(), &gs.ListBySubjectRequest{Subject: args[0], Limit: limit})
			if err != nil {
				return err
			}
			return a.printJSON(res.Records)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", queries.DefaultSubjectLimit, "maximum number of records")
	return cmd
}

func (a *App) newDailyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daily <yyyy-mm-dd>",
		Short: "Show the summary of one day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := a.Queries(cmd.Context())
			if err != nil {
				return err
			}
			res, err := q.GetDailySummary(cmd.Context(), &gs.GetDailySummaryRequest{Date: args[0]})
			if err != nil {
				return err
			}
			return a.printJSON(res)
		},
	}
}

func (a *App) newMonthlyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monthly <yyyy-mm>",
		Short: "Show the index of one month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := a.Queries(cmd.Context())
			if err != nil {
				return err
			}
			res, err := q.GetMonthlyIndex(cmd.Context(), &gs.GetMonthlyIndexRequest{Month: args[0]})
			if err != nil {
				return err
			}
			return a.printJSON(res)
		},
	}
}

func (a *App) newSearchCmd() *cobra.Command {
	var req gs.SearchRequest
	var status string
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the monthly indexes by date range, status and e-mail",
		Example: `  kycvault search --from 2024-06-01 --to 2024-06-30 --status fail
  kycvault search --from 2024-01-01 --to 2024-12-31 --email example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := a.Queries(cmd.Context())
			if err != nil {
				return err
			}
			req.Status = models.Status(status)
			res, err := q.Search(cmd.Context(), &req)
			if err != nil {
				return err
			}
			return a.printJSON(res.Results)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.StartDate, "from", "", "first day, yyyy-mm-dd")
	f.StringVar(&req.EndDate, "to", "", "last day, yyyy-mm-dd")
	f.StringVar(&status, "status", "", "pass or fail")
	f.StringVar(&req.SubjectContains, "email", "", "case-insensitive e-mail substring")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (a *App) newStatsCmd() *cobra.Command {
	var req gs.DailyStatsRequest
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Per-day counts and totals for a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := a.Queries(cmd.Context())
			if err != nil {
				return err
			}
			res, err := q.DailyStats(cmd.Context(), &req)
			if err != nil {
				return err
			}
			return a.printJSON(res)
		},
	}
	cmd.Flags().StringVar(&req.StartDate, "from", "", "first day, yyyy-mm-dd")
	cmd.Flags().StringVar(&req.EndDate, "to", "", "last day, yyyy-mm-dd")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (a *App) newRecentCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent [yyyy-mm]",
		Short: "Newest verifications of a month (current month by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			month := time.Now().UTC().Format("2006-01")
			if len(args) == 1 {
				month = args[0]
			}
			q, err := a.Queries(cmd.Context())
			if err != nil {
				return err
			}
			res, err := q.Recent(cmd.Context(), &gs.RecentRequest{Month: month, Limit: limit})
			if err != nil {
				return err
			}
			return a.printJSON(res.Results)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of entries")
	return cmd
}

func (a *App) newReconcileCmd() *cobra.Command {
	var req gs.ReconcileRequest
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Rebuild drifted aggregates from the stored records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := a.Queries(cmd.Context())
			if err != nil {
				return err
			}
			res, err := q.Reconcile(cmd.Context(), &req)
			if err != nil {
				return err
			}
			return a.printJSON(res)
		},
	}
	cmd.Flags().StringVar(&req.Month, "month", "", "limit to one month, yyyy-mm")
	cmd.Flags().BoolVar(&req.DryRun, "dry-run", false, "report drift without rewriting")
	return cmd
}
