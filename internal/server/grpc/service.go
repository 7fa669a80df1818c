package grpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/kycvault/internal/common"
	"github.com/dmitrijs2005/kycvault/internal/server/assembler"
	"github.com/dmitrijs2005/kycvault/internal/server/models"
	"github.com/dmitrijs2005/kycvault/internal/server/queries"
	"github.com/dmitrijs2005/kycvault/internal/server/reconcile"
	"github.com/dmitrijs2005/kycvault/internal/timex"
)

const ServiceName = "kycvault.v1.VerificationQueryService"

// VerificationQueryServer is implemented by Service, which runs the queries
// in process, and by Client, which forwards them to a remote server.
type VerificationQueryServer interface {
	GetVerification(context.Context, *GetVerificationRequest) (*models.RecordBundle, error)
	ListBySubject(context.Context, *ListBySubjectRequest) (*ListBySubjectResponse, error)
	GetDailySummary(context.Context, *GetDailySummaryRequest) (*models.DailySummary, error)
	GetMonthlyIndex(context.Context, *GetMonthlyIndexRequest) (*models.MonthlyIndex, error)
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
	DailyStats(context.Context, *DailyStatsRequest) (*queries.StatsReport, error)
	Recent(context.Context, *RecentRequest) (*SearchResponse, error)
	Reconcile(context.Context, *ReconcileRequest) (*reconcile.Report, error)
}

// ServiceDesc describes the query service to grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VerificationQueryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetVerification", VerificationQueryServer.GetVerification),
		unary("ListBySubject", VerificationQueryServer.ListBySubject),
		unary("GetDailySummary", VerificationQueryServer.GetDailySummary),
		unary("GetMonthlyIndex", VerificationQueryServer.GetMonthlyIndex),
		unary("Search", VerificationQueryServer.Search),
		unary("DailyStats", VerificationQueryServer.DailyStats),
		unary("Recent", VerificationQueryServer.Recent),
		unary("Reconcile", VerificationQueryServer.Reconcile),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kycvault/v1/query",
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary[Req, Resp any](method string, call func(VerificationQueryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(VerificationQueryServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

// Service answers the query service methods in process. Its errors are the
// sentinels of package common; the server interceptor turns them into
// status codes.
type Service struct {
	engine     *queries.Engine
	assembler  *assembler.Assembler
	reconciler *reconcile.Reconciler
}

func NewService(e *queries.Engine, a *assembler.Assembler, r *reconcile.Reconciler) *Service {
	return &Service{engine: e, assembler: a, reconciler: r}
}

func (s *Service) GetVerification(ctx context.Context, req *GetVerificationRequest) (*models.RecordBundle, error) {
	rec, err := s.engine.GetByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return s.assembler.Assemble(ctx, rec)
}

func (s *Service) ListBySubject(ctx context.Context, req *ListBySubjectRequest) (*ListBySubjectResponse, error) {
	recs, err := s.engine.GetBySubject(ctx, req.Subject, req.Limit)
	if err != nil {
		return nil, err
	}
	return &ListBySubjectResponse{Records: recs}, nil
}

func (s *Service) GetDailySummary(ctx context.Context, req *GetDailySummaryRequest) (*models.DailySummary, error) {
	return s.engine.GetDailySummary(ctx, req.Date)
}

func (s *Service) GetMonthlyIndex(ctx context.Context, req *GetMonthlyIndexRequest) (*models.MonthlyIndex, error) {
	return s.engine.GetMonthlyIndex(ctx, req.Month)
}

func (s *Service) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.Search(ctx, queries.Filter{
		Start:           start,
		End:             end,
		Status:          req.Status,
		SubjectContains: req.SubjectContains,
	})
	if err != nil {
		return nil, err
	}
	return &SearchResponse{Results: res}, nil
}

func (s *Service) DailyStats(ctx context.Context, req *DailyStatsRequest) (*queries.StatsReport, error) {
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	return s.engine.DailyStats(ctx, start, end)
}

func (s *Service) Recent(ctx context.Context, req *RecentRequest) (*SearchResponse, error) {
	res, err := s.engine.Recent(ctx, req.Month, req.Limit)
	if err != nil {
		return nil, err
	}
	return &SearchResponse{Results: res}, nil
}

func (s *Service) Reconcile(ctx context.Context, req *ReconcileRequest) (*reconcile.Report, error) {
	return s.reconciler.Run(ctx, reconcile.Options{Month: req.Month, DryRun: req.DryRun})
}

func parseRange(from, to string) (start, end time.Time, err error) {
	if start, err = timex.ParseDate(from); err != nil {
		return start, end, fmt.Errorf("%w: %w", common.ErrorValidation, err)
	}
	if end, err = timex.ParseDate(to); err != nil {
		return start, end, fmt.Errorf("%w: %w", common.ErrorValidation, err)
	}
	return start, end, nil
}
