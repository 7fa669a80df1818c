package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dmitrijs2005/kycvault/internal/server/models"
	"github.com/dmitrijs2005/kycvault/internal/server/queries"
	"github.com/dmitrijs2005/kycvault/internal/server/reconcile"
)

// Client calls a remote query service.
type Client struct {
	conn grpc.ClientConnInterface
}

var _ VerificationQueryServer = (*Client)(nil)

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dial opens a plaintext connection to addr.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	return grpc.NewClient(addr, opts...)
}

func invoke[Resp any](ctx context.Context, c *Client, method string, in any) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, fullMethod(method), in, out, grpc.CallContentSubtype(codecName)); err != nil {
		return nil, fromStatus(err)
	}
	return out, nil
}

func (c *Client) GetVerification(ctx context.Context, req *GetVerificationRequest) (*models.RecordBundle, error) {
	return invoke[models.RecordBundle](ctx, c, "GetVerification", req)
}

func (c *Client) ListBySubject(ctx context.Context, req *ListBySubjectRequest) (*ListBySubjectResponse, error) {
	return invoke[ListBySubjectResponse](ctx, c, "ListBySubject", req)
}

func (c *Client) GetDailySummary(ctx context.Context, req *GetDailySummaryRequest) (*models.DailySummary, error) {
	return invoke[models.DailySummary](ctx, c, "GetDailySummary", req)
}

func (c *Client) GetMonthlyIndex(ctx context.Context, req *GetMonthlyIndexRequest) (*models.MonthlyIndex, error) {
	return invoke[models.MonthlyIndex](ctx, c, "GetMonthlyIndex", req)
}

func (c *Client) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	return invoke[SearchResponse](ctx, c, "Search", req)
}

func (c *Client) DailyStats(ctx context.Context, req *DailyStatsRequest) (*queries.StatsReport, error) {
	return invoke[queries.StatsReport](ctx, c, "DailyStats", req)
}

func (c *Client) Recent(ctx context.Context, req *RecentRequest) (*SearchResponse, error) {
	return invoke[SearchResponse](ctx, c, "Recent", req)
}

func (c *Client) Reconcile(ctx context.Context, req *ReconcileRequest) (*reconcile.Report, error) {
	return invoke[reconcile.Report](ctx, c, "Reconcile", req)
}
