package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/kycvault/internal/common"
)

// maxErrorBody caps how much of a failed response is quoted in the error.
const maxErrorBody = 512

// DownloadPresigned fetches a presigned GET URL. An expired or revoked URL
// yields common.ErrorForbidden and a missing object common.ErrorNotFound.
func DownloadPresigned(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusForbidden:
		return nil, fmt.Errorf("download: %w", common.ErrorForbidden)
	case http.StatusNotFound:
		return nil, fmt.Errorf("download: %w", common.ErrorNotFound)
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("download failed: %s; body: %s", resp.Status, string(b))
	}
}
