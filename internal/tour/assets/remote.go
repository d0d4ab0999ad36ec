package assets

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"tour-engine/internal/tour/models"
)

// ============================================================
// Remote assets
// ============================================================

// Remote downloads assets referenced by absolute URL.
type Remote struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewRemote(timeout time.Duration, retries int, logger *zap.Logger) *Remote {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "image/*, model/*, application/octet-stream")

	return &Remote{
		httpClient: client,
		logger:     logger,
	}
}

// IsRemote reports whether ref is an absolute http(s) URL.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func (r *Remote) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := r.httpClient.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		r.logger.Warn("remote asset request failed", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("fetch %s: %w", url, models.ErrNotFound)
	case resp.IsError():
		r.logger.Warn("remote asset returned error",
			zap.String("url", url),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode())
	}
	return resp.Body(), nil
}
