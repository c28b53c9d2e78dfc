package sensors

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/config"
	"github.com/tidwall/gjson"
)

type remoteDriver struct {
	url     string
	metrics []config.RemoteMetricConfig
	client  *http.Client
}

// NewRemoteDriver creates a driver that reads its metrics from a JSON endpoint
func NewRemoteDriver(url string, metrics []config.RemoteMetricConfig, timeout time.Duration) *remoteDriver {
	return &remoteDriver{
		url:     url,
		metrics: append([]config.RemoteMetricConfig(nil), metrics...),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// ReadData fetches the endpoint once and extracts every configured JSON path. A missing or
// non-numeric path yields a nil value for that metric.
func (r *remoteDriver) ReadData(ctx context.Context) (map[common.MetricType]*float64, error) {
	body, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[common.MetricType]*float64, len(r.metrics))
	for _, metric := range r.metrics {
		result[common.MetricType(metric.Name)] = extractNumber(body, metric.Path)
	}

	return result, nil
}

func (r *remoteDriver) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errStatusNotOK(resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func extractNumber(body []byte, path string) *float64 {
	result := gjson.GetBytes(body, path)
	switch result.Type {
	case gjson.Number:
		return common.Float(result.Float())
	case gjson.String:
		v, err := strconv.ParseFloat(strings.TrimSpace(result.Str), 64)
		if err != nil {
			log.Debug("remote value is not numeric", "path", path, "value", result.Str)
			return nil
		}
		return &v
	default:
		if !result.Exists() {
			log.Debug("JSON path not found in response", "path", path)
		}
		return nil
	}
}

// Close releases idle connections
func (r *remoteDriver) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

// IsInterfaceNil returns true if the value under the interface is nil
func (r *remoteDriver) IsInterfaceNil() bool {
	return r == nil
}
