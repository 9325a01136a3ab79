package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kbukum/resilkit/errors"
)

// HTTPProbe returns a Probe that issues GET Endpoint+path and treats any
// 2xx or 3xx answer as healthy. A nil client uses http.DefaultClient.
func HTTPProbe(client *http.Client, path string) Probe {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, d ServiceDescriptor) error {
		url := strings.TrimRight(d.Endpoint, "/") + path
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return errors.InvalidInput("endpoint", err.Error()).WithDetail("service", d.Name)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return errors.Timeout("probe " + d.Name).WithCause(err)
			}
			return errors.ServiceUnavailable(d.Name).WithCause(err)
		}
		defer resp.Body.Close()
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		if resp.StatusCode >= http.StatusBadRequest {
			return errors.ServiceUnavailable(d.Name).
				WithDetail("status", resp.StatusCode).
				WithCause(fmt.Errorf("probe %s: HTTP %d", url, resp.StatusCode))
		}
		return nil
	}
}
