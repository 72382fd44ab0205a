package httpstages

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dcshock/speechpipe/pipeline"
)

// Download returns a step that performs an HTTP GET of url and stores the
// body at dest. The pipeline context is used for the request. If dest
// already exists the step does nothing. If client is nil, http.DefaultClient
// is used.
func Download(client *http.Client, url, dest string) pipeline.Step {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) error {
		if _, err := os.Stat(dest); err == nil {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("download: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("download: new request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("download %q: %w", url, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("download %q: status %d", url, resp.StatusCode)
		}

		tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
		if err != nil {
			return fmt.Errorf("download: %w", err)
		}
		defer os.Remove(tmp.Name())
		if _, err := io.Copy(tmp, resp.Body); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("download %q: read body: %w", url, err)
		}
		if err := tmp.Sync(); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("download: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("download: %w", err)
		}
		if err := os.Rename(tmp.Name(), dest); err != nil {
			return fmt.Errorf("download: %w", err)
		}
		return nil
	}
}
