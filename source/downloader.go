package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sanchitsharma77/airweave-sub002/storage"
)

// Downloader stages remote files into the job's temp directory through the
// rate-limited HTTP client. The resulting local path is what downstream
// components require on every file entity.
type Downloader struct {
	client HTTPDoer
	jobID  string
}

// NewDownloader creates a downloader for one sync job.
func NewDownloader(client HTTPDoer, jobID string) *Downloader {
	return &Downloader{client: client, jobID: jobID}
}

// Download fetches url into the job's staging directory and returns the
// local path.
func (d *Downloader) Download(ctx context.Context, url, entityID, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download of %s returned %d", url, resp.StatusCode)
	}

	local := storage.TempFilePath(d.jobID, entityID, name)
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging dir: %w", err)
	}
	f, err := os.Create(local)
	if err != nil {
		return "", fmt.Errorf("failed to create staged file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(local)
		return "", fmt.Errorf("failed to write staged file: %w", err)
	}
	return local, nil
}
