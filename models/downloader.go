package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// ProgressFunc reports download progress as a percentage, 0..100.
type ProgressFunc func(progress float64)

const progressBoundary = 1 << 20 // 1 MiB, per §4.5 download_model

// DownloadFile streams url to destPath via a temporary file, calling
// onProgress each time another 1 MiB boundary has been crossed, then
// atomically renames into place.
func DownloadFile(ctx context.Context, url, destPath string, expectedSize int64, onProgress ProgressFunc) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmpPath := destPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("create request: %w", err)
	}

	client := &http.Client{Timeout: 0}
	resp, err := client.Do(req)
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		os.Remove(tmpPath)
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	totalSize := resp.ContentLength
	if totalSize <= 0 && expectedSize > 0 {
		totalSize = expectedSize
	}

	reader := &progressReader{reader: resp.Body, totalSize: totalSize, onProgress: onProgress}

	if _, err := io.Copy(out, reader); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write file: %w", err)
	}
	out.Close()

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// progressReader wraps an io.Reader, invoking onProgress each time another
// 1 MiB of data has been read.
type progressReader struct {
	reader     io.Reader
	totalSize  int64
	downloaded int64
	lastReportedBoundary int64
	onProgress ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.downloaded += int64(n)
		boundary := pr.downloaded / progressBoundary
		if boundary > pr.lastReportedBoundary {
			pr.lastReportedBoundary = boundary
			if pr.onProgress != nil && pr.totalSize > 0 {
				pr.onProgress(float64(pr.downloaded) / float64(pr.totalSize) * 100)
			}
		}
	}
	if err == io.EOF && pr.onProgress != nil && pr.totalSize > 0 {
		pr.onProgress(float64(pr.downloaded) / float64(pr.totalSize) * 100)
	}
	return n, err
}
