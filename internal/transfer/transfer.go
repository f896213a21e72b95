package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/vertextoedge/release-sync/internal/domain"
	"github.com/vertextoedge/release-sync/internal/port"
)

// retryLimit bounds the number of download attempts. Each retry resumes from
// the byte offset already flushed to disk, never from zero.
const retryLimit = 5

// copyBufferSize is the chunk size used when streaming the response body
const copyBufferSize = 32 * 1024

// AlreadyFetched reports whether an artifact with the given file name has
// already been retrieved into saveDir. Bare file existence is the single
// durable marker of "already fetched"; no hash or size verification is done,
// so a truncated file left by a crashed transfer counts as complete.
func AlreadyFetched(saveDir, fileName string) bool {
	_, err := os.Stat(filepath.Join(saveDir, fileName))
	return err == nil
}

// Downloader performs resumable artifact downloads and announces completed
// transfers through the notifier.
type Downloader struct {
	client   *http.Client
	notifier port.Notifier
	logger   *zap.Logger
}

// NewDownloader creates a new Downloader
func NewDownloader(client *http.Client, notifier port.Notifier, logger *zap.Logger) *Downloader {
	return &Downloader{
		client:   client,
		notifier: notifier,
		logger:   logger,
	}
}

// Download streams the artifact to destPath. A mid-stream read error restarts
// the request with a Range header at the already-written offset, at most
// retryLimit attempts in total. On success the file is flushed to durable
// storage and a completion message is sent; send failures are logged, never
// propagated. A failed transfer leaves the partial file in place.
func (d *Downloader) Download(ctx context.Context, artifact *domain.Artifact, destPath string) (int64, error) {
	file, err := os.Create(destPath)
	if err != nil {
		return 0, &domain.TransferError{URL: artifact.DownloadURL, Err: err}
	}
	defer file.Close()

	var saved int64
	attempt := 1

	d.logger.Debug("starting download",
		zap.String("url", artifact.DownloadURL),
		zap.String("dest", destPath))

	for {
		n, streamErr := d.streamFrom(ctx, artifact.DownloadURL, file, saved)
		saved += n
		if streamErr == nil {
			break
		}

		// Request and local write failures come back already classified as
		// transfer errors; they are never retried.
		if domain.IsTransfer(streamErr) {
			return saved, streamErr
		}

		if attempt >= retryLimit {
			return saved, &domain.TransferError{
				URL:      artifact.DownloadURL,
				Attempts: attempt,
				Err:      streamErr,
			}
		}

		d.logger.Error("download interrupted, resuming",
			zap.String("url", artifact.DownloadURL),
			zap.Int64("saved_bytes", saved),
			zap.Int("attempt", attempt),
			zap.Error(streamErr))
		attempt++
	}

	if err := file.Sync(); err != nil {
		return saved, &domain.TransferError{URL: artifact.DownloadURL, Err: err}
	}

	d.logger.Debug("download complete",
		zap.String("dest", destPath),
		zap.Int64("bytes_written", saved))

	if err := d.notifier.Send(ctx, "download complete: "+artifact.String()); err != nil {
		d.logger.Error("failed to send completion notification", zap.Error(err))
	}

	return saved, nil
}

// streamFrom issues one ranged GET starting at offset and appends the body to
// file chunk by chunk, returning the bytes written by this attempt. Bytes are
// counted as they hit the file so partial progress survives a mid-stream
// error. Request construction and write failures abort the transfer outright;
// only body read errors are retryable.
func (d *Downloader) streamFrom(ctx context.Context, url string, file *os.File, offset int64) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &domain.TransferError{URL: url, Err: err}
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))

	res, err := d.client.Do(req)
	if err != nil {
		return 0, &domain.TransferError{URL: url, Err: err}
	}
	defer res.Body.Close()

	var written int64
	buf := make([]byte, copyBufferSize)
	for {
		n, readErr := res.Body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				return written, &domain.TransferError{URL: url, Err: writeErr}
			}
			written += int64(n)
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
