package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ytget/vidfetch/internal/logger"
)

const (
	temporaryFileSuffix = ".tmp" // suffix for temp download
	copyBufferSizeBytes = 32 * 1024
	progressInterval    = 100 * time.Millisecond
)

// ErrEmptyDownload is returned when the source produced no bytes.
var ErrEmptyDownload = errors.New("empty download: 0 bytes written")

// Progress holds information about download progress.
type Progress struct {
	TotalSize      int64
	DownloadedSize int64
	Percent        float64
}

// Downloader writes media streams to disk through a temporary file, with
// progress reporting and optional rate limiting.
type Downloader struct {
	ProgressFunc func(Progress)

	rateLimitBps int64
	log          *logger.ComponentLogger
}

// New creates a new downloader. rateLimitBps=0 disables limiting.
func New(progressFunc func(Progress), rateLimitBps int64) *Downloader {
	return &Downloader{
		ProgressFunc: progressFunc,
		rateLimitBps: rateLimitBps,
		log:          logger.WithComponent(logger.ComponentDownloader),
	}
}

// sleepForRate enforces simple rate limit based on bytes written in this step.
func (d *Downloader) sleepForRate(written int64) {
	if d.rateLimitBps <= 0 || written <= 0 {
		return
	}
	dur := time.Duration(int64(time.Second) * written / d.rateLimitBps)
	if dur > 0 {
		time.Sleep(dur)
	}
}

func (d *Downloader) report(downloaded, total int64) {
	if d.ProgressFunc == nil {
		return
	}
	p := Progress{TotalSize: total, DownloadedSize: downloaded}
	if total > 0 {
		p.Percent = float64(downloaded) / float64(total) * 100
	}
	d.ProgressFunc(p)
}

// Save copies src into outputPath and returns the number of bytes written.
// total is the expected size or 0 when unknown. Data goes to outputPath+".tmp"
// first and is renamed into place only after the stream ends cleanly, so a
// failed or cancelled download never leaves a partial file at outputPath.
func (d *Downloader) Save(ctx context.Context, src io.Reader, total int64, outputPath string) (int64, error) {
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create output dir: %w", err)
		}
	}
	tmpPath := outputPath + temporaryFileSuffix
	outFile, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	d.logger().Debug("download started", map[string]interface{}{"path": outputPath, "total": total})

	written, err := d.copy(ctx, outFile, src, total)
	if cerr := outFile.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err == nil && written == 0 {
		err = ErrEmptyDownload
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		d.logger().Warn("download failed", map[string]interface{}{"path": outputPath, "written": written, "err": err})
		return written, err
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		_ = os.Remove(tmpPath)
		return written, err
	}
	d.report(written, total)
	d.logger().Info("download finished", map[string]interface{}{"path": outputPath, "bytes": written})
	return written, nil
}

func (d *Downloader) copy(ctx context.Context, dst io.Writer, src io.Reader, total int64) (int64, error) {
	buf := make([]byte, copyBufferSizeBytes)
	var downloaded int64
	var lastReport time.Time
	for {
		if err := ctx.Err(); err != nil {
			return downloaded, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return downloaded, fmt.Errorf("failed to write chunk: %w", werr)
			}
			downloaded += int64(n)
			if now := time.Now(); now.Sub(lastReport) >= progressInterval {
				lastReport = now
				d.report(downloaded, total)
			}
			d.sleepForRate(int64(n))
		}
		if rerr == io.EOF {
			return downloaded, nil
		}
		if rerr != nil {
			return downloaded, fmt.Errorf("failed to read response body: %w", rerr)
		}
	}
}

func (d *Downloader) logger() *logger.ComponentLogger {
	if d.log == nil {
		d.log = logger.WithComponent(logger.ComponentDownloader)
	}
	return d.log
}
