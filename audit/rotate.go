package audit

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

// Config controls the rotating file sinks.
type Config struct {
	// Dir is the log directory. Created if absent.
	Dir string
	// MaxFileSize rotates a file once it exceeds this many bytes.
	// Defaults to 10MB.
	MaxFileSize int64
	// RetentionDays prunes files older than this. Defaults to 30.
	RetentionDays int
}

const (
	defaultMaxFileSize   = 10 * 1024 * 1024
	defaultRetentionDays = 30
)

// newRotatingSink builds one category sink: files named
// <category>_YYYY-MM-DD.log partitioned by UTC day, rotated on size, pruned
// by retention, with rotated-out files compressed in the background.
func newRotatingSink(cfg Config, category string) (io.WriteCloser, error) {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaultRetentionDays
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, err
	}

	pattern := filepath.Join(cfg.Dir, category+"_%Y-%m-%d.log")
	return rotatelogs.New(pattern,
		rotatelogs.WithClock(rotatelogs.UTC),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithRotationSize(cfg.MaxFileSize),
		rotatelogs.WithMaxAge(time.Duration(cfg.RetentionDays)*24*time.Hour),
		rotatelogs.WithHandler(rotatelogs.HandlerFunc(compressRotated)),
	)
}

// compressRotated gzips the file that was just rotated out. Compression is
// best-effort; a failure leaves the uncompressed file in place for the
// retention pruner to collect.
func compressRotated(e rotatelogs.Event) {
	rotated, ok := e.(*rotatelogs.FileRotatedEvent)
	if !ok || rotated.PreviousFile() == "" {
		return
	}
	go func(path string) {
		_ = gzipFile(path)
	}(rotated.PreviousFile())
}

func gzipFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		zw.Close()
		dst.Close()
		os.Remove(path + ".gz")
		return err
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		os.Remove(path + ".gz")
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}
