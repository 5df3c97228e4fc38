// Package compressor gzips retired log files. A file is only deleted once its
// compressed copy has been completely written and closed. Use Compress to block,
// or a Compressor to run compressions in the background and collect reports.
package compressor

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golift.io/httplog/filer"
	"golift.io/httplog/pathtmpl"
)

// SuffixGZ is appended to a fileName to make the new compressed file name.
const SuffixGZ = ".gz"

// Custom errors returned by this package.
var (
	ErrPathTooLong = pathtmpl.ErrPathTooLong
	// ErrDelete means the compressed file is complete but the original could not be removed.
	ErrDelete = errors.New("unable to delete file after compression")
	// ErrExists means fileName.gz is already there. Neither file is changed.
	ErrExists = errors.New("compressed file already exists")
)

// Config controls how files are compressed. The zero value is usable.
type Config struct {
	Level     int         // gzip level. Default (0) is gzip.BestCompression.
	MaxLength int         // Longest allowed compressed file name. Default: pathtmpl.DefaultMaxLength.
	Filer     filer.Filer // Overridable file procedures.
}

// Report contains a report of the compression operation.
// Always check for Error to make sure the New* data is valid.
type Report struct {
	OldFile string
	NewFile string
	OldSize int64
	NewSize int64
	Elapsed time.Duration
	Error   error
}

// Compress gzips a file and returns a report. Blocks until finished.
func Compress(fileName string) (*Report, error) {
	return (&Config{}).Compress(fileName)
}

// Compress gzips a file and returns a report. Blocks until finished.
// The original file is removed only after the compressed file is closed without error.
// An existing fileName.gz is never overwritten; that happens when a template
// reuses names, like %H.log, and the report carries ErrExists.
func (c *Config) Compress(fileName string) (*Report, error) {
	report := &Report{OldFile: fileName, NewFile: fileName + SuffixGZ}
	files, level, maxLen := c.settings()

	if len(report.NewFile) > maxLen {
		report.Error = fmt.Errorf("%w: %s: %d>%d", ErrPathTooLong, report.NewFile, len(report.NewFile), maxLen)
		return report, report.Error
	}

	oldFile, err := files.Stat(report.OldFile)
	if err != nil {
		report.Error = fmt.Errorf("stating old file: %w", err)
		return report, report.Error
	}

	report.OldSize = oldFile.Size()
	start := time.Now()
	report.NewSize, report.Error = compress(files, report.OldFile, report.NewFile, oldFile.Mode(), level)
	report.Elapsed = time.Since(start)

	if report.Error != nil {
		return report, report.Error
	}

	if err := files.Remove(report.OldFile); err != nil {
		report.Error = fmt.Errorf("%w %s: %w", ErrDelete, report.OldFile, err)
		return report, report.Error
	}

	return report, nil
}

func (c *Config) settings() (filer.Filer, int, int) {
	files := c.Filer
	if files == nil {
		files = filer.Default()
	}

	level := c.Level
	if level == 0 || level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.BestCompression
	}

	maxLen := c.MaxLength
	if maxLen <= 0 {
		maxLen = pathtmpl.DefaultMaxLength
	}

	return files, level, maxLen
}

// compress does the "hard" work: Open the old file, open the new file, create a gzip writer,
// copy the old file into the writer, and close everything. The new file is removed on any error.
func compress(files filer.Filer, oldFile, newFile string, mode os.FileMode, level int) (size int64, err error) {
	src, err := files.OpenFile(oldFile, os.O_RDONLY, 0)
	if err != nil {
		return 0, fmt.Errorf("opening source file: %w", err)
	}
	defer src.Close()

	dst, err := files.OpenFile(newFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if errors.Is(err, fs.ErrExist) {
		return 0, fmt.Errorf("%w: %s: %w", ErrExists, newFile, err)
	} else if err != nil {
		return 0, fmt.Errorf("opening gz file: %w", err)
	}

	defer func() {
		if err != nil {
			_ = files.Remove(newFile)
		}
	}()

	gzw, _ := gzip.NewWriterLevel(dst, level) // level is validated by settings().
	gzw.Name = filepath.Base(oldFile)

	if _, err = io.Copy(gzw, src); err != nil {
		_ = gzw.Close()
		_ = dst.Close()

		return 0, fmt.Errorf("%s -> %s: %w", oldFile, newFile, err)
	}

	if err = gzw.Close(); err != nil {
		_ = dst.Close()
		return 0, fmt.Errorf("flushing %s: %w", newFile, err)
	}

	if err = dst.Close(); err != nil {
		return 0, fmt.Errorf("closing %s: %w", newFile, err)
	}

	if info, err := files.Stat(newFile); err == nil {
		size = info.Size()
	}

	return size, nil
}

// Log writes a report to logger. A nil logger uses slog.Default().
func Log(report *Report, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	const kilobyte = 1024

	switch {
	case errors.Is(report.Error, ErrDelete):
		logger.Warn("Compression finished, original kept", "file", report.OldFile, "error", report.Error)
	case report.Error != nil:
		logger.Error("Compression failed", "file", report.OldFile,
			"elapsed", report.Elapsed.Round(time.Millisecond), "error", report.Error)
	default:
		logger.Info("Compression finished", "file", report.NewFile,
			"elapsed", report.Elapsed.Round(time.Millisecond),
			"oldKB", report.OldSize/kilobyte, "newKB", report.NewSize/kilobyte)
	}
}

// Compressor runs compressions in detached go routines.
// Finished reports are delivered on Reports(); read them or they pile up.
type Compressor struct {
	config  *Config
	reports chan *Report
	wait    sync.WaitGroup
	mu      sync.Mutex
	pending int
}

// New returns a background Compressor. config may be nil.
func New(config *Config) *Compressor {
	if config == nil {
		config = &Config{}
	}

	return &Compressor{config: config, reports: make(chan *Report, 1)}
}

// Go starts compressing fileName and returns immediately.
func (c *Compressor) Go(fileName string) {
	c.mu.Lock()
	c.pending++
	c.mu.Unlock()
	c.wait.Add(1)

	go func() {
		defer c.wait.Done()

		report, _ := c.config.Compress(fileName)

		c.mu.Lock()
		c.pending--
		c.mu.Unlock()

		c.reports <- report
	}()
}

// Reports returns the channel finished reports arrive on.
func (c *Compressor) Reports() <-chan *Report {
	return c.reports
}

// Pending returns the number of compressions still running.
func (c *Compressor) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pending
}

// Wait blocks until every started compression has finished, passing each
// report it collects to each. Reports already read from Reports() are not repeated.
func (c *Compressor) Wait(each func(*Report)) {
	done := make(chan struct{})

	go func() {
		c.wait.Wait()
		close(done)
	}()

	for {
		select {
		case report := <-c.reports:
			if each != nil {
				each(report)
			}
		case <-done:
			for {
				select {
				case report := <-c.reports:
					if each != nil {
						each(report)
					}
				default:
					return
				}
			}
		}
	}
}
