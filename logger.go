package httplog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golift.io/httplog/compressor"
	"golift.io/httplog/filer"
)

// These are the default directory and log file POSIX modes.
const (
	FileMode os.FileMode = 0o644
	DirMode  os.FileMode = 0o755
)

// DefaultBufSize is the default write buffer size and the default
// maximum line length. It is also the smallest allowed write buffer.
const DefaultBufSize = 8192

// Custom errors returned by this package.
var (
	ErrConfig         = errors.New("invalid configuration")
	ErrOpen           = errors.New("unable to open logfile")
	ErrWrite          = errors.New("unable to append to logfile")
	ErrRead           = errors.New("unable to read input")
	ErrSymlink        = errors.New("unable to create symlink")
	ErrNilInterface   = errors.New("nil Rotatorr interface provided")
	ErrBufferTooSmall = errors.New("buffer size too small")
)

// Config is the data needed to create a new Logger.
type Config struct {
	Rotatorr   Rotatorr         // REQUIRED: Names the file each line goes into. Usually a *pathtmpl.Template.
	BufSize    int              // Write buffer size. Default and minimum: DefaultBufSize.
	MaxLine    int              // Longest chunk read from input at once, including the new line. Default: DefaultBufSize.
	Symlink    string           // Optional: kept pointing at the current file.
	Compress   bool             // Gzip each file after it is retired.
	FileMode   os.FileMode      // POSIX mode for new files.
	DirMode    os.FileMode      // POSIX mode for new folders.
	Signals    <-chan os.Signal // Flush and stop requests. See Notify.
	Compressor *compressor.Config
	Filer      filer.Filer
	Log        *slog.Logger
	// PostRotate is called after a new file is opened and the symlink is updated.
	// oldFile is empty the first time. This blocks the input, keep it snappy.
	PostRotate func(oldFile, newFile string)
	Now        func() time.Time // Clock override for tests.
}

// Logger is the rotation engine. Obtain one with New and start it with Run.
// All of its state is owned by the go routine calling Run.
type Logger struct {
	config   *Config
	log      *slog.Logger
	files    filer.Filer
	comp     *compressor.Compressor
	previous string   // name of the file last opened.
	file     *logFile // the active file, nil until the first line.
}

// New checks your configuration and returns a Logger. No file is opened until
// the first line is read.
func New(config *Config) (*Logger, error) {
	if config.Rotatorr == nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, ErrNilInterface)
	}

	if err := config.setDefaults(); err != nil {
		return nil, err
	}

	logger := &Logger{config: config, log: config.Log, files: config.Filer}
	if config.Compress {
		if config.Compressor == nil {
			config.Compressor = &compressor.Config{}
		}

		if config.Compressor.Filer == nil {
			config.Compressor.Filer = config.Filer
		}

		logger.comp = compressor.New(config.Compressor)
	}

	return logger, nil
}

// setDefaults does exactly what it says. Sets missing values.
func (c *Config) setDefaults() error {
	switch {
	case c.BufSize == 0:
		c.BufSize = DefaultBufSize
	case c.BufSize < DefaultBufSize:
		return fmt.Errorf("%w: %w: %d<%d", ErrConfig, ErrBufferTooSmall, c.BufSize, DefaultBufSize)
	}

	if c.MaxLine <= 0 {
		c.MaxLine = DefaultBufSize
	}

	if c.FileMode == 0 {
		c.FileMode = FileMode
	}

	if c.DirMode == 0 {
		c.DirMode = DirMode
	}

	if c.Filer == nil {
		c.Filer = filer.Default()
	}

	if c.Log == nil {
		c.Log = slog.Default()
	}

	if c.Now == nil {
		c.Now = time.Now
	}

	return nil
}

// Run reads input until it ends, writing every line to the file the Rotatorr names.
// It returns nil at the end of input, or when a stop signal is received.
// Any error opening or writing a file is returned after the open file is closed.
// Run always waits for running compressions to finish before returning.
func (l *Logger) Run(ctx context.Context, input io.Reader) error {
	var (
		lines   = make(chan []byte)
		readErr = make(chan error, 1)
		done    = make(chan struct{})
	)

	defer close(done)

	go readLines(bufio.NewReaderSize(input, l.config.MaxLine), lines, readErr, done)

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return l.finish(<-readErr)
			}

			if err := l.write(line); err != nil {
				return l.fail(err)
			}
		case sig := <-l.config.Signals:
			if stop, err := l.handleSignal(sig); err != nil {
				return l.fail(err)
			} else if stop {
				return l.finish(nil)
			}
		case report := <-l.reports():
			compressor.Log(report, l.log)
		case <-ctx.Done():
			return l.fail(ctx.Err())
		}
	}
}

// readLines sends chunks of input to lines. Each chunk ends with a new line
// or fills the reader's buffer. lines is closed when input ends.
func readLines(input *bufio.Reader, lines chan<- []byte, readErr chan<- error, done <-chan struct{}) {
	defer close(lines)

	for {
		chunk, err := input.ReadSlice('\n')
		if len(chunk) > 0 {
			select {
			case lines <- append([]byte(nil), chunk...):
			case <-done:
				readErr <- nil
				return
			}
		}

		switch {
		case err == nil, errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			readErr <- nil
		default:
			readErr <- fmt.Errorf("%w: %w", ErrRead, err)
		}

		return
	}
}

// reports returns the compression report channel, or nil when compression is off.
func (l *Logger) reports() <-chan *compressor.Report {
	if l.comp == nil {
		return nil
	}

	return l.comp.Reports()
}

// write sends one chunk of input to the right file, rotating first if the name changed.
func (l *Logger) write(line []byte) error {
	fileName, err := l.config.Rotatorr.Filename(l.config.Now())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpen, err)
	}

	if l.file == nil || fileName != l.previous {
		if err := l.rotate(fileName); err != nil {
			return err
		}
	}

	return l.file.write(line)
}

// rotate closes the active file, hands it to the compressor, opens fileName,
// and updates the symlink. The line that triggered it is written afterward.
func (l *Logger) rotate(fileName string) error {
	oldFile := ""

	if l.file != nil {
		oldFile = l.file.path

		err := l.file.close()
		l.file = nil

		if err != nil {
			return err
		}

		if l.comp != nil {
			l.comp.Go(oldFile)
		}
	}

	file, err := openLogFile(l.files, fileName, l.config.BufSize, l.config.FileMode, l.config.DirMode)
	if err != nil {
		return err
	}

	l.file = file
	l.previous = fileName
	l.log.Debug("Opened log file", "file", fileName, "retired", oldFile)

	if l.config.Symlink != "" {
		if err := l.link(fileName); err != nil {
			l.log.Error("Symlink not updated", "error", err)
		}
	}

	if l.config.PostRotate != nil {
		l.config.PostRotate(oldFile, fileName)
	}

	return nil
}

// link points the configured symlink at target. The link is replaced with a
// rename so readers never see it missing.
func (l *Logger) link(target string) error {
	link := l.config.Symlink

	if !filepath.IsAbs(target) {
		if abs, err := filepath.Abs(target); err == nil {
			target = abs
		}
	}

	if err := filer.MkdirParent(l.files, link, l.config.DirMode); err != nil {
		return fmt.Errorf("%w %s: making directories: %w", ErrSymlink, link, err)
	}

	tmp := fmt.Sprintf("%s.%d.tmp", link, os.Getpid())
	_ = l.files.Remove(tmp)

	if err := l.files.Symlink(target, tmp); err != nil {
		return fmt.Errorf("%w %s: %w", ErrSymlink, link, err)
	}

	if err := l.files.Rename(tmp, link); err != nil {
		_ = l.files.Remove(tmp)
		return fmt.Errorf("%w %s: %w", ErrSymlink, link, err)
	}

	return nil
}

// finish runs at the end of input or on a stop signal.
// It closes the file and waits for compressions.
func (l *Logger) finish(readErr error) error {
	err := l.close()
	l.waitCompressions()

	return errors.Join(readErr, err)
}

// fail closes the active file and returns the error that caused it.
func (l *Logger) fail(err error) error {
	if cerr := l.close(); cerr != nil {
		l.log.Error("Closing log file", "error", cerr)
	}

	l.waitCompressions()

	return err
}

// waitCompressions blocks until retired files are compressed, logging each report.
func (l *Logger) waitCompressions() {
	if l.comp != nil {
		l.comp.Wait(func(report *compressor.Report) { compressor.Log(report, l.log) })
	}
}

// close flushes and closes the active file, if there is one.
func (l *Logger) close() error {
	if l.file == nil {
		return nil
	}

	err := l.file.close()
	l.file = nil

	return err
}

// Flush writes any buffered data to the active file. Only call it from the
// go routine running Run, or after Run returns. Send a FlushSignal to a running Logger.
func (l *Logger) Flush() error {
	if l.file == nil {
		return nil
	}

	return l.file.flush()
}

// Current returns the name of the file last opened.
func (l *Logger) Current() string {
	return l.previous
}
