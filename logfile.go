package httplog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"

	"golift.io/httplog/filer"
)

// logFile is the active output file and its write buffer.
// The buffer is created with the file and dropped with it.
type logFile struct {
	path string
	file *os.File
	buf  *bufio.Writer
	line bool // flush after every write that ends a line.
}

// openLogFile creates any missing parent directories and opens path for appending.
// Buffers no larger than DefaultBufSize are flushed at every new line.
// Larger buffers are only flushed when full, on flush() or on close().
func openLogFile(files filer.Filer, path string, bufSize int, fileMode, dirMode os.FileMode) (*logFile, error) {
	if err := filer.MkdirParent(files, path, dirMode); err != nil {
		return nil, fmt.Errorf("%w %s: making directories: %w", ErrOpen, path, err)
	}

	file, err := files.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, fileMode)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrOpen, path, err)
	}

	return &logFile{
		path: path,
		file: file,
		buf:  bufio.NewWriterSize(file, bufSize),
		line: bufSize <= DefaultBufSize,
	}, nil
}

func (f *logFile) write(p []byte) error {
	if _, err := f.buf.Write(p); err != nil {
		return fmt.Errorf("%w %s: %w", ErrWrite, f.path, err)
	}

	if f.line && bytes.IndexByte(p, '\n') != -1 {
		return f.flush()
	}

	return nil
}

// flush pushes buffered data to the file without closing it.
func (f *logFile) flush() error {
	if err := f.buf.Flush(); err != nil {
		return fmt.Errorf("%w %s: flushing: %w", ErrWrite, f.path, err)
	}

	return nil
}

// close flushes and closes the file. The logFile is unusable afterward.
func (f *logFile) close() error {
	err := errors.Join(f.buf.Flush(), f.file.Close())
	f.buf = nil
	f.file = nil

	if err != nil {
		return fmt.Errorf("%w %s: closing: %w", ErrWrite, f.path, err)
	}

	return nil
}
