// Package retention deletes old rotated log files. Files are found with a glob
// pattern, usually from pathtmpl.Template.Glob(), filtered with a Match func,
// usually pathtmpl.Template.Match, and limited by count, by age, or both.
// A file and its compressed .gz copy count as one file.
package retention

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golift.io/httplog/filer"
)

// GZext is trimmed off found files so a log and its compressed copy are one backup.
const GZext = ".gz"

// ErrNoGlob is returned when a Policy has no Glob.
var ErrNoGlob = errors.New("retention glob pattern is empty")

// Policy defines which rotated logs are kept.
type Policy struct {
	Glob     string                     // REQUIRED: matches every file the template can produce.
	Match    func(fileName string) bool // Rejects glob hits the template did not produce. Set it unless Glob is exact.
	MaxAge   time.Duration              // Delete files not modified within this long. 0 keeps all.
	MaxFiles int                        // Maximum number of retired files kept. 0 keeps all.
	filer.Filer
	Log *slog.Logger
	Now func() time.Time // Clock override for tests.

	running atomic.Bool
	wait    sync.WaitGroup
}

// Enabled returns true if the policy deletes anything.
func (p *Policy) Enabled() bool {
	return p != nil && (p.MaxAge > 0 || p.MaxFiles > 0)
}

// PostRotate satisfies httplog.Config.PostRotate. It prunes in the background.
// If a previous prune is still running, this one is skipped.
func (p *Policy) PostRotate(_, newFile string) {
	if !p.Enabled() || !p.running.CompareAndSwap(false, true) {
		return
	}

	p.wait.Add(1)

	go func() {
		defer p.wait.Done()
		defer p.running.Store(false)

		deleted, err := p.Prune(newFile)
		for _, fileName := range deleted {
			p.log().Info("Deleted old log file", "file", fileName)
		}

		if err != nil {
			p.log().Error("Pruning old log files", "error", err)
		}
	}()
}

// Wait blocks until a background prune finishes.
func (p *Policy) Wait() {
	p.wait.Wait()
}

// Prune deletes files that are older than MaxAge, then deletes the oldest
// files if more than MaxFiles remain. current, and its .gz, are never deleted,
// however the path is spelled.
// Returns the paths that were removed.
func (p *Policy) Prune(current string) ([]string, error) {
	if p.Glob == "" {
		return nil, ErrNoGlob
	}

	logFiles, err := p.getAllLogFiles(current)
	if err != nil {
		return nil, err
	}

	return p.deleteOldLogs(logFiles)
}

func (p *Policy) log() *slog.Logger {
	if p.Log == nil {
		return slog.Default()
	}

	return p.Log
}

func (p *Policy) files() filer.Filer {
	if p.Filer == nil {
		return filer.Default()
	}

	return p.Filer
}

func (p *Policy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}

	return p.Now()
}

// getAllLogFiles finds all the retired log files matching Glob, oldest first.
// Each entry is the uncompressed name, even if only the .gz exists.
func (p *Policy) getAllLogFiles(current string) (*backupFiles, error) {
	var (
		list  = &backupFiles{Files: []string{}, value: []time.Time{}}
		found = make(map[string]int)
	)

	plain, err := p.files().Glob(p.Glob)
	if err != nil {
		return nil, fmt.Errorf("bad glob: %w", err)
	}

	compressed, _ := p.files().Glob(p.Glob + GZext)
	current = filepath.Clean(current)

	for _, fileName := range append(plain, compressed...) {
		name := filepath.Clean(strings.TrimSuffix(fileName, GZext))
		if name == current {
			continue // never the active file.
		}

		if p.Match != nil && !p.Match(name) {
			continue
		}

		info, err := p.files().Stat(fileName)
		if err != nil || info.IsDir() {
			continue
		}

		if idx, ok := found[name]; ok {
			if info.ModTime().After(list.value[idx]) {
				list.value[idx] = info.ModTime()
			}

			continue
		}

		found[name] = len(list.Files)
		list.Files = append(list.Files, name)
		list.value = append(list.value, info.ModTime())
	}

	sort.Sort(list)

	return list, nil
}

// deleteOldLogs deletes any files that are older than MaxAge.
// Then it deletes extra logs if we're over our MaxFiles count.
func (p *Policy) deleteOldLogs(logFiles *backupFiles) ([]string, error) {
	var (
		gone    = make(map[string]struct{})
		deleted []string
		errs    []error
	)

	remove := func(name string) {
		gone[name] = struct{}{}

		for _, fileName := range []string{name, name + GZext} {
			err := p.files().Remove(fileName)
			if err == nil {
				deleted = append(deleted, fileName)
			} else if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("removing file: %w", err))
			}
		}
	}

	if p.MaxAge > 0 {
		now := p.now()

		for idx, when := range logFiles.value {
			if now.Sub(when) >= p.MaxAge {
				remove(logFiles.Files[idx])
			}
		}
	}

	count := len(logFiles.Files) - len(gone)

	if p.MaxFiles > 0 {
		for _, name := range logFiles.Files {
			if count <= p.MaxFiles {
				break
			}

			if _, ok := gone[name]; ok {
				continue // already deleted this one.
			}

			remove(name)
			count--
		}
	}

	return deleted, errors.Join(errs...)
}
