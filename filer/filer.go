// Package filer is an interface used by the httplog packages for every
// file-system side effect. Override it to gain more control of operations,
// or to inject failures in tests.
package filer

//go:generate mockgen -destination=../mocks/filer.go -package=mocks golift.io/httplog/filer Filer

import (
	"os"
	"path/filepath"
)

// Filer is used to override file-managing procedures.
type Filer interface {
	Remove(fileName string) error
	Rename(fileName, newPath string) error
	MkdirAll(path string, perm os.FileMode) error
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
	Stat(fileName string) (os.FileInfo, error)
	Symlink(target, link string) error
	Glob(pattern string) ([]string, error)
}

// Default returns a Filer interface that works, using default procedures.
func Default() Filer {
	return &File{}
}

// File can be embedded in a custom type to provide the missing methods for the Filer interface.
type File struct{}

// Remove provides os.Remove.
func (f *File) Remove(fileName string) error {
	return os.Remove(fileName)
}

// Rename provides os.Rename.
func (f *File) Rename(fileName, newPath string) error {
	return os.Rename(fileName, newPath)
}

// MkdirAll provides os.MkdirAll.
func (f *File) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// OpenFile provides os.OpenFile.
func (f *File) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm)
}

// Stat provides os.Stat.
func (f *File) Stat(fileName string) (os.FileInfo, error) {
	return os.Stat(fileName)
}

// Symlink provides os.Symlink.
func (f *File) Symlink(target, link string) error {
	return os.Symlink(target, link)
}

// Glob provides filepath.Glob.
func (f *File) Glob(pattern string) ([]string, error) {
	return filepath.Glob(pattern)
}

// MkdirParent creates the directory that will hold fileName, if it has one.
func MkdirParent(f Filer, fileName string, perm os.FileMode) error {
	dir := filepath.Dir(fileName)
	if dir == "." || dir == "" {
		return nil
	}

	return f.MkdirAll(dir, perm)
}
