package calibration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DefaultFileName is the calibration file looked up in the calibration directory.
const DefaultFileName = "fancontrol.csv"

var ErrNotFound = errors.New("calibration: file not found")

// Find returns the path of name inside dir if it exists and is a regular file.
func Find(dir, name string) (string, error) {
	if name == "" {
		name = DefaultFileName
	}
	p := filepath.Join(dir, name)
	fi, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return "", fmt.Errorf("calibration: stat %s: %w", p, err)
	}
	if !fi.Mode().IsRegular() {
		return "", fmt.Errorf("calibration: %s is not a regular file", p)
	}
	return p, nil
}

// Load reads a calibration Set from the CSV file at path.
func Load(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Set{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Set{}, fmt.Errorf("calibration: open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Save writes set to path as CSV.
//
// The file is written to a temp file in the same directory and renamed into
// place so a power loss never leaves a half-written calibration.
func Save(path string, set Set) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("calibration: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()
	if err := Write(tmp, set); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("calibration: sync: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("calibration: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("calibration: close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("calibration: rename: %w", err)
	}
	return nil
}

// FileInfo describes one entry of a calibration directory listing.
type FileInfo struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Dir     bool      `json:"dir,omitempty"`
}

// List walks dir recursively and returns its entries sorted by path.
// Paths are relative to dir.
func List(dir string) ([]FileInfo, error) {
	var out []FileInfo
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == dir {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			rel = p
		}
		out = append(out, FileInfo{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Dir:     d.IsDir(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("calibration: list %s: %w", dir, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Source reports where a Set came from.
type Source string

const (
	SourceFile     Source = "file"
	SourceDefault  Source = "default"
	SourceFallback Source = "default-fallback"
)

// Result is the outcome of Provide.
type Result struct {
	Set    Set
	Source Source
	Path   string
	// Created is true when the default set was written to Path.
	Created bool
	// Warning carries a non-fatal problem (e.g. file missing, write failed).
	Warning error
}

// Provide resolves the calibration for a controller: the file in dir when it
// exists, otherwise the built-in defaults. With createDefault the defaults are
// written to the missing file once; a failed write is reported in Warning and
// not retried.
func Provide(dir, name string, createDefault bool) (Result, error) {
	if name == "" {
		name = DefaultFileName
	}
	path := filepath.Join(dir, name)

	found, err := Find(dir, name)
	switch {
	case err == nil:
		set, err := Load(found)
		if err != nil {
			return Result{}, err
		}
		return Result{Set: set, Source: SourceFile, Path: found}, nil
	case !errors.Is(err, ErrNotFound):
		return Result{Set: Default(), Source: SourceFallback, Path: path, Warning: err}, nil
	}

	res := Result{Set: Default(), Source: SourceDefault, Path: path, Warning: err}
	if !createDefault {
		return res, nil
	}
	if werr := Save(path, res.Set); werr != nil {
		res.Warning = errors.Join(err, werr)
		return res, nil
	}
	res.Created = true
	return res, nil
}
