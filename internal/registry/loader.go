// Package registry discovers model directories on local storage and records
// them in the store so the manager can locate them by id.
package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"modelhost/internal/common/fsutil"
	"modelhost/internal/modelrt"
	"modelhost/internal/store"
)

// Entry is a model directory found by Scan.
type Entry struct {
	ID        string
	Dir       string
	Quantized bool
}

// Registrar records model directories; implemented by *store.DB.
type Registrar interface {
	RegisterModel(ctx context.Context, m store.Model, localPath string) error
}

// Scan lists the subdirectories of dir that hold at least one .gguf file.
// The directory name is the model id.
func Scan(dir string) ([]Entry, error) {
	abs, err := fsutil.ResolveDir(dir, false)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []Entry
	for _, de := range entries {
		if !de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		e, ok, err := Inspect(filepath.Join(abs, de.Name()))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Inspect reports whether dir holds model weights. ok is false for a
// directory without .gguf files.
func Inspect(dir string) (e Entry, ok bool, err error) {
	files, err := modelrt.WeightFiles(dir)
	if err != nil {
		return Entry{}, false, err
	}
	if len(files) == 0 {
		return Entry{}, false, nil
	}
	e = Entry{ID: filepath.Base(dir), Dir: dir, Quantized: true}
	for _, f := range files {
		if !isQuantized(filepath.Base(f)) {
			e.Quantized = false
		}
	}
	return e, true, nil
}

func isQuantized(name string) bool {
	name = strings.ToLower(name)
	for _, m := range []string{"q2", "q3", "q4", "q5", "q6", "q8", "int4", "int8"} {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// Sync registers every model directory under dir. Existing records are
// updated in place. It returns the registered entries.
func Sync(ctx context.Context, r Registrar, dir string) ([]Entry, error) {
	found, err := Scan(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range found {
		if err := r.RegisterModel(ctx, store.Model{ModelID: e.ID, Name: e.ID, Quantized: e.Quantized}, e.Dir); err != nil {
			return nil, fmt.Errorf("register %s: %w", e.ID, err)
		}
	}
	return found, nil
}
