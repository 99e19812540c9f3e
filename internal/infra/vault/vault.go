// Package vault reads card documents from a directory tree.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"notecard-review-service/internal/app"
	"notecard-review-service/internal/domain"
)

// Extensions lists the file types scanned for cards.
var Extensions = []string{".md", ".markdown", ".txt"}

// Vault is a directory of note files. Paths handed to ReadText are relative
// to the root and must stay inside it.
type Vault struct {
	root string
}

func New(root string) *Vault {
	return &Vault{root: root}
}

func (v *Vault) Root() string { return v.root }

// ListCardSources walks the vault, skipping hidden directories. Every scope
// other than the current file lists the whole vault.
func (v *Vault) ListCardSources(ctx context.Context, _ app.Scope) ([]app.Source, error) {
	var sources []app.Source
	err := filepath.WalkDir(v.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != v.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !hasExtension(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(v.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		sources = append(sources, app.Source{
			Path:        rel,
			DisplayName: strings.TrimSuffix(rel, filepath.Ext(rel)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk vault %s: %w", v.root, err)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })
	return sources, nil
}

func (v *Vault) ReadText(_ context.Context, path string) (string, error) {
	full, err := v.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", domain.ErrSourceNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func (v *Vault) resolve(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: absolute path %s", domain.ErrSourceNotFound, path)
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s escapes the vault", domain.ErrSourceNotFound, path)
	}
	return filepath.Join(v.root, clean), nil
}

func hasExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
