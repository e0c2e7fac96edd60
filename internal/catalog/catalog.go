// Package catalog moves the product catalog to and from JSON files.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/safar/go-shop-bot/internal/models"
	"github.com/samber/lo"
)

const snapshotPrefix = "snapshot_"

type Source interface {
	ExportProducts(ctx context.Context) ([]models.ProductRecord, error)
}

type Sink interface {
	ImportProducts(ctx context.Context, records []models.ProductRecord) (models.ImportResult, error)
}

// Export writes the catalog to path, replacing any previous file. The file is
// written next to path first and renamed into place.
func Export(ctx context.Context, src Source, path string) (int, error) {
	records, err := src.ExportProducts(ctx)
	if err != nil {
		return 0, fmt.Errorf("read catalog: %w", err)
	}
	if records == nil {
		records = []models.ProductRecord{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode catalog: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create backup directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return 0, fmt.Errorf("write catalog file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("replace catalog file: %w", err)
	}

	return len(records), nil
}

// Import merges the records stored in path into the catalog.
func Import(ctx context.Context, dst Sink, path string) (models.ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ImportResult{}, fmt.Errorf("read catalog file: %w", err)
	}

	var records []models.ProductRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return models.ImportResult{}, fmt.Errorf("decode catalog file %s: %w", path, err)
	}

	return dst.ImportProducts(ctx, records)
}

// LatestBackup returns the most recently modified JSON file in dir. ok is
// false when the directory is missing or holds no backup.
func LatestBackup(dir string) (path string, ok bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read backup directory: %w", err)
	}

	var newest time.Time
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return "", false, fmt.Errorf("stat backup %s: %w", entry.Name(), err)
		}
		if !ok || info.ModTime().After(newest) {
			path, newest, ok = filepath.Join(dir, entry.Name()), info.ModTime(), true
		}
	}

	return path, ok, nil
}

// Snapshot exports the catalog to a timestamped file in dir and removes the
// oldest snapshots beyond keep.
func Snapshot(ctx context.Context, src Source, dir string, keep int, now time.Time) (string, error) {
	path := filepath.Join(dir, snapshotPrefix+now.Format("20060102_150405")+".json")
	if _, err := Export(ctx, src, path); err != nil {
		return "", err
	}

	matches, err := filepath.Glob(filepath.Join(dir, snapshotPrefix+"*.json"))
	if err != nil {
		return "", fmt.Errorf("list snapshots: %w", err)
	}
	sort.Strings(matches)

	if len(matches) > keep {
		for _, old := range lo.DropRight(matches, keep) {
			if err := os.Remove(old); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return path, fmt.Errorf("remove old snapshot: %w", err)
			}
		}
	}

	return path, nil
}
