package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
)

// WriteJSON writes every successful route result into a single JSON array.
// Returns the number of routes written.
func WriteJSON(filename string, results []models.RouteResult) (int, error) {
	all := make([]*models.CalendarPrices, 0, len(results))
	for _, r := range results {
		if r.Err != nil || r.Prices == nil {
			continue
		}
		all = append(all, r.Prices)
	}

	f, err := os.Create(filename)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		return 0, err
	}

	return len(all), nil
}

// WriteJSONAtomic encodes v into path through a temp file in the same
// directory followed by fsync and rename, so readers never observe a
// partially written document.
func WriteJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err = enc.Encode(v); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmpName, err)
	}
	return nil
}
