package dictionary

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultColorTableURL serves the community color name list as
// [{"name":..,"hex":..}].
const DefaultColorTableURL = "https://unpkg.com/color-name-list/dist/colornames.json"

const maxTableSize = 32 << 20

// EnsureColorTable checks if the color table exists at path. If not, it
// downloads it from tableURL, decompressing ".gz" payloads, and writes it
// in place only once the whole body has been received and parsed.
func EnsureColorTable(ctx context.Context, path, tableURL string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if tableURL == "" {
		tableURL = DefaultColorTableURL
	}
	return downloadTable(ctx, tableURL, path)
}

func downloadTable(ctx context.Context, tableURL, destPath string) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tableURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "scrb-cli")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	var body io.Reader = io.LimitReader(resp.Body, maxTableSize)
	if strings.HasSuffix(tableURL, ".gz") {
		gzReader, err := gzip.NewReader(body)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		body = gzReader
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".colortable-*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write to file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// refuse to cache something that is not a color table
	names, err := LoadColorTable(tmp.Name())
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return ErrNoColors
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), destPath)
}
