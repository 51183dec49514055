package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/japaniel/scrb/pkg/modifier"
)

// DefaultRoot is where builders write and the runtime dictionary reads.
const DefaultRoot = "assets/dictionary"

// DirStore keeps one record file per word under a directory per character:
// "red" lives at Root/r/e/d/red.json.
type DirStore struct {
	Root string
}

// NewDirStore returns a DirStore rooted at root.
func NewDirStore(root string) *DirStore {
	return &DirStore{Root: root}
}

// Path returns the record file location for word.
func (s *DirStore) Path(word string) (string, error) {
	if err := ValidWord(word); err != nil {
		return "", err
	}
	elems := []string{s.Root}
	for _, r := range word {
		elems = append(elems, string(r))
	}
	elems = append(elems, word+modifier.Ext)
	return filepath.Join(elems...), nil
}

// Load reads and decodes word's record.
func (s *DirStore) Load(ctx context.Context, word string) ([]modifier.Modifier, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.Path(word)
	if err != nil {
		return nil, err
	}
	mods, err := ReadRecordFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%q: %w", word, ErrNotFound)
	}
	return mods, err
}

// Merge reads any existing record, appends the values it does not already
// hold and writes the result back. An unchanged record is not rewritten.
func (s *DirStore) Merge(ctx context.Context, word string, mods []modifier.Modifier) ([]modifier.Modifier, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateAll(word, mods); err != nil {
		return nil, err
	}
	path, err := s.Path(word)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create record directory: %w", err)
	}

	existing, err := ReadRecordFile(path)
	exists := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	merged := modifier.Merge(existing, mods)
	if exists && modifier.EqualList(existing, merged) {
		return merged, nil
	}
	if err := WriteRecordFile(path, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// ReadRecordFile decodes the record at path.
func ReadRecordFile(path string) ([]modifier.Modifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mods, err := modifier.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mods, nil
}

// WriteRecordFile encodes mods and replaces path through a temporary file in
// the same directory, so readers never observe a partial record.
func WriteRecordFile(path string, mods []modifier.Modifier) error {
	data, err := modifier.Encode(mods)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".record-*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close record: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace record: %w", err)
	}
	return nil
}

// RewriteIfChanged writes mods to path unless the file already holds
// exactly their encoding. It reports whether the file was written.
func RewriteIfChanged(path string, mods []modifier.Modifier) (bool, error) {
	want, err := modifier.Encode(mods)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	have, err := os.ReadFile(path)
	if err == nil && bytes.Equal(have, want) {
		return false, nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	return true, writeFileAtomic(path, want)
}

// RecordFile is a record found on disk by Scan.
type RecordFile struct {
	Path string
	Word string
}

// Scan lists every record file under Root in lexical path order. Temporary
// files left by an interrupted write are ignored.
func (s *DirStore) Scan() ([]RecordFile, error) {
	var out []RecordFile
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, modifier.Ext) {
			return nil
		}
		out = append(out, RecordFile{Path: path, Word: strings.TrimSuffix(name, modifier.Ext)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
