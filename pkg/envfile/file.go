package envfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// FileMode is the permission used for snapshot files; they hold secrets.
const FileMode os.FileMode = 0o600

var (
	// ErrTemplateNotFound is returned when a required template file is absent.
	ErrTemplateNotFound = errors.New("snapshot template not found")

	// ErrSnapshotNotFound is returned when a snapshot file is expected but absent.
	ErrSnapshotNotFound = errors.New("snapshot file not found")
)

// Exists reports whether a regular file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ReadTemplate loads a template file. A missing file yields ErrTemplateNotFound.
func ReadTemplate(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	return data, nil
}

// Parse decodes NAME=value content. Values are decoded by godotenv; key order
// follows the first appearance of each key in data.
func Parse(data []byte) (*Snapshot, error) {
	values, err := godotenv.UnmarshalBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	s := New()
	for _, line := range strings.Split(string(data), "\n") {
		key, ok := lineKey(line)
		if !ok || s.Has(key) {
			continue
		}
		if v, ok := values[key]; ok {
			if err := s.Set(key, v); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// ReadFile loads the snapshot at path. A missing file yields ErrSnapshotNotFound.
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	return Parse(data)
}

// WriteFileAtomic replaces path with data through a temporary file in the same
// directory followed by a rename, so readers see either the old or new file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Persist renders s (spliced into template when non-nil) and overwrites path.
func Persist(s *Snapshot, path string, template []byte) error {
	return WriteFileAtomic(path, Render(s, template), FileMode)
}

// Propagate copies src byte for byte to every destination, creating parent
// directories. Existing destinations are overwritten.
func Propagate(src string, destinations []string) error {
	data, err := os.ReadFile(src)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, src)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	for _, dst := range destinations {
		if err := WriteFileAtomic(dst, data, FileMode); err != nil {
			return fmt.Errorf("failed to propagate to %s: %w", dst, err)
		}
	}
	return nil
}

// Diverged returns the destinations whose content differs from src,
// including destinations that do not exist.
func Diverged(src string, destinations []string) ([]string, error) {
	want, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src, err)
	}
	var out []string
	for _, dst := range destinations {
		got, err := os.ReadFile(dst)
		if err != nil || !bytes.Equal(want, got) {
			out = append(out, dst)
		}
	}
	return out, nil
}

// AppendResult reports what AppendFields did with each requested key.
type AppendResult struct {
	Appended []string
	Filled   []string
	Skipped  []string
}

// Changed reports whether the file content was modified.
func (r AppendResult) Changed() bool {
	return len(r.Appended)+len(r.Filled) > 0
}

// AppendFields adds fields to the snapshot file at path without altering any
// existing value. A key that is absent is appended as a new line; a key that
// is present with an empty placeholder value ("NAME=") is filled in place; a
// key that already has a value is skipped.
func AppendFields(path string, fields *Snapshot) (AppendResult, error) {
	var res AppendResult

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return res, fmt.Errorf("%w: %s", ErrSnapshotNotFound, path)
	}
	if err != nil {
		return res, fmt.Errorf("failed to read %s: %w", path, err)
	}

	lines := strings.SplitAfter(string(data), "\n")
	index := make(map[string]int)
	for i, line := range lines {
		if key, ok := lineKey(line); ok {
			if _, dup := index[key]; !dup {
				index[key] = i
			}
		}
	}

	var tail []string
	for _, key := range fields.Keys() {
		value := fields.Value(key)
		i, present := index[key]
		switch {
		case !present:
			tail = append(tail, key+"="+value+"\n")
			res.Appended = append(res.Appended, key)
		case lineValue(lines[i]) == "":
			body := strings.TrimRight(lines[i], "\r\n")
			lines[i] = body + value + lines[i][len(body):]
			res.Filled = append(res.Filled, key)
		default:
			res.Skipped = append(res.Skipped, key)
		}
	}

	if !res.Changed() {
		return res, nil
	}

	out := strings.Join(lines, "")
	if len(tail) > 0 {
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		out += strings.Join(tail, "")
	}
	if err := WriteFileAtomic(path, []byte(out), FileMode); err != nil {
		return res, err
	}
	return res, nil
}
