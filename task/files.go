package task

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// recordDelimiter is the ASCII Unit Separator, the sole delimiter between
// serialized trajectory records in trace files (SPEC_FULL.md §6.2).
const recordDelimiter = 0x1F

// writeAtomic overwrites path with data via a temp-file-then-rename
// publish, adapted from memory/filestore.go's fileStore.Save: write to a
// sibling temp file, close it, then os.Rename into place so a reader never
// observes a partially written status/mstatus file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

// appendRecords appends each record to path, each one followed by the
// record delimiter, opening path in append mode and closing it before
// returning so the next phase observes a fully written file
// (SPEC_FULL.md §5, "Resource management").
func appendRecords(path string, records [][]byte) error {
	if len(records) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	defer f.Close()

	for _, rec := range records {
		if _, err := f.Write(rec); err != nil {
			return fmt.Errorf("append %s: %w", path, err)
		}
		if _, err := f.Write([]byte{recordDelimiter}); err != nil {
			return fmt.Errorf("append %s: %w", path, err)
		}
	}

	return nil
}

// copyFile overwrites dst with a byte-for-byte copy of src. Unlike
// writeAtomic, this reproduces the source's std::filesystem::copy with
// overwrite_existing: a true copy of a previously, fully flushed file,
// not a fresh write of in-memory data.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	defer in.Close()

	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}

	return nil
}

// readFile is a thin alias kept local to this package so callers reading
// status/mstatus .copy files during recovery go through one call site.
func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
