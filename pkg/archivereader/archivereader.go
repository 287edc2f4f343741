// Package archivereader streams entries out of a ZIP-formatted archive
// buffer,
// keeping only the files permitted for a resource's ContentKind, optionally
// filtered to a single book, and bounded by a file count and per-file byte
// cap so one oversized or adversarial archive can never exhaust a worker's
// memory.
package archivereader

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/flate"

	"github.com/klappy/bible-search-engine/pkg/core"
)

// Caps bounds how much of an archive a Reader will materialize.
type Caps struct {
	// MaxFiles stops iteration after this many matching entries have been
	// yielded, regardless of how many remain (recommended 500).
	MaxFiles int
	// MaxBytesPerFile aborts reading a single entry once its decompressed
	// size would exceed this many bytes (recommended 1 MiB). The entry is
	// dropped, not truncated.
	MaxBytesPerFile int64
}

// DefaultCaps returns the production defaults.
func DefaultCaps() Caps {
	return Caps{MaxFiles: 500, MaxBytesPerFile: 1 << 20}
}

// SkippedEntry records why a listed archive entry did not contribute a
// Document; it is worker-local diagnostic detail, never a request error.
type SkippedEntry struct {
	Path   string
	Reason string
}

// Read opens archive as a ZIP and returns the entries whose extension is
// permitted for kind, honoring bookFilter (when non-empty, a canonical book
// code matched as a path substring) and caps. The only error this returns
// is *core.StageError{Reason: ReasonArchiveCorrupt} when the buffer cannot
// be opened as a ZIP archive at all; any problem with an individual entry
// is recorded in the returned skipped list instead.
func Read(ctx context.Context, archive []byte, kind core.ContentKind, bookFilter string, caps Caps) ([]core.ArchiveEntry, map[string][]byte, []SkippedEntry, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, nil, nil, core.NewStageError(core.ReasonArchiveCorrupt, fmt.Errorf("failed to open archive: %w", err))
	}

	// Use klauspost/compress's faster flate implementation for every Deflate
	// entry of this archive, in place of the stdlib's. It is registered on
	// the reader, not package-wide: archive/zip panics when a global
	// decompressor for zip.Deflate is registered a second time.
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	entries := make([]core.ArchiveEntry, 0, caps.MaxFiles)
	contents := make(map[string][]byte, caps.MaxFiles)

	var skipped []SkippedEntry

	for _, f := range zr.File {
		if ctx.Err() != nil {
			skipped = append(skipped, SkippedEntry{Path: f.Name, Reason: "cancelled"})
			break
		}

		if f.FileInfo().IsDir() {
			continue
		}

		if len(entries) >= caps.MaxFiles {
			break
		}

		ext := strings.ToLower(path.Ext(f.Name))
		if !kind.AllowsExtension(ext) {
			continue
		}

		if bookFilter != "" && !matchesBook(f.Name, bookFilter) {
			continue
		}

		content, ok, reason := readEntry(f, caps.MaxBytesPerFile)
		if !ok {
			skipped = append(skipped, SkippedEntry{Path: f.Name, Reason: reason})
			continue
		}

		entries = append(entries, core.ArchiveEntry{
			Path:      f.Name,
			SizeBytes: int64(len(content)),
			Kind:      kind,
		})
		contents[f.Name] = content
	}

	return entries, contents, skipped, nil
}

// readEntry decompresses a single ZIP entry, aborting if it would exceed
// maxBytes, and lossily decodes non-UTF-8 content rather than failing.
func readEntry(f *zip.File, maxBytes int64) (content []byte, ok bool, reason string) {
	rc, err := f.Open()
	if err != nil {
		return nil, false, "open failed: " + err.Error()
	}
	defer rc.Close()

	// Read one byte past the limit so we can distinguish "exactly at the
	// cap" from "exceeds the cap" without buffering the whole entry first.
	limited := io.LimitReader(rc, maxBytes+1)

	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, false, "read failed: " + err.Error()
	}

	if int64(len(data)) > maxBytes {
		return nil, false, "exceeds max bytes per file"
	}

	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte("�"))
	}

	return data, true, ""
}

// matchesBook reports whether entryPath plausibly belongs to bookCode, by
// substring match against the path and against common Door43 archive
// glob layouts (e.g. ".../43-LUK.usfm", ".../tn_LUK.tsv").
func matchesBook(entryPath, bookCode string) bool {
	upper := strings.ToUpper(entryPath)
	if strings.Contains(upper, strings.ToUpper(bookCode)) {
		return true
	}

	matched, err := doublestar.Match("**/*"+strings.ToLower(bookCode)+"*", strings.ToLower(entryPath))

	return err == nil && matched
}
