// Package importer replays gzip-compressed NDJSON files of sync requests
// through the sync service.
package importer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"

	"github.com/xenking/storesync/internal/api"
	"github.com/xenking/storesync/internal/sanitize"
)

// LineError is passed to a line callback when a line is not a valid request.
type LineError struct {
	Path string
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// LineFunc receives each request of a file with its 1-based line number.
// When the line cannot be decoded req is nil and err is a *LineError.
// Returning an error stops the scan.
type LineFunc func(line int, req *api.SyncRequest, err error) error

// ScanFile streams the gzip-compressed NDJSON file at path and calls fn for
// every non-blank line. Lines longer than maxLine abort the scan.
func ScanFile(ctx context.Context, path string, maxLine int, fn LineFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++

		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		req := new(api.SyncRequest)
		if err := req.Decode(jx.DecodeBytes(raw)); err != nil {
			if err := fn(line, nil, &LineError{Path: path, Line: line, Err: err}); err != nil {
				return err
			}
			continue
		}
		if err := fn(line, req, nil); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// BuildFilter returns a bloom filter of the normalized SKUs found in the
// file at path, along with the number of SKUs added.
func BuildFilter(ctx context.Context, path string, maxLine int, capacity uint, fpr float64) (*bloom.BloomFilter, uint64, error) {
	filter := bloom.NewWithEstimates(capacity, fpr)
	var count uint64

	err := ScanFile(ctx, path, maxLine, func(_ int, req *api.SyncRequest, err error) error {
		if err != nil {
			return nil
		}
		for _, p := range req.Products {
			filter.AddString(normalizeSKU(p.SKU))
			count++
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return filter, count, nil
}

func normalizeSKU(sku string) string {
	return sanitize.Text(sku)
}
