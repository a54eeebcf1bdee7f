// Package integrity checks derived dataset files against the digests
// recorded in their metadata at preprocessing time.
package integrity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/OFFIS-RIT/listenkg/pkg/logger"
	"github.com/OFFIS-RIT/listenkg/pkg/metadata"

	"golang.org/x/sync/errgroup"
)

// chunkSize is the read size of the streaming hash (64KB).
const chunkSize = 64 * 1024

// State is the outcome of checking one file. Unknown is the zero value so
// an unset State never reads as a pass or a failure.
type State int

const (
	// Unknown means no digest was recorded, typically legacy metadata.
	Unknown State = iota
	// Valid means the current digest equals the recorded one.
	Valid
	// Invalid means the digests differ, or the file is gone while a
	// digest was expected.
	Invalid
)

func (s State) String() string {
	switch s {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// HashFile returns the lowercase hex SHA-256 of the file at path. The file
// is streamed in fixed-size chunks so memory use does not grow with the
// file size.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileCheck is the result for a single file.
type FileCheck struct {
	Path     string `json:"path"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	State    State  `json:"-"`
	Status   string `json:"status"`
	Err      error  `json:"-"`
}

// Report is the combined result for a dataset.
type Report struct {
	KG       FileCheck `json:"kg"`
	Ratings  FileCheck `json:"ratings"`
	AllValid bool      `json:"all_valid"`
}

// Violated reports whether at least one file definitively failed.
func (r Report) Violated() bool {
	return r.KG.State == Invalid || r.Ratings.State == Invalid
}

// Unknown reports whether the outcome is undetermined: nothing failed, but
// at least one file had no recorded digest.
func (r Report) Unknown() bool {
	return !r.Violated() && (r.KG.State == Unknown || r.Ratings.State == Unknown)
}

// VerifyParams names the files to check and the metadata holding their
// recorded digests. Metadata may be nil.
type VerifyParams struct {
	KGPath      string
	RatingsPath string
	Metadata    *metadata.Metadata
}

// Verify hashes the KG and ratings files concurrently and compares them
// with the recorded digests. A mismatch is logged, never returned as an
// error: the caller decides what to do with an inconsistent dataset. The
// only errors are I/O failures other than a missing file, and context
// cancellation.
func Verify(ctx context.Context, params VerifyParams) (Report, error) {
	var report Report

	eg, gCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		c, err := check(gCtx, params.KGPath, params.Metadata, metadata.KeyKGFileHash)
		report.KG = c
		return err
	})
	eg.Go(func() error {
		c, err := check(gCtx, params.RatingsPath, params.Metadata, metadata.KeyRatingsFileHash)
		report.Ratings = c
		return err
	})
	if err := eg.Wait(); err != nil {
		return Report{}, err
	}

	report.AllValid = report.KG.State == Valid && report.Ratings.State == Valid

	switch {
	case report.Violated():
		logger.Warn("[Integrity] Checksum mismatch, consider re-running preprocessing",
			"kg", report.KG.Status, "kg_expected", report.KG.Expected, "kg_actual", report.KG.Actual,
			"ratings", report.Ratings.Status, "ratings_expected", report.Ratings.Expected, "ratings_actual", report.Ratings.Actual,
		)
	case report.Unknown():
		logger.Warn("[Integrity] No recorded checksum, integrity unknown",
			"kg", report.KG.Status, "ratings", report.Ratings.Status,
		)
	default:
		logger.Info("[Integrity] Checksums match")
	}

	return report, nil
}

func check(ctx context.Context, path string, meta *metadata.Metadata, key metadata.Key) (FileCheck, error) {
	c := FileCheck{Path: path}
	if err := ctx.Err(); err != nil {
		return c, err
	}

	expected, hasExpected := meta.Str(key)
	c.Expected = expected

	actual, err := HashFile(path)
	switch {
	case err == nil:
		c.Actual = actual
	case errors.Is(err, fs.ErrNotExist):
		c.Err = err
	default:
		return c, err
	}

	c.State = determineState(hasExpected, expected, c.Actual, c.Err != nil)
	c.Status = c.State.String()
	return c, nil
}

func determineState(hasExpected bool, expected, actual string, missing bool) State {
	if !hasExpected {
		return Unknown
	}
	if missing || expected != actual {
		return Invalid
	}
	return Valid
}
