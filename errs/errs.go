// Package errs defines the error taxonomy of the reconciliation core.
// Every error the core returns wraps one of these sentinels so callers can
// branch with errors.Is without string matching.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a missing/invalid config field or an
	// unknown backend type. Fatal; the CLI exits 1.
	ErrConfiguration = errors.New("configuration error")
	// ErrDatabase marks a connection or statement failure. Fatal for the
	// phase it occurs in.
	ErrDatabase = errors.New("database error")
	// ErrScanSource marks a non-zero rsync exit or an unreadable local
	// root. Fatal.
	ErrScanSource = errors.New("scan source error")
	// ErrInferenceMiss marks an unknown architecture or version for one
	// specific path. The caller skips that directory only.
	ErrInferenceMiss = errors.New("inference miss")
	// ErrPrefixMiss marks that no repository mapping matched a path. The
	// caller skips repository creation but still records file details.
	ErrPrefixMiss = errors.New("prefix miss")
	// ErrFetch marks an HTTP non-2xx, network, or local read failure
	// while recording a file detail. The caller skips that file only.
	ErrFetch = errors.New("fetch error")
	// ErrMalformedRegex marks an unparsable regex in configuration. The
	// caller skips that rule only.
	ErrMalformedRegex = errors.New("malformed regex")
)

// Wrap returns an error that wraps sentinel with additional context,
// satisfying errors.Is(result, sentinel).
func Wrap(sentinel error, format string, args ...any) error {
	return &wrapped{sentinel: sentinel, msg: fmt.Sprintf(format, args...)}
}

type wrapped struct {
	sentinel error
	msg      string
}

func (w *wrapped) Error() string { return w.msg }
func (w *wrapped) Unwrap() error { return w.sentinel }
