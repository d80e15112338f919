package trajgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/trajgo/classifier"
	"github.com/hupe1980/trajgo/distance"
	"github.com/hupe1980/trajgo/kdtree"
)

var (
	// ErrNotLoaded is returned when classification is attempted while no
	// model collection is loaded.
	ErrNotLoaded = errors.New("no models loaded")

	// ErrClosed is returned when an operation is attempted on a closed
	// engine.
	ErrClosed = errors.New("engine is closed")

	// ErrInvalidArgument is returned for malformed caller input: bad window
	// bounds, mismatched vector lengths, or an output buffer of the wrong
	// size.
	ErrInvalidArgument = errors.New("invalid argument")
)

// translateError unifies lower-layer argument errors under
// ErrInvalidArgument so callers can branch on a single sentinel. The
// original error remains reachable via errors.Unwrap / errors.As.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var iw *classifier.ErrInvalidWindow
	if errors.As(err, &iw) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	var dm *kdtree.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if errors.Is(err, distance.ErrLengthMismatch) || errors.Is(err, kdtree.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return err
}
