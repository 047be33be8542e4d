package diskidx

import (
	"errors"
	"fmt"

	"github.com/hupe1980/diskidx/index"
	"github.com/hupe1980/diskidx/keycodec"
)

// Engine errors. Match them with errors.Is.
var (
	ErrDuplicateKey  = index.ErrDuplicateKey
	ErrCorrupt       = index.ErrCorrupt
	ErrUnsupported   = index.ErrUnsupported
	ErrDepthLimit    = index.ErrDepthLimit
	ErrClosed        = index.ErrClosed
	ErrPositionRange = index.ErrPositionRange
	ErrUnknownKind   = index.ErrUnknownKind
	ErrInvalidConfig = index.ErrInvalidConfig
)

// ErrInvalidArgument is returned for keys or arguments the index cannot
// accept. The underlying keycodec error stays reachable with errors.Is.
var ErrInvalidArgument = errors.New("diskidx: invalid argument")

// CorruptError re-exports index.CorruptError for errors.As.
type CorruptError = index.CorruptError

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidArgument) {
		return err
	}
	if errors.Is(err, keycodec.ErrKeyType) ||
		errors.Is(err, keycodec.ErrKeyRange) ||
		errors.Is(err, keycodec.ErrKeyTooLong) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return err
}
