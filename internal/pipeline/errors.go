package pipeline

import (
	"context"
	"errors"
	"io/fs"

	"github.com/szibis/datasplit/internal/dataio"
	"github.com/szibis/datasplit/internal/split"
	"github.com/szibis/datasplit/internal/writer"
)

// Kind names the class of a run failure for logs and metrics.
type Kind string

const (
	KindNone             Kind = ""
	KindEmptyInput       Kind = "empty_input"
	KindInvalidSplitSpec Kind = "invalid_split_specification"
	KindInvalidSplitSet  Kind = "invalid_split_set"
	KindIOFailure        Kind = "io_failure"
	KindDecodeFailure    Kind = "decode_failure"
	KindChannelFailure   Kind = "channel_failure"
	KindCanceled         Kind = "canceled"
	KindUnknown          Kind = "unknown"
)

// Classify maps an error chain onto a Kind.
func Classify(err error) Kind {
	var pathErr *fs.PathError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrEmptyInput):
		return KindEmptyInput
	case errors.Is(err, split.ErrInvalidSpecification):
		return KindInvalidSplitSpec
	case errors.Is(err, split.ErrInvalidSet):
		return KindInvalidSplitSet
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, dataio.ErrDecode):
		return KindDecodeFailure
	case errors.Is(err, writer.ErrChannelClosed):
		return KindChannelFailure
	case errors.Is(err, dataio.ErrIO), errors.As(err, &pathErr):
		return KindIOFailure
	default:
		return KindUnknown
	}
}
