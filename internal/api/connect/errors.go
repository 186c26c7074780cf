package connect

import (
	"context"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"

	"github.com/osa030/flowbeat/internal/app/catalog"
	"github.com/osa030/flowbeat/internal/app/player"
	"github.com/osa030/flowbeat/internal/app/transport"
)

// toConnectError maps player errors to RPC status codes.
func toConnectError(err error) error {
	var rejected *player.RejectedError
	var code connect.Code
	switch {
	case errors.As(err, &rejected):
		code = connect.CodeInvalidArgument
	case errors.Is(err, player.ErrNotQueued), errors.Is(err, catalog.ErrUnknownCatalog):
		code = connect.CodeNotFound
	case errors.Is(err, player.ErrOutOfRange):
		code = connect.CodeOutOfRange
	case errors.Is(err, player.ErrEmptyQueue),
		errors.Is(err, player.ErrNoCurrent),
		errors.Is(err, player.ErrNoNext),
		errors.Is(err, player.ErrNoPrevious):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, transport.ErrPlaybackRejected), errors.Is(err, transport.ErrPlaybackFailed):
		code = connect.CodeAborted
	case errors.Is(err, transport.ErrSuperseded), errors.Is(err, transport.ErrAborted),
		errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	case errors.Is(err, player.ErrClosed), errors.Is(err, catalog.ErrNoTracks):
		code = connect.CodeUnavailable
	default:
		code = connect.CodeInternal
	}
	return connect.NewError(code, err)
}
