package rpc

import (
	"context"
	"errors"
	"strconv"

	errorsmod "cosmossdk.io/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/elys-network/clvault/internal/types"
)

// codeTrailer carries the registered vault error code next to the status, so
// clients can restore the error kind.
const codeTrailer = "x-clvault-code"

var kinds = []struct {
	err  *errorsmod.Error
	code codes.Code
}{
	{types.ErrUnauthorized, codes.PermissionDenied},
	{types.ErrInvalidSignature, codes.Unauthenticated},
	{types.ErrWrongSequence, codes.FailedPrecondition},
	{types.ErrInvalidParameters, codes.InvalidArgument},
	{types.ErrInvalidRequest, codes.InvalidArgument},
	{types.ErrSlippageExceeded, codes.FailedPrecondition},
	{types.ErrInsufficientBalance, codes.FailedPrecondition},
	{types.ErrNothingToRebalance, codes.FailedPrecondition},
	{types.ErrRebalanceNotAllowed, codes.FailedPrecondition},
	{types.ErrPoolInteractionFailed, codes.Aborted},
	{types.ErrOverflow, codes.OutOfRange},
	{types.ErrVaultNotFound, codes.NotFound},
	{types.ErrVaultExists, codes.AlreadyExists},
}

// StatusCode is the gRPC code a vault error is reported with.
func StatusCode(err error) codes.Code {
	if kind := kindOf(err); kind != nil {
		for _, k := range kinds {
			if k.err == kind {
				return k.code
			}
		}
	}
	if errors.Is(err, context.Canceled) {
		return codes.Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return codes.DeadlineExceeded
	}
	return codes.Internal
}

func kindOf(err error) *errorsmod.Error {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err
		}
	}
	return nil
}

// toStatus converts a handler error into a status error and attaches the vault
// error code as a trailer.
func toStatus(ctx context.Context, err error) error {
	if kind := kindOf(err); kind != nil {
		_ = grpc.SetTrailer(ctx, metadata.Pairs(codeTrailer, strconv.FormatUint(uint64(kind.ABCICode()), 10)))
		return status.Error(StatusCode(err), err.Error())
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(StatusCode(err), err.Error())
}

// kindError is a status error restored on the client. It reports the status to
// grpc and unwraps to the registered vault error.
type kindError struct {
	st   *status.Status
	kind *errorsmod.Error
}

func (e *kindError) Error() string              { return e.st.Err().Error() }
func (e *kindError) GRPCStatus() *status.Status { return e.st }
func (e *kindError) Unwrap() error              { return e.kind }

// FromStatus restores the vault error kind of a status error, so callers can use
// errors.Is against the registered errors. Other errors are returned unchanged.
func FromStatus(err error, trailer metadata.MD) error {
	st, ok := status.FromError(err)
	if !ok || st.Code() == codes.OK {
		return err
	}
	values := trailer.Get(codeTrailer)
	if len(values) == 0 {
		return err
	}
	code, parseErr := strconv.ParseUint(values[0], 10, 32)
	if parseErr != nil {
		return err
	}
	for _, k := range kinds {
		if uint64(k.err.ABCICode()) == code {
			return &kindError{st: st, kind: k.err}
		}
	}
	return err
}

func errorServerInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return resp, nil
}

func kindClientInterceptor(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	var trailer metadata.MD
	opts = append(opts, grpc.Trailer(&trailer))
	if err := invoker(ctx, method, req, reply, cc, opts...); err != nil {
		return FromStatus(err, trailer)
	}
	return nil
}
