package connect

import (
	"context"
	"crypto/subtle"

	"connectrpc.com/connect"

	"github.com/osa030/flowbeat/internal/infra/config"
)

const (
	// AdminTokenHeader is the header name for admin authentication token.
	AdminTokenHeader = "X-Admin-Token"
)

// readOnlyProcedures may be called without a token.
var readOnlyProcedures = map[string]bool{
	ProcedureGetStatus:    true,
	ProcedureListCatalogs: true,
	ProcedureSubscribe:    true,
}

// NewAdminAuthInterceptor creates an interceptor that validates admin tokens
// from request metadata for procedures that change player state.
func NewAdminAuthInterceptor(cfg *config.Config) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if readOnlyProcedures[req.Spec().Procedure] {
				return next(ctx, req)
			}

			token := req.Header().Get(AdminTokenHeader)
			if token == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, nil)
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Admin.Token)) != 1 {
				return nil, connect.NewError(connect.CodeUnauthenticated, nil)
			}

			return next(ctx, req)
		}
	}
}
