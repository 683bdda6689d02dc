package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/huiui/hello-antd-role/internal/shared"
	"github.com/huiui/hello-antd-role/internal/token"
)

// User-facing messages. They never name the check that failed.
const (
	MsgUnauthorized = "Authentication required"
	MsgForbidden    = "You do not have permission to perform this action"
	MsgBadLogin     = "Invalid username or password"
	MsgInternal     = "Internal server error"
)

// RespondError maps domain errors to status codes and envelopes. Unknown
// errors are logged and rendered as an opaque 500.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		verr  *shared.ValidationError
		cerr  *shared.ConflictError
		aerr  *shared.AuthenticationError
		nferr *shared.NotFoundError
		terr  *token.Error
	)
	switch {
	case errors.As(err, &verr):
		Fail(w, http.StatusUnprocessableEntity, verr.Fields)
	case errors.As(err, &cerr):
		Fail(w, http.StatusUnprocessableEntity, map[string]string{cerr.Field: cerr.Message})
	case errors.Is(err, ErrBadBody):
		Fail(w, http.StatusBadRequest, General(ErrBadBody.Error()))
	case errors.As(err, &aerr):
		Fail(w, http.StatusUnauthorized, General(MsgBadLogin))
	case errors.As(err, &terr), errors.Is(err, shared.ErrUnauthorized):
		Fail(w, http.StatusUnauthorized, General(MsgUnauthorized))
	case errors.Is(err, shared.ErrForbidden):
		Fail(w, http.StatusForbidden, General(MsgForbidden))
	case errors.As(err, &nferr):
		Fail(w, http.StatusNotFound, General(nferr.Error()))
	case errors.Is(err, shared.ErrNotFound):
		Fail(w, http.StatusNotFound, General("Resource not found"))
	default:
		if logger != nil {
			logger.Error("unhandled error", slog.Any("error", err))
		}
		Fail(w, http.StatusInternalServerError, General(MsgInternal))
	}
}
