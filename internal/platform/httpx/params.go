package httpx

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/huiui/hello-antd-role/internal/shared"
)

// PathID parses a positive integer URL parameter. Anything else cannot name
// a stored entity, so it is reported as not found.
func PathID(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ErrNotFound
	}
	return id, nil
}

// IDList is the body of replace-set endpoints.
type IDList struct {
	IDs []int64 `json:"ids"`
}
