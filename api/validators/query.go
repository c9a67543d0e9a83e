package validators

import (
	"net/http"
	"strconv"

	pkgerrors "github.com/angelmondragon/referralz-backend/pkg/errors"
)

// maxQueryToken bounds opaque query values such as pagination cursors.
const maxQueryToken = 256

// ParseQueryInt returns fallback when key is absent and a validation error when
// the value is not an integer within [lo, hi].
func ParseQueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw := QueryString(r, key)
	if raw == "" {
		return fallback, nil
	}
	details := map[string]any{"field": key, "value": raw}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "query parameter must be numeric").WithDetails(details)
	}
	if n < lo || n > hi {
		details["min"], details["max"] = lo, hi
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(details)
	}
	return n, nil
}

// QueryString reads key trimmed and capped for use as an opaque token.
func QueryString(r *http.Request, key string) string {
	return SanitizeString(r.URL.Query().Get(key), maxQueryToken)
}
