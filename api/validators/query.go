package validators

import (
	"net/http"
	"time"

	pkgerrors "github.com/bibo40140/caisse-backend/pkg/errors"
)

// ParseSinceQuery reads an optional RFC3339 `since` parameter; the zero time
// means "everything".
func ParseSinceQuery(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}, nil
	}
	since, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		if since, err = time.Parse(time.RFC3339, raw); err != nil {
			return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid since parameter")
		}
	}
	return since, nil
}
