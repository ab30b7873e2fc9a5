package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
)

// decodeJSON decodes the request body into v with a size cap. Unknown fields
// are tolerated so older clients keep working.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 8<<20))
	return dec.Decode(v)
}
