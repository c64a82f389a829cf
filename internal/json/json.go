// Package json carries the HTTP API's bodies: one Write shape for
// every success payload, one Read path with a hard size cap.
package json

import (
	"encoding/json"
	"net/http"
)

// maxBodyBytes caps request bodies. Expense and presign payloads are
// a few hundred bytes; anything near this limit is not a client.
const maxBodyBytes = 1 << 20

// Write sends data as JSON with the given status. HTML escaping is
// off so presigned receipt URLs stay readable in responses.
func Write(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(data)
}

// Read decodes the request body into v, refusing oversized bodies.
func Read(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	return json.NewDecoder(body).Decode(v)
}
