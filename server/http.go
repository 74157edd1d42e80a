package server

import (
	"io"
	"net/http"
)

// HTTPHandler exposes a Dispatcher over plain HTTP POST: the request body is
// the inbound envelope, the response body the outbound one. Framework wiring
// beyond this stays with the host.
func HTTPHandler(d *Dispatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		out := d.Handle(r.Context(), body).([]byte)
		w.Header().Set("Content-Type", "application/json")
		w.Write(out)
	})
}

// HTTPHandlerWith builds the Service per request, so handlers can close over
// request metadata such as headers. The constructed service is owned by this
// handler for the duration of the request only.
func HTTPHandlerWith(build func(r *http.Request) *Service, opts *Options) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		out := Handle(r.Context(), body, build(r), opts).([]byte)
		w.Header().Set("Content-Type", "application/json")
		w.Write(out)
	})
}
