package dispatch

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/aretw0/tendril/pkg/domain"
)

// MaxBodyBytes caps the size of an invocation body.
const MaxBodyBytes = 10 << 20

// HTTPHandler serves handler through the dispatcher. The response always
// carries a JSON envelope, 200 on success and 500 on any signal.
func (d *Dispatcher) HTTPHandler(handler Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
		if err != nil {
			d.logger.Warn("failed to read invocation body", "error", err)
			res := domain.Failedf("failed to read request body: %v", err)
			writeEnvelope(w, res.StatusCode(), res.Envelope())
			return
		}

		payload, status, id := d.dispatch(r.Context(), handler, body, r.Header)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set(domain.HeaderInvocationID, id)
		w.WriteHeader(status)
		if _, err := w.Write(payload); err != nil {
			d.logger.Error("failed to write response", "error", err, "invocation_id", id)
		}
	})
}

func writeEnvelope(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
