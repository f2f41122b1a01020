package responder

import (
	"io"
	"net/http"
	"strconv"

	"github.com/leeforge/imagevise/json"
)

// ChunkSize is the size of the blocks a rendered file is streamed in.
const ChunkSize = 2 * 1024 * 1024

// encodeFailed is sent when the error body itself cannot be encoded.
var encodeFailed = []byte("{\n  \"errors\": [\n    \"encode failed\"\n  ]\n}")

// writeJSON is the internal helper for all JSON responses
func writeJSON(w http.ResponseWriter, status int, payload any) {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		raw = encodeFailed
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
	w.WriteHeader(status)
	w.Write(raw)
}

// Errors sends {"errors":[...]} with the cache policy for status.
func Errors(w http.ResponseWriter, status int, messages ...string) {
	if messages == nil {
		messages = []string{}
	}
	ApplyDefaultHeaders(w)
	w.Header().Set("Cache-Control", ErrorCacheControl(status))
	writeJSON(w, status, ErrorBody{Errors: messages})
}

// NotModified answers a conditional GET without a body.
func NotModified(w http.ResponseWriter) {
	ApplyDefaultHeaders(w)
	w.WriteHeader(http.StatusNotModified)
}

// JSON sends payload with status. Used by auxiliary endpoints.
func JSON(w http.ResponseWriter, status int, payload any) {
	writeJSON(w, status, payload)
}

// WriteImage sends the rendered file in ChunkSize blocks.
// It returns the number of body bytes written.
func WriteImage(w http.ResponseWriter, img Image, body io.Reader) (int64, error) {
	ApplyDefaultHeaders(w)
	h := w.Header()
	h.Set("Content-Type", img.ContentType)
	h.Set("Content-Length", strconv.FormatInt(img.Length, 10))
	h.Set("Cache-Control", ImageCacheControl(img.MaxAge))
	if img.ETag != "" {
		h.Set("ETag", img.ETag)
	}
	w.WriteHeader(http.StatusOK)
	return streamChunks(w, body)
}

// streamChunks copies r to w. No single Write exceeds ChunkSize.
func streamChunks(w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, ChunkSize)
	var written int64
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			m, err := w.Write(buf[:n])
			written += int64(m)
			if err != nil {
				return written, err
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
