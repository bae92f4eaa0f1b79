package api

import "net/http"

// chatPreflight handles OPTIONS /api/chat. CORS headers are granted
// only when the request carries all three preflight headers; otherwise
// the response is an empty 200.
func chatPreflight(w http.ResponseWriter, r *http.Request) {
	h := r.Header
	if h.Get("Origin") != "" &&
		h.Get("Access-Control-Request-Method") != "" &&
		h.Get("Access-Control-Request-Headers") != "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Digest, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")
	}
	w.WriteHeader(http.StatusOK)
}

// setStreamCORS marks a chat response as unrestricted cross-origin.
// Applied to every POST /api/chat response, including the 401 path.
func setStreamCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Add("Vary", "Origin")
}
