// Package api implements the HTTP surface of the quill service: the
// signed-identity access gate, the SSE streaming chat endpoint, note
// CRUD, CORS preflight negotiation, and the middleware stack
// (recovery, request ID, logging, per-IP rate limiting).
package api
