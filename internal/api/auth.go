package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// identityCookieName is the cookie carrying the signed identity token.
const identityCookieName = "uid"

// identityCookieMaxAge is one year in seconds.
const identityCookieMaxAge = 365 * 24 * 60 * 60

// authManager is the access gate: it mints signed identity tokens and
// resolves caller identity from the Authorization header or uid cookie.
// Authentication failures are decided before any stream opens.
type authManager struct {
	secret []byte
	isDev  bool
	logger *slog.Logger
}

// signUID creates an HMAC-signed identity token "uid.signature".
func signUID(uid string, secret []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(uid))
	sig := base64.URLEncoding.EncodeToString(h.Sum(nil))
	return uid + "." + sig
}

// verifySignedUID splits a signed token and verifies the HMAC signature
// in constant time. Returns the UID and true on success.
func verifySignedUID(value string, secret []byte) (string, bool) {
	idx := strings.LastIndex(value, ".")
	if idx < 1 {
		return "", false
	}

	uid := value[:idx]
	sig, err := base64.URLEncoding.DecodeString(value[idx+1:])
	if err != nil {
		return "", false
	}

	h := hmac.New(sha256.New, secret)
	h.Write([]byte(uid))
	expected := h.Sum(nil)

	if subtle.ConstantTimeCompare(sig, expected) != 1 {
		return "", false
	}

	return uid, true
}

// Authenticate resolves the caller identity. A Bearer token in the
// Authorization header wins; otherwise the uid cookie is checked.
// Returns empty string when no valid identity is presented.
func (am *authManager) Authenticate(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			return ""
		}
		return am.verify(token)
	}

	c, err := r.Cookie(identityCookieName)
	if err != nil {
		return ""
	}
	return am.verify(c.Value)
}

// verify checks the token signature and that the UID is a well-formed
// UUID (the only shape this service ever mints).
func (am *authManager) verify(token string) string {
	uid, ok := verifySignedUID(token, am.secret)
	if !ok {
		return ""
	}
	if _, err := uuid.Parse(uid); err != nil {
		return ""
	}
	return uid
}

// requireOwner authenticates the request or writes the 401 JSON body.
// Unauthenticated requests never reach the stream layer.
func (am *authManager) requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := am.Authenticate(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized", am.logger)
		return "", false
	}
	return uid, true
}

// createSession handles POST /api/auth/session: mints a fresh identity,
// sets the uid cookie and returns the signed token for header-based use.
func (am *authManager) createSession(w http.ResponseWriter, _ *http.Request) {
	uid := uuid.New().String()
	token := signUID(uid, am.secret)

	http.SetCookie(w, &http.Cookie{
		Name:     identityCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   identityCookieMaxAge,
		HttpOnly: true,
		Secure:   !am.isDev,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"userId": uid,
		"token":  token,
	}, am.logger)
}
