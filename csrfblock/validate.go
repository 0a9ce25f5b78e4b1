package csrfblock

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// validate applies the token check to one request. The boolean is the
// accept/reject outcome; a non-nil error is a session-store failure and
// overrides it.
//
// Order matters: only POST is state-changing here, a missing stored token
// always rejects, the header is compared before the parameter, and in
// one-time mode the stored token is consumed on success only — failed
// attempts never destroy a still-valid token.
func (p *Protector) validate(r *http.Request, store tokenStore) (bool, error) {
	if !strings.EqualFold(r.Method, http.MethodPost) {
		return true, nil
	}

	stored, ok := store.get()
	if !ok || stored == "" {
		return false, nil
	}

	// A present-but-wrong header falls through to the parameter, so a
	// stale header cannot mask a valid form submission. FormValue parses
	// urlencoded and multipart bodies as needed and merges the query.
	matched := tokenEqual(r.Header.Get(p.cfg.HeaderName), stored)
	if !matched {
		matched = tokenEqual(r.FormValue(p.cfg.ParameterName), stored)
	}
	if !matched {
		return false, nil
	}

	if p.cfg.OneTime {
		if err := store.clear(); err != nil {
			return false, err
		}
	}
	return true, nil
}

// tokenEqual reports a constant-time match; empty candidates never match.
func tokenEqual(sent, stored string) bool {
	return sent != "" && subtle.ConstantTimeCompare([]byte(sent), []byte(stored)) == 1
}
