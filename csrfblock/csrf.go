package csrfblock

import (
	"net/http"
	"strings"
)

// Protect wraps the given next http.Handler with CSRF enforcement and
// response rewriting.
//
// Behavior:
//   - Non-POST requests skip validation entirely.
//   - POST requests must present the session token in the configured header
//     or form/query parameter; anything else is answered by the blocked
//     handler without next ever running.
//   - Responses declared text/html or application/xhtml+xml are streamed
//     through the form injector, which inserts a hidden token field after
//     each eligible <form> tag (and a meta tag after <head> when AddMeta is
//     set). Every other content type passes through byte-for-byte with its
//     original chunking.
//
// Params:
// - next: downstream handler to be executed after the CSRF check passes.
//
// Returns:
// - An http.Handler that performs the CSRF logic before delegating to next.
func (p *Protector) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := p.cfg.Sessions(r)
		if sess == nil {
			// deployment error: the session layer must run before us
			if l := p.cfg.Logger; l != nil {
				l.Error("csrf: no session bound to request",
					"method", r.Method, "path", r.URL.Path)
			}
			http.Error(w, "session unavailable", http.StatusInternalServerError)
			return
		}
		store := tokenStore{sess: sess, key: p.cfg.SessionKey}

		ok, err := p.validate(r, store)
		if err != nil {
			if l := p.cfg.Logger; l != nil {
				l.Error("csrf: session store failure",
					"method", r.Method, "path", r.URL.Path, "error", err)
			}
			http.Error(w, "session failure", http.StatusInternalServerError)
			return
		}
		if !ok {
			if l := p.cfg.Logger; l != nil {
				l.Warn("csrf: request blocked",
					"method", r.Method, "path", r.URL.Path)
			}
			p.cfg.Blocked.ServeHTTP(w, r)
			return
		}

		// One token value per response cycle, shared by the injector and
		// by handlers reading TokenFromContext.
		st := &sessionToken{
			store: store,
			fresh: func() string { return p.cfg.TokenFunc(p.cfg.TokenLength) },
		}
		r = r.WithContext(contextWithToken(r.Context(), st))

		iw := &injectingWriter{
			ResponseWriter: w,
			inj:            newInjector(&p.cfg, r.Host, st.value),
		}
		next.ServeHTTP(iw, r)
		if err := iw.finish(); err != nil {
			if l := p.cfg.Logger; l != nil {
				l.Error("csrf: response flush failed",
					"method", r.Method, "path", r.URL.Path, "error", err)
			}
		}
	})
}

// TokenHandler returns an HTTP handler that writes the current token.
// Useful for SPAs that attach it to subsequent requests via the header.
//
// Returns:
// - http.Handler that responds with the token in the response body (text/plain).
func (p *Protector) TokenHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok, ok := TokenFromContext(r.Context()); ok {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Write([]byte(tok))
			return
		}
		http.Error(w, "no token", http.StatusInternalServerError)
	})
}

// injectingWriter defers the HTML-or-not decision until the response
// headers are known, then routes body bytes through the injector. Non-HTML
// bodies take the passthrough path and keep their original chunking.
type injectingWriter struct {
	http.ResponseWriter
	inj         *Injector
	wroteHeader bool
	passthrough bool
}

func (w *injectingWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if isHTML(w.Header().Get("Content-Type")) {
		// injection changes the body length; let net/http reframe it
		w.Header().Del("Content-Length")
	} else {
		w.passthrough = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *injectingWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.passthrough {
		return w.ResponseWriter.Write(b)
	}
	// Feed still produces valid pass-through bytes when the token fetch
	// fails; write them out before surfacing the store error so the
	// response is not truncated more than necessary.
	out := w.inj.Feed(b)
	if len(out) > 0 {
		if _, err := w.ResponseWriter.Write(out); err != nil {
			return 0, err
		}
	}
	if err := w.inj.Err(); err != nil {
		return len(b), err
	}
	return len(b), nil
}

// Flush keeps streaming handlers working through the wrapper.
func (w *injectingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap supports http.ResponseController.
func (w *injectingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// finish flushes the injector once the handler returns; a trailing
// unterminated tag is emitted as literal text.
func (w *injectingWriter) finish() error {
	if !w.wroteHeader || w.passthrough {
		return nil
	}
	if tail := w.inj.Finish(); len(tail) > 0 {
		if _, err := w.ResponseWriter.Write(tail); err != nil {
			return err
		}
	}
	return nil
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(ct, "text/html") ||
		strings.HasPrefix(ct, "application/xhtml+xml")
}
