// Package csrfblock protects net/http applications against Cross-Site
// Request Forgery without requiring any change to the application itself:
// it injects a per-session secret token into every outgoing HTML form and
// rejects POST requests that do not present it back.
//
// How it works
//   - Responses declared as HTML are streamed through a single-pass tag
//     scanner. Every <form method="post"> whose action targets the same
//     host gets a hidden input appended right after its opening tag, and
//     optionally a <meta> tag is placed after <head> for AJAX clients. The
//     scanner is chunk-boundary safe and never buffers more than one
//     partially-seen tag, so responses stay streamed.
//   - POST requests must carry the token in the configured header (default
//     "X-CSRF-Token") or form parameter (default "SEC"); it is compared in
//     constant time against the token stored in the session. Anything else
//     receives a 403 "CSRF detected" (or a custom blocked handler).
//
// The token lives in an externally-owned session, reached through the small
// Session interface; persistence, locking and expiry stay with the session
// layer. With OneTime enabled a token is consumed on first successful use
// and a fresh one is issued on the next rendered page.
//
// # Configuration
//
// All behavior is driven by Config. Key fields include:
//   - Sessions (required): binds an incoming request to its Session
//   - ParameterName (default: "SEC") and HeaderName (default: "X-CSRF-Token")
//   - TokenLength (default: 16, at most 40) and TokenFunc for tests
//   - SessionKey (default: "csrfblock.token")
//   - AddMeta and MetaName (default: "csrftoken")
//   - OneTime and Blocked (default: built-in 403 responder)
//
// Typical usage
//
//	p, err := csrfblock.New(csrfblock.Config{Sessions: mySessionBinder})
//	if err != nil {
//		log.Fatal(err)
//	}
//	protected := p.Protect(appMux)
//	http.ListenAndServe(":8080", protected)
//
// In handlers, the current token is available for manual rendering or APIs:
//
//	if tok, ok := csrfblock.TokenFromContext(r.Context()); ok {
//	    // use tok in templates or return it from an endpoint
//	}
//
// For SPAs, expose a small endpoint that returns the current token:
//
//	r.Get("/csrf-token", func(w http.ResponseWriter, r *http.Request) {
//	    p.TokenHandler().ServeHTTP(w, r)
//	})
package csrfblock
