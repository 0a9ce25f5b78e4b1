package csrfblock

import "context"

type ctxKey string

const tokenKey ctxKey = "csrfblock_token_ctx"

// contextWithToken returns a derived context carrying the per-response
// token source.
//
// Params:
// - ctx: base context to attach the source to.
// - st: lazy token source owned by the current response.
//
// Returns:
// - a new context containing the source.
func contextWithToken(ctx context.Context, st *sessionToken) context.Context {
	return context.WithValue(ctx, tokenKey, st)
}

// TokenFromContext returns the session token for the current request,
// generating and storing one if the session has none yet. It is the same
// value the injector writes into forms on this response.
//
// Params:
// - ctx: context of a request passing through Protect.
//
// Returns:
// - token (string) and a boolean that is false outside Protect or when the
//   session store failed.
func TokenFromContext(ctx context.Context) (string, bool) {
	st, ok := ctx.Value(tokenKey).(*sessionToken)
	if !ok {
		return "", false
	}
	tok, err := st.value()
	if err != nil {
		return "", false
	}
	return tok, true
}
