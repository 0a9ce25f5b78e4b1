package csrfblock

import "fmt"

// Session is the external session object the token lives in. Implementations
// own persistence, locking and expiry; the middleware only reads and writes
// a single slot. Get reports absent with ok=false, never an error.
type Session interface {
	Get(key string) (value string, ok bool)
	Set(key, value string) error
	Delete(key string) error
}

// tokenStore pins a Session to the configured slot key.
type tokenStore struct {
	sess Session
	key  string
}

func (s tokenStore) get() (string, bool) {
	return s.sess.Get(s.key)
}

func (s tokenStore) set(tok string) error {
	if err := s.sess.Set(s.key, tok); err != nil {
		return fmt.Errorf("csrfblock: store token: %w", err)
	}
	return nil
}

func (s tokenStore) clear() error {
	if err := s.sess.Delete(s.key); err != nil {
		return fmt.Errorf("csrfblock: clear token: %w", err)
	}
	return nil
}

// sessionToken hands out exactly one token value per response. The first
// caller either reads the existing session token or generates and stores a
// new one; every later caller within the same response sees that value, so
// all injected fields on a page carry the identical token.
type sessionToken struct {
	store tokenStore
	fresh func() string

	done bool
	tok  string
	err  error
}

func (st *sessionToken) value() (string, error) {
	if st.done {
		return st.tok, st.err
	}
	st.done = true
	if tok, ok := st.store.get(); ok && tok != "" {
		st.tok = tok
		return st.tok, nil
	}
	tok := st.fresh()
	if err := st.store.set(tok); err != nil {
		st.err = err
		return "", st.err
	}
	st.tok = tok
	return st.tok, nil
}
