package csrfblock

import (
	"errors"
	"log/slog"
	"net/http"
	"net/textproto"
	"strconv"
)

// Defaults applied by New for zero-valued Config fields.
const (
	DefaultParameterName = "SEC"
	DefaultHeaderName    = "X-CSRF-Token"
	DefaultTokenLength   = 16
	DefaultSessionKey    = "csrfblock.token"
	DefaultMetaName      = "csrftoken"

	// MaxTokenLength is the longest supported token, bounded by the hex
	// digest the generator truncates.
	MaxTokenLength = 40
)

// ErrNoSessions is returned by New when no session provider is configured.
// The middleware cannot run without one; this is a deployment error, not
// something to handle per request.
var ErrNoSessions = errors.New("csrfblock: Config.Sessions is required")

type Config struct {
	// Token transport
	ParameterName string // form/query parameter carrying the token, e.g. "SEC"
	HeaderName    string // request header carrying the token, e.g. "X-CSRF-Token"

	// Token shape
	TokenLength int                // characters kept from the digest, 1..40
	TokenFunc   func(n int) string // token generator; replace for deterministic tests

	// Session binding
	SessionKey string                      // slot the token lives under
	Sessions   func(*http.Request) Session // required; binds a request to its session

	// Markup injection
	AddMeta  bool   // also inject a <meta> tag after <head>
	MetaName string // name attribute of the injected meta tag

	// Behavior
	OneTime bool         // consume the token on first successful validation
	Blocked http.Handler // invoked instead of the app on rejection
	Logger  *slog.Logger // optional; rejections and store failures are logged here
}

type Protector struct {
	cfg Config
}

// New validates cfg, fills in defaults and returns a ready Protector.
// The header name is canonicalized here once, never per request.
func New(cfg Config) (*Protector, error) {
	if cfg.Sessions == nil {
		return nil, ErrNoSessions
	}
	if cfg.ParameterName == "" {
		cfg.ParameterName = DefaultParameterName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}
	cfg.HeaderName = textproto.CanonicalMIMEHeaderKey(cfg.HeaderName)
	if cfg.TokenLength <= 0 {
		cfg.TokenLength = DefaultTokenLength
	}
	if cfg.TokenLength > MaxTokenLength {
		cfg.TokenLength = MaxTokenLength
	}
	if cfg.TokenFunc == nil {
		cfg.TokenFunc = GenerateToken
	}
	if cfg.SessionKey == "" {
		cfg.SessionKey = DefaultSessionKey
	}
	if cfg.MetaName == "" {
		cfg.MetaName = DefaultMetaName
	}
	if cfg.Blocked == nil {
		cfg.Blocked = http.HandlerFunc(defaultBlocked)
	}
	return &Protector{cfg: cfg}, nil
}

var blockedBody = []byte("CSRF detected")

func defaultBlocked(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Content-Length", strconv.Itoa(len(blockedBody)))
	w.WriteHeader(http.StatusForbidden)
	w.Write(blockedBody)
}
