package csrfblock

import (
	"bytes"
	"net/url"
	"strings"
)

// Attr is one attribute of a scanned start tag, in document order.
type Attr struct {
	Name  string
	Value string
}

// Tag is a completed start tag as seen by the scanner.
type Tag struct {
	Name  string
	Attrs []Attr
}

// Lookup returns the value of the named attribute, matching the name
// case-insensitively. The first occurrence wins.
func (t *Tag) Lookup(name string) (string, bool) {
	for i := range t.Attrs {
		if strings.EqualFold(t.Attrs[i].Name, name) {
			return t.Attrs[i].Value, true
		}
	}
	return "", false
}

// Injector rewrites one HTML response body, inserting a hidden token field
// after eligible <form> tags and, optionally, a meta tag after <head>.
// Feed it body chunks as they arrive and flush it with Finish. The only
// state carried across chunks is one partially-seen tag, so the first
// output byte never waits on the rest of the document. An Injector belongs
// to a single response and is not safe for concurrent use.
type Injector struct {
	param    string
	addMeta  bool
	metaName string
	host     string // effective request host for the same-origin guard
	token    func() (string, error)
	err      error

	inTag bool
	tag   []byte // partial tag, including the leading '<'
	quote byte   // active quote character inside the tag, 0 outside quotes
}

func newInjector(cfg *Config, host string, token func() (string, error)) *Injector {
	return &Injector{
		param:    cfg.ParameterName,
		addMeta:  cfg.AddMeta,
		metaName: cfg.MetaName,
		host:     host,
		token:    token,
	}
}

// Err reports a session-store failure encountered while fetching the token.
// Markup emitted so far is still valid; the failed tag was passed through
// without injection.
func (in *Injector) Err() error {
	return in.err
}

// Feed consumes the next chunk and returns the bytes ready to be sent.
// Text runs and completed tags are emitted immediately; only an
// unterminated tag is held back until more input (or Finish) arrives.
func (in *Injector) Feed(chunk []byte) []byte {
	out := make([]byte, 0, len(chunk))
	for len(chunk) > 0 {
		if !in.inTag {
			i := bytes.IndexByte(chunk, '<')
			if i < 0 {
				out = append(out, chunk...)
				break
			}
			out = append(out, chunk[:i]...)
			in.inTag = true
			in.quote = 0
			in.tag = append(in.tag[:0], '<')
			chunk = chunk[i+1:]
			continue
		}

		// Inside a tag: scan for the closing '>', honoring quoted
		// attribute values so `<a href="/x?a>b">` stays one tag.
		end := -1
		for i := 0; i < len(chunk) && end < 0; i++ {
			c := chunk[i]
			if in.quote != 0 {
				if c == in.quote {
					in.quote = 0
				}
				continue
			}
			switch c {
			case '"', '\'':
				in.quote = c
			case '>':
				end = i
			}
		}
		if end < 0 {
			in.tag = append(in.tag, chunk...)
			break
		}
		in.tag = append(in.tag, chunk[:end+1]...)
		chunk = chunk[end+1:]
		in.inTag = false
		out = in.emitTag(out)
	}
	return out
}

// Finish flushes whatever is still buffered. An unterminated trailing tag
// comes out as literal text, unmodified, rather than being dropped.
func (in *Injector) Finish() []byte {
	if !in.inTag || len(in.tag) == 0 {
		return nil
	}
	out := in.tag
	in.tag = nil
	in.inTag = false
	return out
}

// emitTag appends the completed tag to out, followed by injected markup
// when the tag qualifies.
func (in *Injector) emitTag(out []byte) []byte {
	out = append(out, in.tag...)
	tag, ok := parseStartTag(in.tag)
	if !ok {
		return out
	}
	switch {
	case strings.EqualFold(tag.Name, "form"):
		method, _ := tag.Lookup("method")
		if !strings.EqualFold(strings.TrimSpace(method), "post") {
			return out
		}
		if action, ok := tag.Lookup("action"); ok && !sameOriginAction(action, in.host) {
			return out
		}
		tok, err := in.token()
		if err != nil {
			in.err = err
			return out
		}
		out = append(out, `<input type="hidden" name="`...)
		out = append(out, escapeAttr(in.param)...)
		out = append(out, `" value="`...)
		out = append(out, tok...)
		out = append(out, `" />`...)
	case in.addMeta && strings.EqualFold(tag.Name, "head"):
		tok, err := in.token()
		if err != nil {
			in.err = err
			return out
		}
		out = append(out, `<meta name="`...)
		out = append(out, escapeAttr(in.metaName)...)
		out = append(out, `" content="`...)
		out = append(out, tok...)
		out = append(out, `"/>`...)
	}
	return out
}

// escapeAttr keeps configured names safe inside a double-quoted attribute.
func escapeAttr(s string) string {
	if !strings.ContainsAny(s, `"&<>`) {
		return s
	}
	r := strings.NewReplacer("&", "&amp;", `"`, "&quot;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

// sameOriginAction reports whether a form action may receive the token.
// Relative actions always may; absolute http(s) and protocol-relative
// actions only when their host matches the request host byte-for-byte
// (case-insensitive). Unparseable actions count as relative: a form that
// cannot submit anywhere leaks nothing.
func sameOriginAction(action, host string) bool {
	action = strings.TrimSpace(action)
	if action == "" {
		return true
	}
	u, err := url.Parse(action)
	if err != nil || u.Host == "" {
		return true
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https":
		return strings.EqualFold(u.Host, host)
	}
	return true
}

// parseStartTag decodes a raw "<...>" capture into a name and ordered
// attribute list. End tags, comments, declarations and processing
// instructions report ok=false; they are never injection targets.
func parseStartTag(raw []byte) (Tag, bool) {
	if len(raw) < 3 || raw[0] != '<' || raw[len(raw)-1] != '>' {
		return Tag{}, false
	}
	s := raw[1 : len(raw)-1]
	switch s[0] {
	case '/', '!', '?':
		return Tag{}, false
	}

	i := 0
	for i < len(s) && !isSpace(s[i]) && s[i] != '/' {
		i++
	}
	t := Tag{Name: string(s[:i])}
	if t.Name == "" {
		return Tag{}, false
	}
	s = s[i:]

	for len(s) > 0 {
		if isSpace(s[0]) || s[0] == '/' || s[0] == '=' {
			s = s[1:]
			continue
		}

		j := 0
		for j < len(s) && !isSpace(s[j]) && s[j] != '=' && s[j] != '/' {
			j++
		}
		name := string(s[:j])
		s = skipSpace(s[j:])
		if len(s) == 0 || s[0] != '=' {
			t.Attrs = append(t.Attrs, Attr{Name: name})
			continue
		}
		s = skipSpace(s[1:])

		var val string
		if len(s) > 0 && (s[0] == '"' || s[0] == '\'') {
			q := s[0]
			s = s[1:]
			if k := bytes.IndexByte(s, q); k >= 0 {
				val, s = string(s[:k]), s[k+1:]
			} else {
				val, s = string(s), nil
			}
		} else {
			k := 0
			for k < len(s) && !isSpace(s[k]) {
				k++
			}
			val, s = string(s[:k]), s[k:]
			// a trailing self-closing slash is tag syntax, not value
			if len(s) == 0 && strings.HasSuffix(val, "/") {
				val = val[:len(val)-1]
			}
		}
		t.Attrs = append(t.Attrs, Attr{Name: name, Value: val})
	}
	return t, true
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

func skipSpace(s []byte) []byte {
	for len(s) > 0 && isSpace(s[0]) {
		s = s[1:]
	}
	return s
}
