package webserver

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// AuthMethod selects how the server challenges unauthenticated requests,
// per spec.md §4.3.
type AuthMethod int

const (
	Basic AuthMethod = iota
	Digest
)

const nonceStaleAfter = time.Hour

// DigestHA1 computes MD5(user:domain:password) hex-encoded, the HA1 value
// htdigest-format files store, per spec.md §4.7.
func DigestHA1(user, domain, password string) string {
	return md5Hex(user + ":" + domain + ":" + password)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// newNonce returns a hex-encoded Unix timestamp, the same representation
// check_nonce below expects.
func newNonce() string {
	return strconv.FormatInt(time.Now().Unix(), 16)
}

// nonceIsFresh reports whether nonce (hex Unix time) is within the last
// hour, matching the original's check_nonce staleness window.
func nonceIsFresh(nonce string) bool {
	val, err := strconv.ParseInt(nonce, 16, 64)
	if err != nil {
		return false
	}
	now := time.Now().Unix()
	return now >= val && now-val < int64(nonceStaleAfter.Seconds())
}

// SendAuthenticationRequest writes the 401 challenge for the configured
// auth method, per spec.md §4.3.
func SendAuthenticationRequest(w http.ResponseWriter, domain string, method AuthMethod) {
	if method == Basic {
		w.Header().Set("WWW-Authenticate", `Basic realm="`+domain+`"`)
	} else {
		w.Header().Set("WWW-Authenticate", `Digest qop="auth", realm="`+domain+`", nonce="`+newNonce()+`"`)
	}
	w.WriteHeader(http.StatusUnauthorized)
}

// CheckAuthentication resolves the UserGroup an incoming request is
// authenticated as, per spec.md §4.3/§4.7. It returns Anyone when there is
// no Authorization header, the header is malformed, or it fails to verify.
func CheckAuthentication(r *http.Request, domain string, users *UserStore) UserGroup {
	header := r.Header.Get("Authorization")
	if header == "" || users == nil {
		return Anyone
	}

	switch {
	case strings.HasPrefix(header, "Basic "):
		return checkBasicAuth(header[len("Basic "):], domain, users)
	case strings.HasPrefix(header, "Digest "):
		return checkDigestAuth(header[len("Digest "):], r, users)
	default:
		return Anyone
	}
}

func checkBasicAuth(encoded, domain string, users *UserStore) UserGroup {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Anyone
	}
	user, password, ok := strings.Cut(string(decoded), ":")
	if !ok || user == "" || password == "" {
		return Anyone
	}
	ha1, group, found := users.Lookup(user)
	if !found {
		return Anyone
	}
	if ha1 == DigestHA1(user, domain, password) {
		return group
	}
	return Anyone
}

func checkDigestAuth(params string, r *http.Request, users *UserStore) UserGroup {
	fields := parseDigestParams(params)
	user := fields["username"]
	cnonce := fields["cnonce"]
	response := fields["response"]
	uri := fields["uri"]
	qop := fields["qop"]
	nc := fields["nc"]
	nonce := fields["nonce"]

	if user == "" || cnonce == "" || response == "" || uri == "" || qop == "" || nc == "" || nonce == "" {
		return Anyone
	}
	if !nonceIsFresh(nonce) {
		return Anyone
	}

	ha1, group, found := users.Lookup(user)
	if !found {
		return Anyone
	}

	// HA2 = MD5(method:digestURI); try the full request-target first, then
	// the path-only variant for clients (e.g. .NET's HttpWebRequest) that
	// compute HA2 without the query string, per the original's dual retry.
	path := r.URL.EscapedPath()
	target := path
	if r.URL.RawQuery != "" {
		target = path + "?" + r.URL.RawQuery
	}
	expected1 := digestResponse(ha1, nonce, nc, cnonce, qop, md5Hex(r.Method+":"+target))

	if response == expected1 {
		return group
	}

	if target != path {
		expected2 := digestResponse(ha1, nonce, nc, cnonce, qop, md5Hex(r.Method+":"+path))
		if response == expected2 {
			return group
		}
	}
	return Anyone
}

// digestResponse computes MD5(HA1:nonce:nc:cnonce:qop:HA2).
func digestResponse(ha1, nonce, nc, cnonce, qop, ha2 string) string {
	return md5Hex(ha1 + ":" + nonce + ":" + nc + ":" + cnonce + ":" + qop + ":" + ha2)
}

// parseDigestParams parses the comma-separated key=value (optionally
// quoted) list of a Digest Authorization header.
func parseDigestParams(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range splitDigestParams(s) {
		part = strings.TrimSpace(part)
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		v = strings.Trim(v, `"`)
		out[strings.TrimSpace(k)] = v
	}
	return out
}

// splitDigestParams splits on commas that are not inside a quoted value,
// since a digest-uri param can itself contain a comma-separated query
// string.
func splitDigestParams(s string) []string {
	var parts []string
	inQuotes := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
