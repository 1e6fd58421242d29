// Package redact scrubs text before it is logged or emitted: inline base64
// payloads collapse to a size marker, credentials are masked and URLs lose
// everything but scheme, host and last path element.
package redact

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

const mask = "[REDACTED]"

var dataURIRe = regexp.MustCompile(`data:([A-Za-z0-9.+\-]+/[A-Za-z0-9.+\-]+);base64,([A-Za-z0-9+/]+={0,2})`)

// secretRules run in order; each keeps group 1 and masks the rest of the match.
var secretRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(authorization\s*[:=]\s*(?:bearer|basic)\s+)[A-Za-z0-9._\-+/=]+`),
	regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._\-+/=]+`),
	regexp.MustCompile(`(?i)(x-api-key\s*[:=]\s*|x-webhook-secret\s*[:=]\s*)[A-Za-z0-9._\-+/=]+`),
	regexp.MustCompile(`(?i)(\b(?:api[_-]?key|key|token|secret|password)\s*[:=]\s*)[A-Za-z0-9._\-+/=]{6,}`),
}

var urlRe = regexp.MustCompile(`https?://[^\s"'<>]+`)

// String redacts payloads, secrets and URLs from free-form text.
func String(s string) string {
	if s == "" {
		return s
	}
	out := DataURIs(s)
	for _, re := range secretRules {
		out = re.ReplaceAllString(out, "${1}"+mask)
	}
	out = urlRe.ReplaceAllStringFunc(out, URL)
	for strings.Contains(out, mask+mask) {
		out = strings.ReplaceAll(out, mask+mask, mask)
	}
	return out
}

// DataURIs replaces every base64 data URI with "data:<mime>;base64,[N bytes]",
// N being the decoded size.
func DataURIs(s string) string {
	if !strings.Contains(s, ";base64,") {
		return s
	}
	return dataURIRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := dataURIRe.FindStringSubmatch(m)
		if len(sub) < 3 {
			return m
		}
		n := base64.StdEncoding.DecodedLen(len(sub[2])) - strings.Count(sub[2], "=")
		return fmt.Sprintf("data:%s;base64,[%d bytes]", sub[1], n)
	})
}

// URL reduces a URL to scheme, host and the last path element. Query,
// fragment and userinfo are dropped.
func URL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "[REDACTED_URL]"
	}
	base := path.Base(strings.TrimSuffix(u.Path, "/"))
	if strings.HasSuffix(u.Path, "/") || base == "." || base == "/" {
		return u.Scheme + "://" + u.Host + "/[REDACTED_PATH]"
	}
	return u.Scheme + "://" + u.Host + "/" + base
}

// Any formats the value with %+v and redacts it.
func Any(v any) string {
	return String(fmt.Sprintf("%+v", v))
}
