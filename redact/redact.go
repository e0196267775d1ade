// Package redact masks credentials before they reach log files.
package redact

import (
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// Placeholder replaces every redacted span.
const Placeholder = "REDACTED"

// secretPattern matches high-entropy strings that may be secrets.
var secretPattern = regexp.MustCompile(`[A-Za-z0-9/+_=-]{10,}`)

// entropyThreshold is the minimum Shannon entropy for a string to be considered
// a secret. Generated hex passwords sit just under 4.0, so env values are
// additionally matched by key name in Env.
const entropyThreshold = 4.5

// secretKeyMarkers flag env keys whose value is always masked.
var secretKeyMarkers = []string{"PASS", "SECRET", "TOKEN", "KEY"}

// getDetector loads the default gitleaks rules once. A nil result leaves
// only the entropy check.
var getDetector = sync.OnceValue(func() *detect.Detector {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil
	}
	return d
})

// span is a half-open byte range of s to mask.
type span struct{ from, to int }

// String replaces secrets in s with Placeholder. A token is masked when its
// entropy is high or a gitleaks rule reports it.
func String(s string) string {
	spans := entropySpans(s)
	spans = append(spans, detectorSpans(s)...)
	if len(spans) == 0 {
		return s
	}
	return mask(s, spans)
}

func entropySpans(s string) []span {
	var spans []span
	for _, loc := range secretPattern.FindAllStringIndex(s, -1) {
		if shannonEntropy(s[loc[0]:loc[1]]) > entropyThreshold {
			spans = append(spans, span{loc[0], loc[1]})
		}
	}
	return spans
}

// detectorSpans locates every occurrence of each gitleaks finding.
func detectorSpans(s string) []span {
	d := getDetector()
	if d == nil {
		return nil
	}
	var spans []span
	for _, f := range d.DetectString(s) {
		if f.Secret == "" {
			continue
		}
		for at := 0; ; {
			i := strings.Index(s[at:], f.Secret)
			if i < 0 {
				break
			}
			from := at + i
			at = from + len(f.Secret)
			spans = append(spans, span{from, at})
		}
	}
	return spans
}

// mask writes s with overlapping spans collapsed into one Placeholder each.
func mask(s string, spans []span) string {
	sort.Slice(spans, func(i, j int) bool { return spans[i].from < spans[j].from })

	var b strings.Builder
	pos := 0
	for i := 0; i < len(spans); {
		cur := spans[i]
		for i++; i < len(spans) && spans[i].from <= cur.to; i++ {
			cur.to = max(cur.to, spans[i].to)
		}
		b.WriteString(s[pos:cur.from])
		b.WriteString(Placeholder)
		pos = cur.to
	}
	b.WriteString(s[pos:])
	return b.String()
}

// URL masks the password of a connection URL such as
// postgresql://user:pass@db:5432/name. Anything that does not parse as a URL
// with credentials goes through String.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return String(raw)
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), Placeholder)
	return u.String()
}

// Env returns a copy of vars that is safe to log: values of secret-looking
// keys are replaced, URLs lose their password, everything else goes
// through String.
func Env(vars map[string]string) map[string]string {
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		switch {
		case v == "":
			out[k] = v
		case isSecretKey(k):
			out[k] = Placeholder
		case strings.Contains(v, "://"):
			out[k] = URL(v)
		default:
			out[k] = String(v)
		}
	}
	return out
}

func isSecretKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, m := range secretKeyMarkers {
		if strings.Contains(upper, m) {
			return true
		}
	}
	return false
}

func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	var counts [256]int
	for i := range len(s) {
		counts[s[i]]++
	}
	n := float64(len(s))
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h
}
