package textutil

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

func policy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// CleanText strips markup, applies NFKC normalisation and collapses runs of whitespace.
// Invalid UTF-8 sequences are dropped.
func CleanText(value string) string {
	if value == "" {
		return ""
	}
	if !utf8.ValidString(value) {
		value = strings.ToValidUTF8(value, "")
	}
	stripped := policy().Sanitize(value)
	// StrictPolicy escapes entities; user-facing fields store the plain characters.
	stripped = unescapeBasicEntities(stripped)
	normalized := norm.NFKC.String(stripped)
	return strings.Join(strings.Fields(normalized), " ")
}

// CanonicalRegion maps ISO 3166 alpha-2, alpha-3 or numeric codes onto the alpha-2 form.
// The boolean is false when the value is not a recognised region code.
func CanonicalRegion(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) < 2 || len(trimmed) > 3 {
		return "", false
	}
	region, err := language.ParseRegion(trimmed)
	if err != nil || !region.IsCountry() {
		return "", false
	}
	return region.String(), true
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&#39;", "'",
	"&#34;", `"`,
	"&quot;", `"`,
	"&lt;", "<",
	"&gt;", ">",
)

func unescapeBasicEntities(value string) string {
	return entityReplacer.Replace(value)
}
