package textfilter

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/parley/pkg/chat"
)

// replacements maps words filtered at PG13 and below to milder ones
var replacements = map[string]string{
	"fuck":      "fudge",
	"shit":      "shoot",
	"damn":      "dang",
	"hell":      "heck",
	"ass":       "rear",
	"bitch":     "wretch",
	"bastard":   "wretch",
	"crap":      "rot",
	"piss":      "spit",
	"goddamn":   "gods-cursed",
	"asshole":   "lout",
	"bullshit":  "nonsense",
	"horseshit": "nonsense",
	"prick":     "lout",
}

var (
	stageDirection = regexp.MustCompile(`\*[^*]*\*|\([^)]*\)`)
	whitespace     = regexp.MustCompile(`\s+`)
)

// Filter tidies LLM-phrased dialogue before it reaches a listener: it drops
// speaker prefixes, wrapping quotes and stage directions, and softens
// profanity when the content rating asks for it.
type Filter struct {
	soften  bool
	regexes map[string]*regexp.Regexp
}

// New builds a filter for a content rating such as "PG13" or "R"
func New(rating string) *Filter {
	f := &Filter{
		soften:  ShouldFilterContent(rating),
		regexes: make(map[string]*regexp.Regexp, len(replacements)),
	}
	for word := range replacements {
		f.regexes[word] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	}
	return f
}

// Clean returns the speakable form of phrased text
func (f *Filter) Clean(text string) string {
	out := strings.TrimSpace(text)
	out = chat.StripSpeaker(out)
	out = strings.Trim(out, "\"“”")
	out = stageDirection.ReplaceAllString(out, "")
	out = whitespace.ReplaceAllString(out, " ")
	out = strings.TrimSpace(out)
	if f.soften {
		out = f.Soften(out)
	}
	return out
}

// Soften replaces profanity, keeping the case pattern of each match
func (f *Filter) Soften(text string) string {
	result := text
	for word, re := range f.regexes {
		replacement := replacements[word]
		result = re.ReplaceAllStringFunc(result, func(match string) string {
			return preserveCase(match, replacement)
		})
	}
	return result
}

// ContainsProfanity checks if the text contains any filtered word
func (f *Filter) ContainsProfanity(text string) bool {
	for _, re := range f.regexes {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// preserveCase applies the case pattern of the original word to the replacement
func preserveCase(original, replacement string) string {
	if len(original) == 0 {
		return replacement
	}
	if strings.ToUpper(original) == original {
		return strings.ToUpper(replacement)
	}
	if strings.ToLower(original) == original {
		return strings.ToLower(replacement)
	}

	titleCaser := cases.Title(language.English)
	if titleCaser.String(strings.ToLower(original)) == original {
		return titleCaser.String(replacement)
	}

	result := make([]rune, 0, len(replacement))
	originalRunes := []rune(original)
	for i, r := range replacement {
		if i < len(originalRunes) && unicode.IsUpper(originalRunes[i]) {
			result = append(result, unicode.ToUpper(r))
		} else {
			result = append(result, unicode.ToLower(r))
		}
	}
	return string(result)
}

// ShouldFilterContent reports whether a rating calls for softened language
func ShouldFilterContent(rating string) bool {
	rating = strings.ToUpper(strings.TrimSpace(rating))
	switch rating {
	case "G", "PG", "PG13", "PG-13":
		return true
	default:
		return false
	}
}
