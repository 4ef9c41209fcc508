package sanitize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// percentOctetRe matches URL-encoded octets, which have no business in a text setting.
var percentOctetRe = regexp.MustCompile(`%[a-fA-F0-9]{2}`)

// TextField cleans a single-line text setting submitted from a form: invalid
// UTF-8, control characters, markup and percent-encoded octets are removed,
// and all runs of whitespace (including line breaks and tabs) collapse to a
// single space. The result is trimmed.
func TextField(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = StripControlChars(s)
	s = StripTags(s)
	s = percentOctetRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// StripTags removes all HTML markup from s. Text is kept as written, so
// entities stay encoded and stripping twice changes nothing. Content of script
// and style elements is dropped entirely.
func StripTags(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}

	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	b.Grow(len(s))
	rawDepth := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF on well-formed and malformed input alike; the tokenizer
			// never fails on bad markup, it just stops producing tokens.
			return b.String()
		case html.TextToken:
			if rawDepth == 0 {
				b.Write(z.Raw())
			}
		case html.StartTagToken:
			if name, _ := z.TagName(); isRawTextElement(name) {
				rawDepth++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isRawTextElement(name) && rawDepth > 0 {
				rawDepth--
			}
		}
	}
}

func isRawTextElement(name []byte) bool {
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}

// StripControlChars removes ANSI escape sequences and non-printable control
// characters (except newline and tab) from s.
func StripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		// ESC [ ... final byte (0x40-0x7E). Scan is capped at 64 bytes so a
		// crafted sequence that never terminates cannot swallow the input.
		if i+1 < len(s) && s[i] == '\x1b' && s[i+1] == '[' {
			j := i + 2
			maxJ := j + 64
			if maxJ > len(s) {
				maxJ = len(s)
			}
			for j < maxJ && (s[j] < 0x40 || s[j] > 0x7E) {
				j++
			}
			if j < len(s) && s[j] >= 0x40 && s[j] <= 0x7E {
				j++
			}
			i = j
			continue
		}
		if s[i] == '\x1b' {
			i += 2
			if i > len(s) {
				i = len(s)
			}
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == '\n' || r == '\t' || (r >= ' ' && !unicode.IsControl(r)) {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}

// TrimToRunes trims surrounding whitespace and limits result to maxRunes.
func TrimToRunes(value string, maxRunes int) string {
	value = strings.TrimSpace(value)
	if value == "" || maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(value) <= maxRunes {
		return value
	}
	return string([]rune(value)[:maxRunes])
}
