// Package parser reads essay Markdown: optional YAML front matter, node
// references written as [[node-id]], and a plain-text excerpt for search.
package parser

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	mapset "github.com/deckarep/golang-set/v2"
	"gopkg.in/yaml.v3"
)

const excerptLen = 200

var (
	refRe      = regexp.MustCompile(`\[\[(.*?)\]\]`)
	nodeIDRe   = regexp.MustCompile(`^[a-z0-9-]+$`)
	mdLinkRe   = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	mdMarkupRe = regexp.MustCompile("[*_`>#~]+")
	spaceRe    = regexp.MustCompile(`\s+`)
)

// Essay is the parsed form of an essay file.
type Essay struct {
	FrontMatter map[string]any
	Body        string
	Title       string
	// References are the node ids linked from the body, in first-seen order.
	References []string
	Excerpt    string
	Words      int
}

// Parse splits front matter from the body and extracts references, title and excerpt.
func Parse(data []byte) *Essay {
	fm, body := splitFrontMatter(data)
	return &Essay{
		FrontMatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body),
		References:  extractReferences(body),
		Excerpt:     excerpt(body, excerptLen),
		Words:       len(strings.Fields(body)),
	}
}

// splitFrontMatter separates a leading YAML block between --- lines from
// the body. Missing or invalid front matter leaves the whole input as body.
func splitFrontMatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	var fm map[string]any
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, string(data)
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return fm, body
}

// extractReferences returns the distinct [[target]] ids that look like node
// ids. [[target|label]] yields target.
func extractReferences(body string) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	var out []string
	for _, m := range refRe.FindAllStringSubmatch(body, -1) {
		target, _, _ := strings.Cut(m[1], "|")
		target = strings.TrimSpace(target)
		if !nodeIDRe.MatchString(target) {
			continue
		}
		if seen.Add(target) {
			out = append(out, target)
		}
	}
	return out
}

// deriveTitle prefers the front matter title, then the first H1 heading.
func deriveTitle(fm map[string]any, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// excerpt strips common Markdown markup and returns at most n runes of text.
func excerpt(body string, n int) string {
	text := refRe.ReplaceAllStringFunc(body, func(s string) string {
		inner := strings.TrimSuffix(strings.TrimPrefix(s, "[["), "]]")
		if _, label, ok := strings.Cut(inner, "|"); ok {
			return label
		}
		return inner
	})
	text = mdLinkRe.ReplaceAllString(text, "$1")
	text = mdMarkupRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))

	if utf8.RuneCountInString(text) <= n {
		return text
	}
	r := []rune(text)
	return strings.TrimSpace(string(r[:n])) + "…"
}
