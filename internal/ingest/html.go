package ingest

import (
	"fmt"
	"regexp"
	"strings"
)

// No example repo in the pack imports an HTML/EPUB parsing library (the
// teacher's internal/epub only writes EPUB, it never reads one), so
// chapter bodies are reduced to plain text with a small regexp-based
// stripper rather than a DOM parser: XHTML chapter content inside an
// EPUB is well-formed enough that tag removal plus entity decoding is
// sufficient, and FB2's <p> paragraphs never carry markup at all.
var (
	scriptOrStyleTag = regexp.MustCompile(`(?is)<(script|style)\b[^>]*>.*?</(script|style)>`)
	htmlTag          = regexp.MustCompile(`(?s)<[^>]+>`)
	htmlTitleTag     = regexp.MustCompile(`(?is)<(h1|h2|title)\b[^>]*>(.*?)</(h1|h2|title)>`)
	whitespaceRun    = regexp.MustCompile(`[ \t\f\v]+`)
	blankLineRun     = regexp.MustCompile(`\n{3,}`)
)

var htmlEntities = map[string]string{
	"&amp;":  "&",
	"&lt;":   "<",
	"&gt;":   ">",
	"&quot;": `"`,
	"&apos;": "'",
	"&nbsp;": " ",
	"&mdash;": "—",
	"&ndash;": "–",
	"&hellip;": "…",
}

func decodeHTMLEntities(s string) string {
	for entity, repl := range htmlEntities {
		s = strings.ReplaceAll(s, entity, repl)
	}
	return s
}

// stripHTML reduces an XHTML chapter document to plain text: block-level
// boundaries become newlines, tags are removed, and common entities are
// decoded.
func stripHTML(doc string) string {
	doc = scriptOrStyleTag.ReplaceAllString(doc, "")

	blockBoundary := regexp.MustCompile(`(?i)</(p|div|br|h[1-6]|li)\s*>`)
	doc = blockBoundary.ReplaceAllString(doc, "\n")

	doc = htmlTag.ReplaceAllString(doc, "")
	doc = decodeHTMLEntities(doc)

	lines := strings.Split(doc, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(whitespaceRun.ReplaceAllString(line, " "))
	}
	text := strings.Join(lines, "\n")
	text = blankLineRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// chapterTitleFromHTML extracts a heading or <title> from an XHTML
// document, falling back to a positional "Chapter N" label.
func chapterTitleFromHTML(doc string, order int) string {
	if m := htmlTitleTag.FindStringSubmatch(doc); m != nil {
		title := strings.TrimSpace(stripHTML(decodeHTMLEntities(m[2])))
		if title != "" {
			return title
		}
	}
	return fmt.Sprintf("Chapter %d", order)
}
