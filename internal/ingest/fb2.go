package ingest

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// fb2Document models the subset of the FictionBook 2 schema this parser
// needs: title-info metadata and a body tree of nested sections.
type fb2Document struct {
	Description struct {
		TitleInfo struct {
			BookTitle string    `xml:"book-title"`
			Author    fb2Author `xml:"author"`
		} `xml:"title-info"`
	} `xml:"description"`
	Bodies []fb2Section `xml:"body"`
}

type fb2Author struct {
	FirstName string `xml:"first-name"`
	LastName  string `xml:"last-name"`
}

// fb2Section is recursive: FB2 nests sections arbitrarily deep, with
// leaf sections carrying <p> paragraphs and a <title>.
type fb2Section struct {
	Title struct {
		Paragraphs []string `xml:"p"`
	} `xml:"title"`
	Paragraphs []string     `xml:"p"`
	Sections   []fb2Section `xml:"section"`
}

// isLeaf reports whether this section has no nested subsections, i.e. it
// is itself a chapter rather than a container of chapters.
func (s fb2Section) isLeaf() bool {
	return len(s.Sections) == 0
}

func (s fb2Section) titleText() string {
	return strings.TrimSpace(strings.Join(s.Title.Paragraphs, " "))
}

func (s fb2Section) bodyText() string {
	return strings.TrimSpace(strings.Join(s.Paragraphs, "\n\n"))
}

// parseFB2 reads an FB2 document (a single well-formed XML file, unlike
// EPUB's zip-of-XHTML) and returns its title, author, and chapters.
// Top-level sections with no nested subsections become chapters
// directly; a section that itself contains subsections is a grouping
// node (e.g. a "Part") and is flattened, recursing into its children.
func parseFB2(data []byte) (title, author string, chapters []chapterDraft, err error) {
	var doc fb2Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", "", nil, fmt.Errorf("parse fb2: %w", err)
	}

	ti := doc.Description.TitleInfo
	author = strings.TrimSpace(ti.Author.FirstName + " " + ti.Author.LastName)

	order := 0
	for _, body := range doc.Bodies {
		for _, section := range body.Sections {
			order = flattenFB2Section(section, order, &chapters)
		}
	}

	return strings.TrimSpace(ti.BookTitle), author, chapters, nil
}

func flattenFB2Section(s fb2Section, order int, out *[]chapterDraft) int {
	if s.isLeaf() {
		text := s.bodyText()
		if text == "" {
			return order
		}
		order++
		title := s.titleText()
		if title == "" {
			title = fmt.Sprintf("Chapter %d", order)
		}
		*out = append(*out, chapterDraft{Title: title, Content: text, Order: order})
		return order
	}
	for _, child := range s.Sections {
		order = flattenFB2Section(child, order, out)
	}
	return order
}
