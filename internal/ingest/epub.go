package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// epubContainer models the fixed META-INF/container.xml pointer to the
// package document (OPF).
type epubContainer struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath string `xml:"full-path,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

// epubPackage models the OPF package document: metadata, the manifest
// (id -> file), and the spine (reading order of manifest ids). Struct
// tags omit namespaces so they match both the unprefixed opf: elements
// and dc:-prefixed metadata, since encoding/xml matches on local name
// when a tag carries none.
type epubPackage struct {
	Metadata struct {
		Title   string `xml:"title"`
		Creator string `xml:"creator"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID        string `xml:"id,attr"`
			Href      string `xml:"href,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef  string `xml:"idref,attr"`
			Linear string `xml:"linear,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// parseEPUB reads an EPUB (a zip container) and returns the book title,
// author, and its chapters in spine reading order. Non-linear spine
// entries (e.g. a cover or colophon page) are skipped.
func parseEPUB(data []byte) (title, author string, chapters []chapterDraft, err error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", "", nil, fmt.Errorf("open epub zip: %w", err)
	}

	containerData, err := readZipFile(zr, "META-INF/container.xml")
	if err != nil {
		return "", "", nil, fmt.Errorf("read container.xml: %w", err)
	}

	var container epubContainer
	if err := xml.Unmarshal(containerData, &container); err != nil {
		return "", "", nil, fmt.Errorf("parse container.xml: %w", err)
	}
	if len(container.Rootfiles.Rootfile) == 0 {
		return "", "", nil, fmt.Errorf("container.xml: no rootfile entry")
	}
	opfPath := container.Rootfiles.Rootfile[0].FullPath

	opfData, err := readZipFile(zr, opfPath)
	if err != nil {
		return "", "", nil, fmt.Errorf("read package document %s: %w", opfPath, err)
	}

	var pkg epubPackage
	if err := xml.Unmarshal(opfData, &pkg); err != nil {
		return "", "", nil, fmt.Errorf("parse package document: %w", err)
	}

	hrefByID := make(map[string]string, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		hrefByID[item.ID] = item.Href
	}

	baseDir := path.Dir(opfPath)
	order := 0
	for _, ref := range pkg.Spine.ItemRefs {
		if ref.Linear == "no" {
			continue
		}
		href, ok := hrefByID[ref.IDRef]
		if !ok {
			continue
		}
		docPath := path.Join(baseDir, href)
		docData, err := readZipFile(zr, docPath)
		if err != nil {
			continue // a dangling spine reference does not fail the whole book
		}

		order++
		text := stripHTML(string(docData))
		if strings.TrimSpace(text) == "" {
			continue
		}
		chapters = append(chapters, chapterDraft{
			Title:   chapterTitleFromHTML(string(docData), order),
			Content: text,
			Order:   order,
		})
	}

	return strings.TrimSpace(pkg.Metadata.Title), strings.TrimSpace(pkg.Metadata.Creator), chapters, nil
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
