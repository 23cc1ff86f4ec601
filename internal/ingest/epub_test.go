package ingest

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestEPUB(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	files := map[string]string{
		"META-INF/container.xml": `<?xml version="1.0"?>
<container>
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`,
		"OEBPS/content.opf": `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>The Quiet Valley</dc:title>
    <dc:creator>A. Writer</dc:creator>
  </metadata>
  <manifest>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="ch2.xhtml" media-type="application/xhtml+xml"/>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
    <itemref idref="ch2"/>
    <itemref idref="nav" linear="no"/>
  </spine>
</package>`,
		"OEBPS/ch1.xhtml": `<html><body><h1>Chapter One</h1><p>The old tower stood at the edge of the valley.</p><p>Rain fell for hours.</p></body></html>`,
		"OEBPS/ch2.xhtml": `<html><body><h1>Chapter Two</h1><p>She walked along the winding river path at dusk.</p></body></html>`,
		"OEBPS/nav.xhtml": `<html><body><nav><p>Table of Contents</p></nav></body></html>`,
	}

	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParseEPUB_ExtractsChaptersInSpineOrder(t *testing.T) {
	data := buildTestEPUB(t)
	title, author, chapters, err := parseEPUB(data)
	require.NoError(t, err)

	assert.Equal(t, "The Quiet Valley", title)
	assert.Equal(t, "A. Writer", author)
	require.Len(t, chapters, 2)
	assert.Equal(t, "Chapter One", chapters[0].Title)
	assert.Contains(t, chapters[0].Content, "old tower stood at the edge")
	assert.Equal(t, "Chapter Two", chapters[1].Title)
	assert.Equal(t, 2, chapters[1].Order)
}

func TestParseEPUB_SkipsNonLinearSpineEntries(t *testing.T) {
	data := buildTestEPUB(t)
	_, _, chapters, err := parseEPUB(data)
	require.NoError(t, err)
	for _, c := range chapters {
		assert.NotContains(t, c.Content, "Table of Contents")
	}
}

func TestParseEPUB_MissingContainerErrors(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	require.NoError(t, zw.Close())

	_, _, _, err := parseEPUB(buf.Bytes())
	assert.Error(t, err)
}
