// Package epubtest builds small in-memory ePUB files for tests.
package epubtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"strings"
)

// Chapter is one spine document of a generated book
type Chapter struct {
	Title      string
	Paragraphs []string
}

// Book describes the ePUB to generate
type Book struct {
	Title    string // empty leaves dc:title out
	Author   string // empty leaves dc:creator out
	Chapters []Chapter
	Cover    []byte // PNG bytes; nil for no cover
	NCX      bool   // ePUB 2 NCX instead of an ePUB 3 nav document
}

// Build renders the book as ePUB bytes. It panics on writer errors, which only happen on a broken zip writer.
func Build(b Book) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(name, content string) {
		w, err := zw.Create(name)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			panic(err)
		}
	}

	write("mimetype", "application/epub+zip")
	write("META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`)

	var manifest, spine, meta strings.Builder
	for i, ch := range b.Chapters {
		id := fmt.Sprintf("ch%d", i+1)
		fmt.Fprintf(&manifest, `    <item id="%s" href="text/%s.xhtml" media-type="application/xhtml+xml"/>`+"\n", id, id)
		fmt.Fprintf(&spine, `    <itemref idref="%s"/>`+"\n", id)
		write("OEBPS/text/"+id+".xhtml", chapterXHTML(ch))
	}

	if b.Title != "" {
		fmt.Fprintf(&meta, "    <dc:title>%s</dc:title>\n", html.EscapeString(b.Title))
	}
	if b.Author != "" {
		fmt.Fprintf(&meta, "    <dc:creator>%s</dc:creator>\n", html.EscapeString(b.Author))
	}
	if b.Cover != nil {
		manifest.WriteString(`    <item id="cover" href="images/cover.png" media-type="image/png" properties="cover-image"/>` + "\n")
		w, err := zw.Create("OEBPS/images/cover.png")
		if err != nil {
			panic(err)
		}
		w.Write(b.Cover)
	}

	spineAttr := ""
	if b.NCX {
		manifest.WriteString(`    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>` + "\n")
		spineAttr = ` toc="ncx"`
		write("OEBPS/toc.ncx", ncx(b))
	} else {
		manifest.WriteString(`    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>` + "\n")
		write("OEBPS/nav.xhtml", nav(b))
	}

	write("OEBPS/content.opf", fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="uid">urn:uuid:test</dc:identifier>
    <dc:language>en</dc:language>
%s  </metadata>
  <manifest>
%s  </manifest>
  <spine%s>
%s  </spine>
</package>`, meta.String(), manifest.String(), spineAttr, spine.String()))

	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Simple returns a book with n chapters of m paragraphs each
func Simple(title, author string, n, m int) []byte {
	b := Book{Title: title, Author: author}
	for i := 1; i <= n; i++ {
		ch := Chapter{Title: fmt.Sprintf("Chapter %d", i)}
		for j := 1; j <= m; j++ {
			ch.Paragraphs = append(ch.Paragraphs,
				fmt.Sprintf("Paragraph %d of chapter %d. The quick brown fox jumps over the lazy dog while the reader turns the page.", j, i))
		}
		b.Chapters = append(b.Chapters, ch)
	}
	return Build(b)
}

func chapterXHTML(ch Chapter) string {
	var body strings.Builder
	if ch.Title != "" {
		fmt.Fprintf(&body, "<h1>%s</h1>\n", html.EscapeString(ch.Title))
	}
	for _, p := range ch.Paragraphs {
		fmt.Fprintf(&body, "<p>%s</p>\n", html.EscapeString(p))
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>%s</title><style>p { margin: 0; }</style></head>
<body>
%s</body>
</html>`, html.EscapeString(ch.Title), body.String())
}

func nav(b Book) string {
	var items strings.Builder
	for i, ch := range b.Chapters {
		fmt.Fprintf(&items, `      <li><a href="text/ch%d.xhtml">%s</a></li>`+"\n", i+1, html.EscapeString(ch.Title))
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<body>
  <nav epub:type="toc">
    <ol>
%s    </ol>
  </nav>
</body>
</html>`, items.String())
}

func ncx(b Book) string {
	var points strings.Builder
	for i, ch := range b.Chapters {
		fmt.Fprintf(&points, `    <navPoint id="np%d" playOrder="%d"><navLabel><text>%s</text></navLabel><content src="text/ch%d.xhtml"/></navPoint>`+"\n",
			i+1, i+1, html.EscapeString(ch.Title), i+1)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
%s  </navMap>
</ncx>`, points.String())
}
