package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/unalkalkan/ShelfReader/pkg/types"
)

const containerPath = "META-INF/container.xml"

// EPUBParser parses ePUB 2 and 3 containers
type EPUBParser struct{}

// NewEPUBParser creates a new ePUB parser
func NewEPUBParser() *EPUBParser {
	return &EPUBParser{}
}

// SupportedFormats returns the formats this parser supports
func (p *EPUBParser) SupportedFormats() []string {
	return []string{"epub"}
}

type container struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata struct {
		Titles      []string `xml:"title"`
		Creators    []string `xml:"creator"`
		Language    string   `xml:"language"`
		Identifiers []string `xml:"identifier"`
		Metas       []struct {
			Name    string `xml:"name,attr"`
			Content string `xml:"content,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest []manifestItem `xml:"manifest>item"`
	Spine    struct {
		TOC      string `xml:"toc,attr"`
		Itemrefs []struct {
			IDRef  string `xml:"idref,attr"`
			Linear string `xml:"linear,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type manifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

func (m manifestItem) hasProperty(prop string) bool {
	for _, p := range strings.Fields(m.Properties) {
		if p == prop {
			return true
		}
	}
	return false
}

type ncxNavPoint struct {
	Label   string `xml:"navLabel>text"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxNavPoint `xml:"navPoint"`
}

type ncxDoc struct {
	NavPoints []ncxNavPoint `xml:"navMap>navPoint"`
}

type navList struct {
	Items []navListItem `xml:"li"`
}

type navListItem struct {
	Anchor struct {
		Href string `xml:"href,attr"`
		Text string `xml:",innerxml"`
	} `xml:"a"`
	Span string   `xml:"span"`
	Sub  *navList `xml:"ol"`
}

// archive indexes the zip entries by their cleaned path
type archive map[string]*zip.File

func (a archive) read(name string) ([]byte, error) {
	f, ok := a[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformed, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrMalformed, name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Parse extracts metadata, navigation, cover and chapter text from an ePUB file
func (p *EPUBParser) Parse(ctx context.Context, data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a zip container: %v", ErrMalformed, err)
	}

	files := make(archive, len(zr.File))
	for _, f := range zr.File {
		files[path.Clean(f.Name)] = f
	}

	raw, err := files.read(containerPath)
	if err != nil {
		return nil, err
	}
	var c container
	if err := xml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: container.xml: %v", ErrMalformed, err)
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return nil, fmt.Errorf("%w: no rootfile in container.xml", ErrMalformed)
	}
	opfPath := path.Clean(c.Rootfiles[0].FullPath)

	raw, err = files.read(opfPath)
	if err != nil {
		return nil, err
	}
	var pkg opfPackage
	if err := newDecoder(raw).Decode(&pkg); err != nil {
		return nil, fmt.Errorf("%w: package document: %v", ErrMalformed, err)
	}

	base := path.Dir(opfPath)
	manifest := make(map[string]manifestItem, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		manifest[item.ID] = item
	}

	doc := &Document{
		Metadata: Metadata{
			Creators: trimAll(pkg.Metadata.Creators),
			Language: strings.TrimSpace(pkg.Metadata.Language),
		},
	}
	if len(pkg.Metadata.Titles) > 0 {
		doc.Metadata.Title = strings.TrimSpace(pkg.Metadata.Titles[0])
	}
	if len(pkg.Metadata.Identifiers) > 0 {
		doc.Metadata.Identifier = strings.TrimSpace(pkg.Metadata.Identifiers[0])
	}

	for _, ref := range pkg.Spine.Itemrefs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item, ok := manifest[ref.IDRef]
		if !ok {
			continue
		}
		href := resolve(base, item.Href)
		content, err := files.read(href)
		if err != nil {
			return nil, err
		}
		title, text := extractText(content)
		doc.Spine = append(doc.Spine, Chapter{
			Index: len(doc.Spine),
			ID:    item.ID,
			Href:  href,
			Title: title,
			Text:  text,
		})
	}
	if len(doc.Spine) == 0 {
		return nil, fmt.Errorf("%w: empty spine", ErrMalformed)
	}

	doc.TOC = p.navigation(files, base, pkg, manifest)
	doc.Cover = p.cover(files, base, pkg, manifest)

	return doc, nil
}

// navigation prefers the ePUB 3 nav document and falls back to the NCX
func (p *EPUBParser) navigation(files archive, base string, pkg opfPackage, manifest map[string]manifestItem) []types.TOCItem {
	for _, item := range pkg.Manifest {
		if !item.hasProperty("nav") {
			continue
		}
		href := resolve(base, item.Href)
		raw, err := files.read(href)
		if err != nil {
			break
		}
		if toc := parseNav(raw, path.Dir(href)); len(toc) > 0 {
			return toc
		}
	}

	ncxID := pkg.Spine.TOC
	if ncxID == "" {
		for _, item := range pkg.Manifest {
			if item.MediaType == "application/x-dtbncx+xml" {
				ncxID = item.ID
				break
			}
		}
	}
	item, ok := manifest[ncxID]
	if !ok {
		return nil
	}
	href := resolve(base, item.Href)
	raw, err := files.read(href)
	if err != nil {
		return nil
	}
	var ncx ncxDoc
	if err := newDecoder(raw).Decode(&ncx); err != nil {
		return nil
	}
	return convertNavPoints(ncx.NavPoints, path.Dir(href))
}

func (p *EPUBParser) cover(files archive, base string, pkg opfPackage, manifest map[string]manifestItem) *Cover {
	var item manifestItem
	found := false
	for _, m := range pkg.Manifest {
		if m.hasProperty("cover-image") {
			item, found = m, true
			break
		}
	}
	if !found {
		for _, meta := range pkg.Metadata.Metas {
			if meta.Name == "cover" {
				item, found = manifest[meta.Content]
				break
			}
		}
	}
	if !found || !strings.HasPrefix(item.MediaType, "image/") {
		return nil
	}

	data, err := files.read(resolve(base, item.Href))
	if err != nil {
		return nil
	}
	return &Cover{MediaType: item.MediaType, Data: data}
}

func convertNavPoints(points []ncxNavPoint, dir string) []types.TOCItem {
	items := make([]types.TOCItem, 0, len(points))
	for _, np := range points {
		items = append(items, types.TOCItem{
			Label:    strings.TrimSpace(np.Label),
			Href:     resolveRef(dir, np.Content.Src),
			Subitems: convertNavPoints(np.Children, dir),
		})
	}
	return items
}

func parseNav(raw []byte, dir string) []types.TOCItem {
	dec := newDecoder(raw)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "nav" {
			continue
		}
		isTOC := false
		for _, attr := range start.Attr {
			if attr.Name.Local == "type" && strings.Contains(attr.Value, "toc") {
				isTOC = true
			}
		}
		if !isTOC {
			continue
		}
		var nav struct {
			List navList `xml:"ol"`
		}
		if err := dec.DecodeElement(&nav, &start); err != nil {
			return nil
		}
		return convertNavList(nav.List, dir)
	}
}

func convertNavList(list navList, dir string) []types.TOCItem {
	items := make([]types.TOCItem, 0, len(list.Items))
	for _, li := range list.Items {
		label := stripTags(li.Anchor.Text)
		if label == "" {
			label = strings.TrimSpace(li.Span)
		}
		item := types.TOCItem{Label: label}
		if li.Anchor.Href != "" {
			item.Href = resolveRef(dir, li.Anchor.Href)
		}
		if li.Sub != nil {
			item.Subitems = convertNavList(*li.Sub, dir)
		}
		items = append(items, item)
	}
	return items
}

// extractText walks an XHTML document and returns its first heading and plain text
func extractText(content []byte) (string, string) {
	dec := newDecoder(content)

	var (
		paragraphs []string
		current    strings.Builder
		title      string
		heading    strings.Builder
		inHeading  bool
		inBody     bool
		skipDepth  int
	)

	flush := func() {
		text := strings.Join(strings.Fields(current.String()), " ")
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
		current.Reset()
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := strings.ToLower(t.Name.Local)
			switch {
			case name == "body":
				inBody = true
			case name == "script" || name == "style":
				skipDepth++
			case isHeading(name):
				flush()
				inHeading = title == ""
			case isBlock(name):
				flush()
			}
		case xml.EndElement:
			name := strings.ToLower(t.Name.Local)
			switch {
			case name == "script" || name == "style":
				if skipDepth > 0 {
					skipDepth--
				}
			case isHeading(name):
				if inHeading {
					title = strings.Join(strings.Fields(heading.String()), " ")
					inHeading = false
				}
				flush()
			case isBlock(name):
				flush()
			}
		case xml.CharData:
			if !inBody || skipDepth > 0 {
				continue
			}
			current.Write(t)
			if inHeading {
				heading.Write(t)
			}
		}
	}
	flush()

	return title, strings.Join(paragraphs, "\n\n")
}

func isHeading(name string) bool {
	return len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6'
}

func isBlock(name string) bool {
	switch name {
	case "p", "div", "li", "br", "blockquote", "section", "tr", "pre", "dd", "dt":
		return true
	}
	return false
}

func newDecoder(raw []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity
	return dec
}

// resolve turns a manifest href into a container path
func resolve(base, href string) string {
	if u, err := url.PathUnescape(href); err == nil {
		href = u
	}
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	return path.Clean(path.Join(base, href))
}

// resolveRef is resolve that keeps the fragment
func resolveRef(dir, ref string) string {
	frag := ""
	if i := strings.IndexByte(ref, '#'); i >= 0 {
		ref, frag = ref[:i], ref[i:]
	}
	if ref == "" {
		return frag
	}
	return resolve(dir, ref) + frag
}

func stripTags(s string) string {
	var b strings.Builder
	dec := newDecoder([]byte("<x>" + s + "</x>"))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if cd, ok := tok.(xml.CharData); ok {
			b.Write(cd)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
