// Package goqueryparser implements crawler.Parser on top of goquery. Bodies
// are decoded to UTF-8 using the declared or sniffed charset before parsing.
package goqueryparser

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

// nonContentSelectors are stripped before text extraction.
const nonContentSelectors = "script, style, noscript, template"

// blockElements break text runs; their content is separated from neighbors
// by whitespace while inline elements join their text directly.
var blockElements = map[atom.Atom]struct{}{
	atom.Address: {}, atom.Article: {}, atom.Aside: {}, atom.Blockquote: {},
	atom.Body: {}, atom.Br: {}, atom.Caption: {}, atom.Dd: {}, atom.Div: {},
	atom.Dl: {}, atom.Dt: {}, atom.Figcaption: {}, atom.Figure: {},
	atom.Footer: {}, atom.Form: {}, atom.H1: {}, atom.H2: {}, atom.H3: {},
	atom.H4: {}, atom.H5: {}, atom.H6: {}, atom.Head: {}, atom.Header: {},
	atom.Hr: {}, atom.Html: {}, atom.Li: {}, atom.Main: {}, atom.Nav: {},
	atom.Ol: {}, atom.P: {}, atom.Pre: {}, atom.Section: {}, atom.Table: {},
	atom.Td: {}, atom.Th: {}, atom.Title: {}, atom.Tr: {}, atom.Ul: {},
	atom.Option: {}, atom.Fieldset: {}, atom.Legend: {},
}

var markupTypes = map[string]struct{}{
	"text/html":             {},
	"application/xhtml+xml": {},
	"application/xml":       {},
	"text/xml":              {},
}

// Parser implements crawler.Parser.
type Parser struct{}

// New returns a Parser.
func New() *Parser {
	return &Parser{}
}

// Parse decodes body and builds a Document. Unsupported content types and
// undecodable bodies are reported as crawler.ErrParse.
func (p *Parser) Parse(body []byte, contentType string, baseURL string) (crawler.Document, error) {
	if err := checkContentType(contentType); err != nil {
		return nil, err
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base url %q: %v", crawler.ErrParse, baseURL, err)
	}

	var reader io.Reader = bytes.NewReader(body)
	if len(body) > 0 {
		reader, err = charset.NewReader(reader, contentType)
		if err != nil {
			return nil, fmt.Errorf("%w: decode charset: %v", crawler.ErrParse, err)
		}
	}
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: build document: %v", crawler.ErrParse, err)
	}
	doc.Url = base

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}
	return &document{doc: doc, base: base}, nil
}

func checkContentType(contentType string) error {
	if strings.TrimSpace(contentType) == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("%w: content type %q: %v", crawler.ErrParse, contentType, err)
	}
	if _, ok := markupTypes[mediaType]; !ok {
		return fmt.Errorf("%w: unsupported content type %q", crawler.ErrParse, mediaType)
	}
	return nil
}

type document struct {
	doc  *goquery.Document
	base *url.URL
}

// HTML serializes the parsed tree.
func (d *document) HTML() (string, error) {
	out, err := d.doc.Html()
	if err != nil {
		return "", fmt.Errorf("%w: render html: %v", crawler.ErrParse, err)
	}
	return out, nil
}

// Text returns visible text with whitespace runs collapsed to single spaces.
// Block elements are separated from the surrounding text.
func (d *document) Text() string {
	sel := d.doc.Selection.Clone()
	sel.Find(nonContentSelectors).Remove()
	var b strings.Builder
	for _, n := range sel.Nodes {
		appendText(&b, n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func appendText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	_, block := blockElements[n.DataAtom]
	block = block && n.Type == html.ElementNode
	if block {
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendText(b, c)
	}
	if block {
		b.WriteByte(' ')
	}
}

// Links returns absolute anchor targets in document order without duplicates.
func (d *document) Links() []string {
	seen := make(map[string]struct{})
	var links []string
	d.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := d.base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}
