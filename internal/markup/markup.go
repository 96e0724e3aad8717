// Package markup holds the strict selection helpers the page parsers are built on.
// A page that does not have the structure a parser expects yields a MalformedMarkupError
// instead of an empty value.
package markup

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"top8scraper/internal/normalize"
)

// ErrMalformed matches every MalformedMarkupError via errors.Is.
var ErrMalformed = errors.New("malformed markup")

// MalformedMarkupError reports that a selector did not match the expected number of nodes.
type MalformedMarkupError struct {
	Selector string
	Found    int
	Context  string
}

func (e *MalformedMarkupError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("malformed markup: selector %q matched %d nodes (%s)", e.Selector, e.Found, e.Context)
	}
	return fmt.Sprintf("malformed markup: selector %q matched %d nodes", e.Selector, e.Found)
}

func (e *MalformedMarkupError) Is(target error) bool {
	return target == ErrMalformed
}

// Parse builds a document tree from raw HTML.
func Parse(raw []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// SelectOne returns the single node matching selector under root.
func SelectOne(root *goquery.Selection, selector string) (*goquery.Selection, error) {
	sel := root.Find(selector)
	if sel.Length() != 1 {
		return nil, &MalformedMarkupError{Selector: selector, Found: sel.Length(), Context: describe(root)}
	}
	return sel, nil
}

// SelectMany returns every node matching selector under root, failing when there are none.
func SelectMany(root *goquery.Selection, selector string) (*goquery.Selection, error) {
	sel := root.Find(selector)
	if sel.Length() == 0 {
		return nil, &MalformedMarkupError{Selector: selector, Context: describe(root)}
	}
	return sel, nil
}

// SelectFirst is the lenient form of SelectOne: duplicates are allowed, absence is not.
func SelectFirst(root *goquery.Selection, selector string) (*goquery.Selection, error) {
	sel, err := SelectMany(root, selector)
	if err != nil {
		return nil, err
	}
	return sel.First(), nil
}

// TextSegments returns the non-empty direct text children of sel, normalised and in order.
// For `<td>Modern<br>24 players - 05/03/21</td>` that is ["Modern", "24 players - 05/03/21"].
func TextSegments(sel *goquery.Selection) []string {
	var segments []string
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		node := child.Get(0)
		if node == nil || node.Type != html.TextNode {
			return
		}
		if text := normalize.Text(node.Data); text != "" {
			segments = append(segments, text)
		}
	})
	return segments
}

func describe(root *goquery.Selection) string {
	if root == nil || root.Length() == 0 {
		return ""
	}
	node := root.Get(0)
	switch node.Type {
	case html.DocumentNode:
		if title := strings.TrimSpace(root.Find("title").First().Text()); title != "" {
			return "document " + quote(title)
		}
		return "document"
	case html.ElementNode:
		return "<" + node.Data + ">"
	}
	return ""
}

func quote(s string) string {
	if r := []rune(s); len(r) > 60 {
		s = string(r[:60]) + "…"
	}
	return fmt.Sprintf("%q", s)
}
