package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	return innerWhitespace.ReplaceAllString(s, " ")
}

func Attr(node *html.Node, key string) string {
	if node == nil {
		return ""
	}
	for _, a := range node.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func HasClass(node *html.Node, class string) bool {
	for _, c := range strings.Fields(Attr(node, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// the next node in document order: first child, else next sibling, else the
// next sibling of the closest ancestor that has one. The walk never ascends
// above boundary, a nil boundary means the whole document.
func nextInDocument(node, boundary *html.Node) *html.Node {
	if node.FirstChild != nil {
		return node.FirstChild
	}
	for node != nil && node != boundary {
		if node.NextSibling != nil {
			return node.NextSibling
		}
		node = node.Parent
	}
	return nil
}

// FindNext walks forward in document order from (and excluding) start,
// returning the first element node accepted by match, or nil.
func FindNext(start *html.Node, match func(*html.Node) bool) *html.Node {
	return FindNextWithin(nil, start, match)
}

// FindNextWithin is FindNext constrained to the subtree rooted at boundary,
// so a walk can't drift past the end of, say, a table row.
func FindNextWithin(boundary, start *html.Node, match func(*html.Node) bool) *html.Node {
	if start == nil {
		return nil
	}
	for node := nextInDocument(start, boundary); node != nil; node = nextInDocument(node, boundary) {
		if node.Type == html.ElementNode && match(node) {
			return node
		}
	}
	return nil
}

// Ancestor returns the closest ancestor element with the given name, or nil.
func Ancestor(node *html.Node, name string) *html.Node {
	for p := node.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == name {
			return p
		}
	}
	return nil
}

func IsElement(name string) func(*html.Node) bool {
	return func(node *html.Node) bool {
		return node.Data == name
	}
}
