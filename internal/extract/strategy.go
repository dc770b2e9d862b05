package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Strategy reads one value out of a selection and reports whether it found one.
type Strategy[T any] func(s *goquery.Selection) (T, bool)

// FirstOf evaluates strategies in order and returns the first success.
func FirstOf[T any](strategies ...Strategy[T]) Strategy[T] {
	return func(s *goquery.Selection) (T, bool) {
		for _, st := range strategies {
			if v, ok := st(s); ok {
				return v, true
			}
		}
		var zero T
		return zero, false
	}
}

// Default always succeeds with v.
func Default[T any](v T) Strategy[T] {
	return func(*goquery.Selection) (T, bool) {
		return v, true
	}
}

// Map converts the result of a string strategy. A conversion that reports
// false counts as a miss.
func Map[T any](st Strategy[string], fn func(string) (T, bool)) Strategy[T] {
	return func(s *goquery.Selection) (T, bool) {
		raw, ok := st(s)
		if !ok {
			var zero T
			return zero, false
		}
		return fn(raw)
	}
}

// Attr reads a non-blank attribute from the first element matching selector.
// An empty selector reads from s itself.
func Attr(selector, name string) Strategy[string] {
	return func(s *goquery.Selection) (string, bool) {
		v, ok := scope(s, selector).Attr(name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
}

// Text reads the trimmed text of the first element matching selector.
func Text(selector string) Strategy[string] {
	return func(s *goquery.Selection) (string, bool) {
		v := strings.TrimSpace(scope(s, selector).Text())
		return v, v != ""
	}
}

// OwnText reads only the direct text children of the first element matching
// selector, ignoring text nested in child elements.
func OwnText(selector string) Strategy[string] {
	return func(s *goquery.Selection) (string, bool) {
		sel := scope(s, selector)
		if len(sel.Nodes) == 0 {
			return "", false
		}
		var b strings.Builder
		for c := sel.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		v := strings.Join(strings.Fields(b.String()), " ")
		return v, v != ""
	}
}

// HTML reads the inner HTML of the first element matching selector, provided
// the element has visible text.
func HTML(selector string) Strategy[string] {
	return func(s *goquery.Selection) (string, bool) {
		sel := scope(s, selector)
		if strings.TrimSpace(sel.Text()) == "" {
			return "", false
		}
		v, err := sel.Html()
		if err != nil {
			return "", false
		}
		return v, true
	}
}

func scope(s *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return s.First()
	}
	return s.Find(selector).First()
}

// optional converts a strategy miss into a nil pointer.
func optional(st Strategy[string], s *goquery.Selection) *string {
	if v, ok := st(s); ok {
		return &v
	}
	return nil
}
