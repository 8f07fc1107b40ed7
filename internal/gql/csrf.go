package gql

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/html"
)

const csrfFieldName = "csrf-key"

var errNoCSRF = errors.New("csrf-key field not found")

// FindCSRFToken returns the value of the first element named "csrf-key" in
// the HTML document read from r.
func FindCSRFToken(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse home page: %w", err)
	}

	var token string
	var found bool
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found {
			return
		}
		if n.Type == html.ElementNode {
			var name, value string
			for _, a := range n.Attr {
				switch a.Key {
				case "name":
					name = a.Val
				case "value":
					value = a.Val
				}
			}
			if name == csrfFieldName && value != "" {
				token, found = value, true
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if !found {
		return "", errNoCSRF
	}
	return token, nil
}
