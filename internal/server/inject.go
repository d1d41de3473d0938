package server

import (
	"bytes"
	"context"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Inject appends the rendered components to the body of an HTML document.
// Documents without a body element get one from the parser.
func Inject(ctx context.Context, doc []byte, components ...templ.Component) ([]byte, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, err
	}

	body := findElement(root, atom.Body)
	if body == nil {
		// html.Parse always synthesizes a body; this only guards against
		// a parser change.
		return doc, nil
	}

	for _, c := range components {
		var rendered strings.Builder
		if err := c.Render(ctx, &rendered); err != nil {
			return nil, err
		}
		nodes, err := html.ParseFragment(strings.NewReader(rendered.String()), body)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			body.AppendChild(n)
		}
	}

	var out bytes.Buffer
	if err := html.Render(&out, root); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
