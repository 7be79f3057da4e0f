package bundle

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/net/html"
)

// assembleEntryPage reads the HTML entry template, injects the stylesheet
// link and the module loader for the generated JS glue, and returns the
// serialized page. References are relative so the bundle is location
// independent.
func assembleEntryPage(templatePath, stylesheetName, glueName string) ([]byte, error) {
	data, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("read entry template %s: %w", templatePath, err)
	}

	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse entry template: %w", err)
	}

	head := findElement(doc, "head")
	body := findElement(doc, "body")
	if head == nil || body == nil {
		return nil, fmt.Errorf("entry template %s has no head or body element", templatePath)
	}

	if !hasStylesheetLink(head, stylesheetName) {
		head.AppendChild(&html.Node{
			Type: html.ElementNode,
			Data: "link",
			Attr: []html.Attribute{
				{Key: "rel", Val: "stylesheet"},
				{Key: "href", Val: stylesheetName},
			},
		})
	}

	loader := &html.Node{
		Type: html.ElementNode,
		Data: "script",
		Attr: []html.Attribute{{Key: "type", Val: "module"}},
	}
	loader.AppendChild(&html.Node{
		Type: html.TextNode,
		Data: fmt.Sprintf("import init from './%s';init();", glueName),
	})
	body.AppendChild(loader)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("render entry page: %w", err)
	}
	return buf.Bytes(), nil
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

func hasStylesheetLink(head *html.Node, href string) bool {
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "link" {
			continue
		}
		isStylesheet := false
		matchesHref := false
		for _, a := range c.Attr {
			if a.Key == "rel" && a.Val == "stylesheet" {
				isStylesheet = true
			}
			if a.Key == "href" && a.Val == href {
				matchesHref = true
			}
		}
		if isStylesheet && matchesHref {
			return true
		}
	}
	return false
}
