// Package render turns the Decentium post document tree into HTML
// suitable for feed content.
package render

import (
	"fmt"
	"html"
	"strings"

	"decfeeds/models"
)

// Document renders a post document to HTML. Unknown node or mark types
// are an error; the caller treats that the same as any other resolution
// failure for the post.
func Document(doc models.Document) (string, error) {
	if doc.Type != "doc" {
		return "", fmt.Errorf("unexpected root node type %q", doc.Type)
	}
	var b strings.Builder
	for _, node := range doc.Content {
		if err := renderBlock(&b, node); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func renderBlock(b *strings.Builder, node models.Node) error {
	switch node.Type {
	case "paragraph":
		b.WriteString("<p>")
		if err := renderInline(b, node.Content); err != nil {
			return err
		}
		b.WriteString("</p>")
	case "heading":
		level := 1
		if node.Attrs != nil {
			level = node.Attrs.Level
		}
		if level < 1 || level > 6 {
			return fmt.Errorf("invalid heading level %d", level)
		}
		fmt.Fprintf(b, "<h%d>", level)
		if err := renderInline(b, node.Content); err != nil {
			return err
		}
		fmt.Fprintf(b, "</h%d>", level)
	case "image":
		if node.Attrs == nil || node.Attrs.Src == "" {
			return fmt.Errorf("image node without src")
		}
		b.WriteString(`<img src="` + html.EscapeString(node.Attrs.Src) + `"`)
		if node.Attrs.Alt != "" {
			b.WriteString(` alt="` + html.EscapeString(node.Attrs.Alt) + `"`)
		}
		if node.Attrs.Title != "" {
			b.WriteString(` title="` + html.EscapeString(node.Attrs.Title) + `"`)
		}
		b.WriteString(">")
	case "code_block":
		b.WriteString("<pre><code>")
		for _, child := range node.Content {
			if child.Type != "text" {
				return fmt.Errorf("unexpected %q inside code block", child.Type)
			}
			b.WriteString(html.EscapeString(child.Text))
		}
		b.WriteString("</code></pre>")
	case "blockquote":
		b.WriteString("<blockquote>")
		for _, child := range node.Content {
			if err := renderBlock(b, child); err != nil {
				return err
			}
		}
		b.WriteString("</blockquote>")
	case "bullet_list":
		b.WriteString("<ul>")
		if err := renderListItems(b, node.Content); err != nil {
			return err
		}
		b.WriteString("</ul>")
	case "ordered_list":
		if node.Attrs != nil && node.Attrs.Order > 1 {
			fmt.Fprintf(b, `<ol start="%d">`, node.Attrs.Order)
		} else {
			b.WriteString("<ol>")
		}
		if err := renderListItems(b, node.Content); err != nil {
			return err
		}
		b.WriteString("</ol>")
	case "horizontal_rule":
		b.WriteString("<hr>")
	default:
		return fmt.Errorf("unknown block node type %q", node.Type)
	}
	return nil
}

func renderListItems(b *strings.Builder, items []models.Node) error {
	for _, item := range items {
		if item.Type != "list_item" {
			return fmt.Errorf("unexpected %q inside list", item.Type)
		}
		b.WriteString("<li>")
		for _, child := range item.Content {
			if err := renderBlock(b, child); err != nil {
				return err
			}
		}
		b.WriteString("</li>")
	}
	return nil
}

func renderInline(b *strings.Builder, nodes []models.Node) error {
	for _, node := range nodes {
		switch node.Type {
		case "text":
			open, closing, err := markTags(node.Marks)
			if err != nil {
				return err
			}
			b.WriteString(open)
			b.WriteString(html.EscapeString(node.Text))
			b.WriteString(closing)
		case "hard_break":
			b.WriteString("<br>")
		default:
			return fmt.Errorf("unknown inline node type %q", node.Type)
		}
	}
	return nil
}

// markTags returns the opening and closing tag sequences for a text
// node's marks. Closing tags nest in reverse of the opening order.
func markTags(marks []models.Mark) (string, string, error) {
	var open, closing strings.Builder
	closers := make([]string, 0, len(marks))
	for _, mark := range marks {
		switch mark.Type {
		case "strong":
			open.WriteString("<strong>")
			closers = append(closers, "</strong>")
		case "em":
			open.WriteString("<em>")
			closers = append(closers, "</em>")
		case "code":
			open.WriteString("<code>")
			closers = append(closers, "</code>")
		case "strike":
			open.WriteString("<s>")
			closers = append(closers, "</s>")
		case "link":
			if mark.Attrs == nil || mark.Attrs.Href == "" {
				return "", "", fmt.Errorf("link mark without href")
			}
			open.WriteString(`<a href="` + html.EscapeString(mark.Attrs.Href) + `"`)
			if mark.Attrs.Title != "" {
				open.WriteString(` title="` + html.EscapeString(mark.Attrs.Title) + `"`)
			}
			open.WriteString(">")
			closers = append(closers, "</a>")
		default:
			return "", "", fmt.Errorf("unknown mark type %q", mark.Type)
		}
	}
	for i := len(closers) - 1; i >= 0; i-- {
		closing.WriteString(closers[i])
	}
	return open.String(), closing.String(), nil
}
