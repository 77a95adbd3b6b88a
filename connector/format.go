// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

package connector

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	xhtml "golang.org/x/net/html"
)

// markdownRenderer converts message markdown into HTML. Raw HTML in
// the source passes through here and is removed by sanitizeHTML.
var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// allowedTags is the subset of HTML elements permitted in Matrix
// formatted bodies. Everything else is stripped, keeping its text.
var allowedTags = map[string]bool{
	"a": true, "b": true, "blockquote": true, "br": true, "caption": true,
	"code": true, "del": true, "div": true, "em": true, "h1": true,
	"h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"hr": true, "i": true, "img": true, "li": true, "ol": true,
	"p": true, "pre": true, "span": true, "strike": true, "strong": true,
	"sub": true, "sup": true, "table": true, "tbody": true, "td": true,
	"th": true, "thead": true, "tr": true, "u": true, "ul": true,
}

// allowedAttributes maps tag name to the attributes kept on it.
var allowedAttributes = map[string]map[string]bool{
	"a":    {"href": true, "name": true},
	"img":  {"src": true, "alt": true, "title": true, "width": true, "height": true},
	"ol":   {"start": true},
	"code": {"class": true},
}

// formattedContent builds the content for a formatted m.room.message:
// the markdown source rendered to sanitized HTML alongside a plain
// text body.
func formattedContent(msgtype, markdown string) (map[string]any, error) {
	var rendered bytes.Buffer
	if err := markdownRenderer.Convert([]byte(markdown), &rendered); err != nil {
		return nil, fmt.Errorf("connector: rendering markdown: %w", err)
	}
	sanitized, err := sanitizeHTML(rendered.String())
	if err != nil {
		return nil, fmt.Errorf("connector: sanitizing message html: %w", err)
	}
	return map[string]any{
		"msgtype":        msgtype,
		"body":           htmlToText(sanitized),
		"format":         "org.matrix.custom.html",
		"formatted_body": sanitized,
	}, nil
}

// sanitizeHTML re-serializes fragment HTML keeping only allowed tags
// and attributes. Disallowed tags are stripped but their text content
// is kept.
func sanitizeHTML(fragment string) (string, error) {
	tokenizer := xhtml.NewTokenizer(strings.NewReader(fragment))
	var out strings.Builder
	for {
		tokenType := tokenizer.Next()
		switch tokenType {
		case xhtml.ErrorToken:
			if errors.Is(tokenizer.Err(), io.EOF) {
				return strings.TrimSpace(out.String()), nil
			}
			return "", tokenizer.Err()
		case xhtml.TextToken:
			out.WriteString(xhtml.EscapeString(string(tokenizer.Text())))
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken, xhtml.EndTagToken:
			token := tokenizer.Token()
			if !allowedTags[token.Data] {
				continue
			}
			kept := token.Attr[:0]
			for _, attr := range token.Attr {
				if allowedAttributes[token.Data][attr.Key] {
					kept = append(kept, attr)
				}
			}
			token.Attr = kept
			out.WriteString(token.String())
		}
	}
}

// htmlToText extracts the plain text of fragment HTML, rendering line
// breaks for block boundaries.
func htmlToText(fragment string) string {
	tokenizer := xhtml.NewTokenizer(strings.NewReader(fragment))
	var out strings.Builder
	for {
		switch tokenizer.Next() {
		case xhtml.ErrorToken:
			return strings.TrimSpace(out.String())
		case xhtml.TextToken:
			out.WriteString(string(tokenizer.Text()))
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "br" {
				out.WriteString("\n")
			}
		case xhtml.EndTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "p", "div", "li", "blockquote", "pre",
				"h1", "h2", "h3", "h4", "h5", "h6", "tr":
				out.WriteString("\n")
			}
		}
	}
}
