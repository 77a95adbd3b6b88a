// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

package connector

import (
	"strings"
	"testing"
)

func TestFormattedContent(t *testing.T) {
	content, err := formattedContent("m.text", "**hello** world")
	if err != nil {
		t.Fatalf("formattedContent: %v", err)
	}
	if content["msgtype"] != "m.text" {
		t.Errorf("msgtype = %v", content["msgtype"])
	}
	if content["format"] != "org.matrix.custom.html" {
		t.Errorf("format = %v", content["format"])
	}
	formatted := content["formatted_body"].(string)
	if !strings.Contains(formatted, "<strong>hello</strong>") {
		t.Errorf("formatted_body = %q", formatted)
	}
	if content["body"] != "hello world" {
		t.Errorf("body = %q", content["body"])
	}
}

func TestFormattedContentStripsDangerousHTML(t *testing.T) {
	content, err := formattedContent("m.text", `safe <script>alert("boo")</script> text`)
	if err != nil {
		t.Fatalf("formattedContent: %v", err)
	}
	formatted := content["formatted_body"].(string)
	if strings.Contains(formatted, "<script>") {
		t.Errorf("script tag survived: %q", formatted)
	}
	if !strings.Contains(formatted, "safe") {
		t.Errorf("text content lost: %q", formatted)
	}
}

func TestFormattedContentKeepsLinks(t *testing.T) {
	content, err := formattedContent("m.text", "[docs](https://example.org/docs)")
	if err != nil {
		t.Fatalf("formattedContent: %v", err)
	}
	formatted := content["formatted_body"].(string)
	if !strings.Contains(formatted, `href="https://example.org/docs"`) {
		t.Errorf("link lost: %q", formatted)
	}
}

func TestHTMLToTextLineBreaks(t *testing.T) {
	got := htmlToText("<p>one</p><p>two<br/>three</p>")
	want := "one\ntwo\nthree"
	if got != want {
		t.Errorf("htmlToText = %q, want %q", got, want)
	}
}

func TestSanitizeStripsEventHandlers(t *testing.T) {
	got, err := sanitizeHTML(`<a href="https://x.org" onclick="evil()">x</a>`)
	if err != nil {
		t.Fatalf("sanitizeHTML: %v", err)
	}
	if strings.Contains(got, "onclick") {
		t.Errorf("onclick survived: %q", got)
	}
	if !strings.Contains(got, `href="https://x.org"`) {
		t.Errorf("href lost: %q", got)
	}
}
