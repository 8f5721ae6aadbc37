// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vitakit/vita-chat/internal/model"
	"github.com/vitakit/vita-chat/internal/session"
)

func exportFixture() *session.Session {
	user := model.NewUserMessage("how did I sleep this week?")
	user.SearchMode = model.SearchModeHealthDB
	user.Timestamp = time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)

	reply := model.NewMessage(model.RoleAssistant, "You averaged 7h12m.")
	reply.Timestamp = user.Timestamp.Add(2 * time.Second)
	reply.Sources = []model.Citation{{Title: "Sleep log", URL: "https://example.org/sleep"}}
	reply.Metadata = &model.Metadata{Model: "pulse-1", TokensEstimated: 9, ProcessingTime: 850 * time.Millisecond}

	return &session.Session{
		ID:        "sess-ex",
		Title:     "Sleep review",
		CreatedAt: time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 6, 15, 9, 30, 2, 0, time.UTC),
		IsPinned:  true,
		Messages:  []*model.Message{user, reply},
	}
}

// =============================================================================
// MARKDOWN
// =============================================================================

func TestMarkdownExporter(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(exportFixture())
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	md := string(out)

	for _, want := range []string{
		"title: \"Sleep review\"",
		"# Sleep review",
		"### [You]",
		"### [Assistant]",
		"You averaged 7h12m.",
		"[Sleep log](https://example.org/sleep)",
		"Model: pulse-1",
		"Tokens: 9",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestMarkdownExporter_NoTimestampsNoMetadata(t *testing.T) {
	opts := &Options{OutputDir: "."}
	out, err := NewMarkdownExporter(opts).Export(exportFixture())
	if err != nil {
		t.Fatal(err)
	}
	md := string(out)
	if strings.Contains(md, "<sub>") {
		t.Error("timestamps/stats present despite options")
	}
	if strings.Contains(md, "generator:") {
		t.Error("frontmatter present despite options")
	}
}

func TestMarkdownExporter_EmptySession(t *testing.T) {
	sess := exportFixture()
	sess.Messages = nil
	if _, err := NewMarkdownExporter(nil).Export(sess); err == nil {
		t.Error("expected error for empty session")
	}
}

func TestMarkdownExporter_ErrorAndWidgetMessages(t *testing.T) {
	sess := exportFixture()

	failed := model.NewMessage(model.RoleAssistant, "Something went wrong.")
	failed.IsError = true

	widget := model.NewMessage(model.RoleAssistant, "")
	widget.Kind = model.KindWidget
	widget.Widget = &model.Widget{Type: "sleep_chart"}

	sess.Messages = append(sess.Messages, failed, widget)

	out, err := NewMarkdownExporter(nil).Export(sess)
	if err != nil {
		t.Fatal(err)
	}
	md := string(out)
	if !strings.Contains(md, "[Assistant — error]") {
		t.Error("error message not labelled")
	}
	if !strings.Contains(md, "**Card**: `sleep_chart`") {
		t.Error("widget message not rendered")
	}
}

// =============================================================================
// JSON / YAML
// =============================================================================

func TestJSONExporterRoundTrip(t *testing.T) {
	out, err := NewJSONExporter().Export(exportFixture())
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	var doc Document
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("exported JSON does not parse: %v", err)
	}
	if doc.ID != "sess-ex" || doc.Title != "Sleep review" || !doc.Pinned {
		t.Errorf("document header = %+v", doc)
	}
	if len(doc.Messages) != 2 {
		t.Fatalf("got %d messages", len(doc.Messages))
	}
	if doc.Messages[0].SearchMode != "health_db" {
		t.Errorf("SearchMode = %q", doc.Messages[0].SearchMode)
	}
	if doc.Messages[1].Metadata == nil || doc.Messages[1].Metadata.Model != "pulse-1" {
		t.Errorf("metadata = %+v", doc.Messages[1].Metadata)
	}
}

func TestYAMLExporterRoundTrip(t *testing.T) {
	out, err := NewYAMLExporter().Export(exportFixture())
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	var doc Document
	if err := yaml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("exported YAML does not parse: %v", err)
	}
	if doc.ID != "sess-ex" || len(doc.Messages) != 2 {
		t.Errorf("document = %s with %d messages", doc.ID, len(doc.Messages))
	}
	if doc.Messages[1].Sources[0].URL != "https://example.org/sleep" {
		t.Errorf("sources = %+v", doc.Messages[1].Sources)
	}
}

// =============================================================================
// FILE OUTPUT
// =============================================================================

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.OutputDir = dir

	path, err := ExportToFile(exportFixture(), NewMarkdownExporter(opts), opts)
	if err != nil {
		t.Fatalf("ExportToFile() error: %v", err)
	}
	if !strings.HasPrefix(path, dir) || !strings.HasSuffix(path, ".md") {
		t.Errorf("output path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "# Sleep review") {
		t.Error("written file missing content")
	}
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantExt string
		wantErr bool
	}{
		{"markdown", ".md", false},
		{"md", ".md", false},
		{"json", ".json", false},
		{"yaml", ".yaml", false},
		{"yml", ".yaml", false},
		{"pdf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			exp, err := ForFormat(tt.format, nil)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if exp.FileExtension() != tt.wantExt {
				t.Errorf("extension = %q, want %q", exp.FileExtension(), tt.wantExt)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sleep review", "Sleep_review"},
		{"a/b:c", "a-b-c"},
		{"", "session"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
