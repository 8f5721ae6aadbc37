// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/vitakit/vita-chat/internal/session"
)

// =============================================================================
// YAML EXPORTER
// =============================================================================

// YAMLExporter exports sessions to YAML format. Like JSON, YAML exports
// carry the complete session data.
type YAMLExporter struct{}

// NewYAMLExporter creates a new YAML exporter.
func NewYAMLExporter() *YAMLExporter {
	return &YAMLExporter{}
}

// Export converts a session to YAML.
func (e *YAMLExporter) Export(sess *session.Session) ([]byte, error) {
	if sess == nil {
		return nil, fmt.Errorf("session is nil")
	}
	return yaml.Marshal(NewDocument(sess))
}

// FileExtension returns the file extension for YAML.
func (e *YAMLExporter) FileExtension() string {
	return ".yaml"
}

// MimeType returns the MIME type for YAML.
func (e *YAMLExporter) MimeType() string {
	return "application/yaml"
}
