// Package prompts provides externalized prompt templates and category
// question banks with override support.
package prompts

import "embed"

//go:embed templates/*.md categories/*.json
var embeddedFS embed.FS
