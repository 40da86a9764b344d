// Package appfs embeds the files the binaries need at runtime: SQL migrations, email templates,
// the common passwords list and the OpenAPI document.
package appfs

import "embed"

//go:embed migrations assets
var FS embed.FS
