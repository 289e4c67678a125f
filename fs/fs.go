package appfs

import "embed"

// FS embeds the database migrations and the email templates so binaries stay
// self-contained.
//
//go:embed migrations all:assets
var FS embed.FS
