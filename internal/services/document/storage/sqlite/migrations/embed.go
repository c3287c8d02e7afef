package migrations

import "embed"

// JournalFS holds the document journal schema history.
//
//go:embed journal/*.sql
var JournalFS embed.FS
