// Package migrations embeds the SQL migrations of the SQLite journal.
package migrations
