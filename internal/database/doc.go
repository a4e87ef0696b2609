// Package database opens the storage connections used by the chat server:
// a GORM handle over SQLite for accounts and the default message archive,
// and an optional pgx pool for a Postgres message archive.
package database
