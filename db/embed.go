// Package db provides the embedded schema of the commerce store.
package db

import _ "embed"

// Schema contains the DDL statements for the store tables. Every statement is
// idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string

// Tables lists the tables the sync service requires.
var Tables = []string{
	"products",
	"users",
	"user_meta",
	"orders",
	"order_addresses",
	"order_items",
}
