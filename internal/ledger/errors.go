package ledger

import "errors"

// Common ledger store errors
var (
	// ErrUnknownTable is returned when a table name is not part of the
	// store's schema.
	ErrUnknownTable = errors.New("unknown ledger table")

	// ErrTableType is returned when the rows passed to ReplaceTable do
	// not match the table's row type.
	ErrTableType = errors.New("row type does not match table")
)
