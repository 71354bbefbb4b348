// Package core provides the session-scoped tabular mutation engine.
//
// This package holds all domain logic independent of any transport. It can
// be driven by the web handlers, a CLI, or tests without modification.
//
// # Architecture
//
// The package is organized around a few concepts:
//
//   - Table: ordered, uniquely named, typed columns over rows of [Value]
//     cells. A Value is Missing, a number, a boolean, a datetime, or text.
//   - Codec: [Parse] turns uploaded CSV or XLSX bytes into a Table and
//     infers each column's [Dtype]; [Serialize] and [Deserialize] move a
//     table losslessly through the session store; [Export] renders CSV or
//     XLSX for download.
//   - Operations: [DropColumn], [DropMissingRows], [FillMissing], [Filter]
//     and [Encode] are pure functions from a table to a new table.
//   - Service: the session surface. Each call loads the session's table,
//     applies one operation, and stores the result under a per-session lock,
//     so concurrent requests for one session never lose an update.
//
// # Session State
//
// A session is Empty until a file is loaded. Every operation other than
// Load fails with [ErrNoActiveSession] on an Empty session; Preview instead
// returns an empty projection. A failed operation leaves the stored table
// untouched. A failed Load, an explicit Clear, or a stored table that no
// longer decodes returns the session to Empty.
//
// # Error Handling
//
// Request-scoped failures are sentinel errors wrapped with detail; test for
// them with errors.Is. Technical errors are mapped to user-friendly messages
// using [MapError]. Each category has a code for support reference:
//
//   - FILE001-FILE005: upload problems (size, format, parse, empty)
//   - SES001-SES002: session problems (no table, unreadable table)
//   - COL001-COL002: column selection
//   - OP001-OP004: strategies, operators and literal coercion
//   - UPL002-UPL005: busy, cancelled, timed out
package core
