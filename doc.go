// Package mondo provides a statically-typed access layer for document databases.
//
// Define your documents as Go structs with struct tags, and get type-checked
// filters, updates, aggregation pipelines, and collection operations, all
// lowered to the store's native command documents without writing raw queries.
//
// The module is organized into these packages:
//
//   - [github.com/mondolib/mondo/raw] holds the generic document tree: an
//     ordered, tagged-variant value model with canonical rendering and a
//     msgpack codec
//   - [github.com/mondolib/mondo/typed] is the core: models, field paths,
//     filter/update/pipeline expressions, schema derivation, typed collections
//   - [github.com/mondolib/mondo/driver] is the narrow contract an executing
//     driver must satisfy, plus the embedded reference engine and its storage
//     backends (in-memory and sqlite)
//   - [github.com/mondolib/mondo/filtertext] parses a compact textual filter
//     syntax, resolved against registered models
//
// The typed and raw packages never touch the network; every operation is a
// pure construct-and-delegate sequence handed to a [driver.Conn].
package mondo
