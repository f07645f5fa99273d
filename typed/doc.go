// Package typed is the statically checked layer over the generic document
// tree. A Go struct that implements Doc and is registered becomes a document
// type: its fields, wire names, and identifier are extracted once with
// reflection, and everything else in the package is validated against that
// model.
//
// Paths resolve field references at construction time, filter and update
// expressions type-check their operands the moment they are built, and
// Collection issues the resulting commands over a driver connection. Invalid
// expressions never reach the store: every operation checks Err before
// lowering anything.
package typed
