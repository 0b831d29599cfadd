// Package wiregen is a protocol-directed marshalling code generator: given an
// immutable schema graph (package model) and a wire protocol implementation
// (package protocol/...), it emits the Go source functions that serialize and
// deserialize values of every shape reachable from a service's operations.
//
// The package deliberately stops at deciding function names, module
// membership, and bodies; writing files and laying out packages is the
// caller's concern. All generated helper functions are interned through a
// Registry so that each distinct function is produced exactly once per run,
// even when operations are generated concurrently.
package wiregen
