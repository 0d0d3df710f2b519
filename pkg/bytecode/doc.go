// Package bytecode defines the FlowScript stack-machine instruction set and
// the binary container that carries compiled scripts to the game's event
// interpreter.
//
// The container is designed for:
//   - Fixed-width records (8-byte instructions, fixed table entries)
//   - Relocation-free addressing (jumps hold absolute instruction indices,
//     calls hold procedure or function table indices)
//   - Strict loading (every offset and index is checked on read)
//
// # Layout
//
//   - Header: magic "FLOW", version, counts, slot counts, entry procedure
//
//   - Procedure table: name, entry address, length, local types, parameter
//     count and return type of every compiled procedure
//
//   - Imported-function table: name, (table, index) pair, argument count and
//     return type of every host function the script calls
//
//   - Variable table: type and initial value of every static and global slot
//
//   - String pool: deduplicated NUL-terminated strings addressed by offset
//
//   - Instruction section
//
// # Round trips
//
// Decode keeps the raw string pool, so Encode(Decode(b)) reproduces b byte
// for byte for any binary Encode produced. Label names other than procedure
// names are not stored; decompilers invent them.
package bytecode
