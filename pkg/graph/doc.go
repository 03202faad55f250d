// Package graph defines the construction document for Forma.
// A Document is an ordered, append-only sequence of entities (primitives,
// boolean operations and transforms) whose cross-references only point
// backwards. The package keeps the reverse dependency sets, validates edits,
// generates the construction script and serializes the whole document.
package graph
