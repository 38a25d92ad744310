// Package jsast is the parse/print layer used by the rewriter.
//
// Sources are parsed with tree-sitter (JavaScript, TypeScript or TSX grammar).
// The tree itself is never mutated: a Program records edits against byte
// ranges of the original text (node replacement, insertion, copies of other
// ranges and statements prepended to the top of the program) and Print
// splices them into the source. Untouched text keeps its exact formatting,
// which is what keeps "unchanged" files byte-identical.
//
// Svelte components are handled by locating their <script> blocks and
// treating the content of each block as its own Program.
package jsast
