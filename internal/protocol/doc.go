// Package protocol owns the newsletter wire contract.
//
// Ownership boundary:
// - version-pinned registries (notification names, JSON path keys, mex query ids)
// - parse/decrypt error kinds shared by response decoders
//
// Subpackages:
// - tree: single-level node navigation
// - jsonobj: explicit get-or-absent JSON object steps
// - frame: length-prefixed node stream framing
package protocol
