// Package confdb resolves indirect configuration values for the blocks.
//
// Block configurations reference values through Links: a Link is either a
// literal number or a key into an external value store. Links resolve
// through a Provider exactly once per Init or ReInit; the blocks never
// consult the provider during cyclic operation.
//
// Static (an in-memory map) and File (a YAML file with dotted flattened
// keys) are the bundled providers. Integrations with a live parameter
// database implement Provider themselves.
package confdb
