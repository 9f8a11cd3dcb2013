// Package output renders CLI results as tables, JSON or YAML.
//
// Values that know how to lay themselves out implement Tabular; the
// table formatter falls back to JSON for anything else.
package output
