// Package output renders evaluation results for people and agents.
//
// # Format Types
//
// Three output formats are supported:
//
//   - YAML (default): Self-documenting, human-readable
//   - JSON: Machine-readable, same structure as YAML
//   - Table: Terminal tables with a coloured readiness verdict
//
// # Density Modes
//
// Three density levels control how much of a run is shown:
//
//   - Sparse: Run summary only (status, readiness, counts)
//
//   - Medium (default): Summary plus gaps, scores and the remediation plan
//
//   - Dense: Everything, including the per-asset signal profiles and the
//     raw readiness assessment
//
// # Views
//
// Engine results are not rendered directly. They are first projected onto
// a view (RunView, MatrixView, CompletenessView and friends) whose fields
// are filled according to the requested density; omitempty tags then keep
// unused sections out of YAML and JSON.
package output
