// Package validation runs a registry of named structure checks and scores the outcome.
//
// Each check lives in its own type under the checks package; the Engine only selects, runs and
// aggregates them. Running the engine twice on the same molecule with the same check set yields
// the same Outcome.
package validation
