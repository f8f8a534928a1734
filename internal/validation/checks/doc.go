// Package checks holds the structure checks run by the validation engine.
package checks
