// Package middleware wraps versioned stores with cross-cutting behavior
// such as client-side encryption of values.
package middleware
