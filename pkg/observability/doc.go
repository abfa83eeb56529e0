/*
Package observability holds the Prometheus collectors of a function process.

Every recording method is safe on a nil *Metrics so components can take
metrics as an optional dependency.
*/
package observability
