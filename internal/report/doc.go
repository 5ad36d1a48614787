// Package report renders matching diagnostics: PNG convergence plots sampled
// while the library streams past, and an HTML page of the final assignment.
package report
