// Package stream turns a provider stream into a sequence of text fragments
// in which any failure is a single terminal "Error: ..." fragment.
package stream
