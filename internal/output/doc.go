// Package output renders review results and fan-out progress.
//
// Two report formats are supported:
//   - text: the review inside a "Code Review" banner (default)
//   - json: a structured document with outcome, files, review text and timing
//
// Use [GetWriter] to obtain a [Writer] for a given format string. The text
// writer also exposes StreamHeader and StreamFooter for reviews printed as
// they stream.
//
// [StreamPrinter] prints the prompt-indexed fragments of the fan-out flow.
package output
