// Package reembed regenerates the vectors of an existing session table
// with a new or updated embedding model.
//
// Records are read in batches, embedded with retry and exponential backoff,
// normalized to unit length, and written back in place. Batches are spread
// over a bounded worker pool and progress is reported to an io.Writer.
package reembed
