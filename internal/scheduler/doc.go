// Package scheduler holds the reservation model and the pure scheduling rules:
// conflict detection over half-open intervals, slot planning with buffers, and
// field level change auditing. Nothing in this package performs I/O.
package scheduler
