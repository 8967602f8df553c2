// Package tags accumulates the cache tags produced by one unit of work and
// emits them to observers such as a surrogate-key header writer.
//
// An Accumulator is created per operation. Producers Add tags while the
// response is built; Finalize runs the alter collaborators once in
// registration order on a single mutable Set; Emit hands the finalized set to
// every observer. An Accumulator is not safe for concurrent use.
package tags
