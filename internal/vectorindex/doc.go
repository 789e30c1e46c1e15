// Package vectorindex stores ticket vectors with their metadata and answers
// nearest-neighbour queries.
//
// Three backends implement Index:
//
//   - memory: flat exact Euclidean search in process memory
//   - sqlite: persistent store with versioned migrations; uses sqlite-vec
//     when built with -tags sqlite_vec, a pure Go scan otherwise
//   - qdrant: gRPC client to a cosine collection, returning native scores
//
// L2 backends report Match.Distance; similarity backends report Match.Score.
// Callers convert with Index.Metric.
package vectorindex
