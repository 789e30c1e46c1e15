// Package retrieval turns tickets into vectors and back.
//
// Engine.Ingest embeds tickets in fixed-size batches and upserts them into a
// vectorindex.Index. Engine.Search embeds a query and returns the nearest
// tickets rebuilt from stored metadata, scored so that higher is closer:
// 1/(1+distance) for L2 backends, the native score for similarity backends.
package retrieval
