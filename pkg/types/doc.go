// Package types provides shared type definitions for the ticket search service.
//
// Ticket is the single domain record: it is what bulk loaders feed into the
// retrieval engine, what the vector index stores as metadata, and what search
// returns to callers.
//
//	ticket := types.Ticket{
//	    ID:      "T-1024",
//	    Title:   "VPN Connection Fails on macOS Sequoia",
//	    Content: "AnyConnect timeouts after updating to macOS 15.0.",
//	}
//	if err := ticket.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Metadata Round-Trip
//
// The vector index only keeps an identifier, a vector and a metadata map.
// Metadata and FromMetadata convert between a Ticket and that map so a search
// hit can be rebuilt without a second lookup:
//
//	md := ticket.Metadata()
//	rebuilt := types.FromMetadata(ticket.ID, md)
//
// FromMetadata is lenient: missing status, priority or tags fall back to the
// ingestion defaults ("Open", "Medium", no tags).
//
// # Similarity Scores
//
// SimilarityScore is nil on ingestion input and set only on search results.
// Scores are in (0, 1] for distance-based indexes, higher is closer.
package types
