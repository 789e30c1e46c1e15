// Package mcp implements the Model Context Protocol (MCP) server for
// ticketsearch.
//
// The MCP server exposes three tools to AI assistants:
//   - search_tickets: find support tickets similar to a natural language query
//   - ingest_tickets: load a JSON file of tickets into the index
//   - get_status: report the index backend, embedder and entry count
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout carries protocol frames only, so logs must go to stderr.
//
// # Basic Usage
//
//	ticketsearch mcp --config config.yaml
//
// # Tool: search_tickets
//
//	Request:
//	{
//	  "name": "search_tickets",
//	  "arguments": {"query": "VPN not connecting", "k": 3}
//	}
//
//	Response:
//	{
//	  "query": "VPN not connecting",
//	  "count": 1,
//	  "results": [
//	    {"id": "T-1024", "title": "VPN Connection Fails on macOS Sequoia", "similarity_score": 0.61, ...}
//	  ]
//	}
//
// # Tool: ingest_tickets
//
//	Request:
//	{
//	  "name": "ingest_tickets",
//	  "arguments": {"path": "/data/tickets_5k.json"}
//	}
//
// The response carries the ingestion statistics: total, ingested, invalid,
// failed, batches and failed_batches. A second call while one is running
// fails with code -32002.
//
// # Error Handling
//
// Tool errors use JSON-RPC style codes:
//
//	-32602  invalid parameters
//	-32603  internal error
//	-32002  ingestion already in progress
//	-32004  empty query
package mcp
