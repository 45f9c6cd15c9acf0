// Package mcp implements the Model Context Protocol (MCP) server for ragctx.
//
// The server exposes three tools to MCP clients over stdio:
//   - retrieve_context: run the retrieval pipeline and return the selected
//     passages with their citations and the rendered context
//   - index_collection: ingest a directory tree into a collection
//   - get_status: chunk and source counts per collection
//
// MCP is JSON-RPC 2.0 over stdio, so stdout is reserved for protocol traffic
// and all logging goes to stderr.
//
// # Tool: retrieve_context
//
//	Request:
//	{
//	  "name": "retrieve_context",
//	  "arguments": {
//	    "query": "How are database migrations handled?",
//	    "collection": "docs",
//	    "max_chunks": 6
//	  }
//	}
//
//	Response:
//	{
//	  "intent": "migrations",
//	  "prefixes": ["apps/docs/app/adr/", "..."],
//	  "stage": "primary",
//	  "items": [{"rank": 1, "source": "apps/docs/app/adr/0001-migrations.md", ...}],
//	  "context": "[1] apps/docs/app/adr/0001-migrations.md#Decision (similarity 0.812)\n..."
//	}
//
// An unknown collection returns an empty item list and an empty context, not
// an error.
//
// # Tool: index_collection
//
//	{"name": "index_collection", "arguments": {"path": "/abs/repo", "collection": "docs"}}
//
// Only one indexing run may be active; a concurrent call fails with
// ErrorCodeIndexingInProgress.
//
// # Errors
//
// Invalid arguments and failures are returned as *MCPError with a JSON-RPC
// style code (ErrorCodeInvalidParams, ErrorCodeEmptyQuery, ...), a message
// and optional structured data.
package mcp
