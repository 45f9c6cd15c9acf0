// Package searcher is the single retrieval pipeline shared by the CLI, the
// MCP server and the evaluator.
//
// A search runs these stages in order:
//
//  1. Embed the query
//  2. Route the query to an intent and retrieve candidates, routed prefixes first
//  3. Optionally apply a similarity floor and MMR diversification
//  4. Select the final items (priority prefixes come from the route plan)
//  5. Render the citation-numbered context
//
// # Basic Usage
//
//	s, err := searcher.NewSearcher(searcher.Config{
//	    Store:    store,
//	    Embedder: emb,
//	    Options:  searcher.DefaultOptions(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := s.Search(ctx, searcher.Request{
//	    Query:      "How are database migrations handled?",
//	    Collection: "docs",
//	})
//	fmt.Println(resp.Plan.Intent, resp.Sources())
//	fmt.Println(resp.Context)
//
// # Caching
//
// Similarity is recomputed for every query. The only cache on the path is the
// embedder's optional vector cache, which stores query embeddings, not scores.
package searcher
