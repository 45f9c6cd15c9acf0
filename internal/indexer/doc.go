// Package indexer ingests a directory tree into a collection.
//
// A run walks the root in lexical order, keeps files matching the include
// globs and not matching the exclude globs (github.com/bmatcuk/doublestar/v4
// syntax, relative to the root), then for each file on a bounded errgroup
// worker pool:
//
//  1. Chunk: markdown sections, Go declarations or text paragraphs
//  2. Embed: chunk texts in batches of Config.BatchSize
//  3. Upsert: one transaction per file; chunk IDs are content-addressed, so
//     unchanged content rewrites the same rows
//  4. Prune: delete the file's stored chunks that the new content no longer
//     produces
//
// After all files, sources stored for the collection that no longer exist on
// disk are removed unless Config.KeepRemoved is set.
//
//	idx := indexer.New(store, emb, sink)
//	stats, err := idx.Index(ctx, "/path/to/repo", indexer.Config{Collection: "docs"})
//	fmt.Printf("Indexed %d files (%d chunks) in %v\n",
//	    stats.FilesIndexed, stats.ChunksUpserted, stats.Duration)
//
// Binary files, invalid UTF-8 and files over Config.MaxFileSize are counted
// as skipped. An embedding or storage failure fails only its file; context
// cancellation fails the run.
package indexer
