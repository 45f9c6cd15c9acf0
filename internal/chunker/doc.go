// Package chunker divides source files into chunks for embedding and retrieval.
//
// Chunks are cut at natural boundaries so that a chunk's section path is a
// meaningful dedup key:
//   - Markdown: one section per ATX heading, with the path built from the
//     enclosing headings ("Deploy > Migrations"). Headings inside fenced code
//     blocks are ignored.
//   - Go: one section per top-level declaration, named after it ("User.Rename").
//   - Anything else: the whole file, split into paragraphs.
//
// Sections longer than the rune limit are split at paragraph, then line,
// boundaries. All pieces of a section share its section path, so the selector
// keeps at most one of them.
//
//	c := chunker.New()
//	chunks, err := c.ChunkFile("docs/adr/0001.md", "docs", content)
package chunker
