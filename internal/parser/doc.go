// Package parser extracts top-level declarations from Go source files using
// the standard go/parser and go/ast packages.
//
// Each function, method and type, const or var group becomes one Decl with
// its line span (doc comment included), which the chunker uses to cut Go
// files along declaration boundaries:
//
//	p := parser.New()
//	file := p.ParseSource("service.go", content)
//	for _, d := range file.Decls {
//	    fmt.Println(d.Kind, d.QualifiedName(), d.StartLine, d.EndLine)
//	}
//
// Syntax errors are non-fatal. They are recorded in File.Errors and whatever
// declarations the partial AST holds are still returned.
package parser
