package parser

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// DeclKind classifies a top-level Go declaration
type DeclKind string

const (
	KindFunction  DeclKind = "func"
	KindMethod    DeclKind = "method"
	KindType      DeclKind = "type"
	KindInterface DeclKind = "interface"
	KindStruct    DeclKind = "struct"
	KindConst     DeclKind = "const"
	KindVar       DeclKind = "var"
)

// Decl is one top-level declaration with its line span. StartLine includes the
// doc comment when there is one.
type Decl struct {
	Name      string
	Kind      DeclKind
	Receiver  string
	Signature string
	Doc       string
	StartLine int
	EndLine   int
}

// QualifiedName returns Receiver.Name for methods and Name otherwise
func (d Decl) QualifiedName() string {
	if d.Receiver != "" {
		return d.Receiver + "." + d.Name
	}
	return d.Name
}

// File is the result of parsing one Go source file
type File struct {
	Package string
	Imports []string
	Decls   []Decl
	Errors  []string
}

// Parser extracts top-level declarations from Go source
type Parser struct {
	fset *token.FileSet
}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{fset: token.NewFileSet()}
}

// ParseSource parses Go source. Syntax errors are recorded on the result and
// the partial AST is still used, so a file with one broken function keeps its
// other declarations.
func (p *Parser) ParseSource(path string, content []byte) *File {
	result := &File{}

	file, err := parser.ParseFile(p.fset, path, content, parser.ParseComments)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("syntax error: %v", err))
	}
	if file == nil {
		return result
	}

	if file.Name != nil {
		result.Package = file.Name.Name
	}
	for _, imp := range file.Imports {
		result.Imports = append(result.Imports, strings.Trim(imp.Path.Value, `"`))
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			result.Decls = append(result.Decls, p.funcDecl(d))
		case *ast.GenDecl:
			if gd, ok := p.genDecl(d); ok {
				result.Decls = append(result.Decls, gd)
			}
		}
	}
	return result
}

func (p *Parser) funcDecl(fn *ast.FuncDecl) Decl {
	d := Decl{
		Name:      fn.Name.Name,
		Kind:      KindFunction,
		Doc:       docText(fn.Doc),
		Signature: functionSignature(fn),
	}
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		d.Kind = KindMethod
		d.Receiver = receiverType(fn.Recv.List[0].Type)
	}
	d.StartLine, d.EndLine = p.span(fn.Doc, fn.Pos(), fn.End())
	return d
}

// genDecl turns a type, const or var declaration (grouped or not) into one
// Decl named after the first name it declares. Imports are skipped.
func (p *Parser) genDecl(gd *ast.GenDecl) (Decl, bool) {
	if len(gd.Specs) == 0 {
		return Decl{}, false
	}

	d := Decl{Doc: docText(gd.Doc)}
	switch s := gd.Specs[0].(type) {
	case *ast.TypeSpec:
		d.Name = s.Name.Name
		switch s.Type.(type) {
		case *ast.StructType:
			d.Kind = KindStruct
		case *ast.InterfaceType:
			d.Kind = KindInterface
		default:
			d.Kind = KindType
		}
		d.Signature = fmt.Sprintf("type %s %s", s.Name.Name, exprToString(s.Type))
		if d.Doc == "" {
			d.Doc = docText(s.Doc)
		}
	case *ast.ValueSpec:
		if len(s.Names) == 0 {
			return Decl{}, false
		}
		d.Name = s.Names[0].Name
		d.Kind = KindVar
		if gd.Tok == token.CONST {
			d.Kind = KindConst
		}
		d.Signature = fmt.Sprintf("%s %s", gd.Tok, d.Name)
	default:
		return Decl{}, false
	}

	d.StartLine, d.EndLine = p.span(gd.Doc, gd.Pos(), gd.End())
	return d, true
}

func (p *Parser) span(doc *ast.CommentGroup, start, end token.Pos) (int, int) {
	if doc != nil {
		start = doc.Pos()
	}
	return p.fset.Position(start).Line, p.fset.Position(end).Line
}

// receiverType extracts the receiver type name from a method, without pointer
// or type parameters
func receiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverType(t.X)
	case *ast.IndexExpr:
		return receiverType(t.X)
	case *ast.IndexListExpr:
		return receiverType(t.X)
	case *ast.Ident:
		return t.Name
	}
	return ""
}

func functionSignature(fn *ast.FuncDecl) string {
	var sig strings.Builder
	sig.WriteString("func ")
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		sig.WriteString("(")
		sig.WriteString(exprToString(fn.Recv.List[0].Type))
		sig.WriteString(") ")
	}
	sig.WriteString(fn.Name.Name)
	sig.WriteString("(")
	sig.WriteString(fieldList(fn.Type.Params))
	sig.WriteString(")")

	if results := fieldList(fn.Type.Results); results != "" {
		if fn.Type.Results.NumFields() > 1 || len(fn.Type.Results.List[0].Names) > 0 {
			sig.WriteString(" (" + results + ")")
		} else {
			sig.WriteString(" " + results)
		}
	}
	return sig.String()
}

func fieldList(fl *ast.FieldList) string {
	if fl == nil || len(fl.List) == 0 {
		return ""
	}

	var parts []string
	for _, field := range fl.List {
		typ := exprToString(field.Type)
		if len(field.Names) == 0 {
			parts = append(parts, typ)
			continue
		}
		for _, name := range field.Names {
			parts = append(parts, name.Name+" "+typ)
		}
	}
	return strings.Join(parts, ", ")
}

func exprToString(expr ast.Expr) string {
	switch t := expr.(type) {
	case nil:
		return ""
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + exprToString(t.X)
	case *ast.ArrayType:
		return "[]" + exprToString(t.Elt)
	case *ast.MapType:
		return fmt.Sprintf("map[%s]%s", exprToString(t.Key), exprToString(t.Value))
	case *ast.ChanType:
		return "chan " + exprToString(t.Value)
	case *ast.SelectorExpr:
		return exprToString(t.X) + "." + t.Sel.Name
	case *ast.Ellipsis:
		return "..." + exprToString(t.Elt)
	case *ast.IndexExpr:
		return exprToString(t.X) + "[" + exprToString(t.Index) + "]"
	case *ast.FuncType:
		return "func(...)"
	case *ast.StructType:
		return "struct{...}"
	case *ast.InterfaceType:
		return "interface{...}"
	default:
		return "..."
	}
}

func docText(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}
