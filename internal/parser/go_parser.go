package parser

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"unicode"

	"codeforge/internal/logging"
)

// GoParser implements CodeParser for Go source files using the standard
// library's go/ast package — no third-party grammar is needed for Go
// itself, so it stays on go/parser per spec.md §4.A's per-language
// extraction contract.
type GoParser struct{}

// NewGoParser constructs a GoParser.
func NewGoParser() *GoParser { return &GoParser{} }

func (p *GoParser) Language() string               { return "go" }
func (p *GoParser) SupportedExtensions() []string   { return []string{".go"} }

func (p *GoParser) Parse(path string, content []byte) (ParsedFile, error) {
	timer := logging.StartTimer(logging.CategoryParser, "go.Parse")
	defer timer.Stop()

	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		// Best-effort: go/parser returns a partial AST alongside the error
		// when it can; recover what we can rather than dropping everything.
		if node == nil {
			return ParsedFile{Language: "go", Errors: []ParseError{{Message: err.Error()}}}, nil
		}
	}

	pf := ParsedFile{Language: "go"}
	if err != nil {
		pf.Errors = append(pf.Errors, ParseError{Message: err.Error()})
	}

	structReceivers := map[string]bool{}
	for _, decl := range node.Decls {
		if gd, ok := decl.(*ast.GenDecl); ok && gd.Tok == token.TYPE {
			for _, spec := range gd.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				switch ts.Type.(type) {
				case *ast.StructType:
					structReceivers[ts.Name.Name] = true
					pf.Types = append(pf.Types, TypeDecl{
						Name: ts.Name.Name, Kind: TypeKindStruct,
						Line: fset.Position(ts.Pos()).Line, IsPublic: isExported(ts.Name.Name),
						Docstring: docText(gd.Doc),
					})
				case *ast.InterfaceType:
					pf.Types = append(pf.Types, TypeDecl{
						Name: ts.Name.Name, Kind: TypeKindInterface,
						Line: fset.Position(ts.Pos()).Line, IsPublic: isExported(ts.Name.Name),
						Docstring: docText(gd.Doc),
					})
				}
			}
		}
	}

	for _, decl := range node.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		fn := Function{
			Name:      fd.Name.Name,
			Line:      fset.Position(fd.Pos()).Line,
			IsPublic:  isExported(fd.Name.Name),
			Docstring: docText(fd.Doc),
			Signature: signatureOf(fset, fd),
		}
		if fd.Recv != nil && len(fd.Recv.List) > 0 {
			fn.Receiver = receiverTypeName(fd.Recv.List[0].Type)
		}
		pf.Functions = append(pf.Functions, fn)

		if fd.Body != nil {
			callerName := fn.Name
			if fn.Receiver != "" {
				callerName = fn.Receiver + "." + fn.Name
			}
			ast.Inspect(fd.Body, func(n ast.Node) bool {
				call, ok := n.(*ast.CallExpr)
				if !ok {
					return true
				}
				if callee := calleeName(call.Fun); callee != "" {
					pf.Calls = append(pf.Calls, CallEdge{
						Caller: callerName, Callee: callee, Line: fset.Position(call.Pos()).Line,
					})
				}
				return true
			})
		}
	}

	for _, imp := range node.Imports {
		rawPath := strings.Trim(imp.Path.Value, `"`)
		pf.Imports = append(pf.Imports, Import{
			RawPath: rawPath,
			Line:    fset.Position(imp.Pos()).Line,
			Hint:    importHint(rawPath),
		})
	}

	return pf, nil
}

func isExported(name string) bool {
	if name == "" {
		return false
	}
	return unicode.IsUpper(rune(name[0]))
}

func docText(cg *ast.CommentGroup) string {
	if cg == nil {
		return ""
	}
	return strings.TrimSpace(cg.Text())
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	default:
		return ""
	}
}

func calleeName(expr ast.Expr) string {
	switch fn := expr.(type) {
	case *ast.Ident:
		return fn.Name
	case *ast.SelectorExpr:
		if ident, ok := fn.X.(*ast.Ident); ok {
			return ident.Name + "." + fn.Sel.Name
		}
		return fn.Sel.Name
	default:
		return ""
	}
}

// signatureOf renders the declaration line (receiver + name + params +
// results), preserving Go-native syntax per §4.A.
func signatureOf(fset *token.FileSet, fd *ast.FuncDecl) string {
	var b strings.Builder
	b.WriteString("func ")
	if fd.Recv != nil && len(fd.Recv.List) > 0 {
		b.WriteString("(")
		b.WriteString(exprString(fd.Recv.List[0].Type))
		b.WriteString(") ")
	}
	b.WriteString(fd.Name.Name)
	b.WriteString("(")
	for i, field := range fd.Type.Params.List {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(exprString(field.Type))
	}
	b.WriteString(")")
	if fd.Type.Results != nil && len(fd.Type.Results.List) > 0 {
		b.WriteString(" ")
		if len(fd.Type.Results.List) > 1 {
			b.WriteString("(")
		}
		for i, field := range fd.Type.Results.List {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(exprString(field.Type))
		}
		if len(fd.Type.Results.List) > 1 {
			b.WriteString(")")
		}
	}
	return b.String()
}

func exprString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + exprString(t.X)
	case *ast.SelectorExpr:
		return exprString(t.X) + "." + t.Sel.Name
	case *ast.ArrayType:
		return "[]" + exprString(t.Elt)
	case *ast.MapType:
		return "map[" + exprString(t.Key) + "]" + exprString(t.Value)
	case *ast.Ellipsis:
		return "..." + exprString(t.Elt)
	case *ast.InterfaceType:
		return "interface{}"
	default:
		return "?"
	}
}

func importHint(rawPath string) string {
	if strings.HasPrefix(rawPath, ".") {
		return "relative"
	}
	return "module"
}
