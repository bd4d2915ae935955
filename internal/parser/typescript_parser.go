package parser

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"codeforge/internal/logging"
)

// TypeScriptParser implements CodeParser for TypeScript/JavaScript using
// Tree-sitter, dispatching between the two grammars by extension the same
// way the source file's extension already routed here.
type TypeScriptParser struct {
	tsParser *sitter.Parser
	jsParser *sitter.Parser
}

// NewTypeScriptParser constructs a TypeScriptParser with both grammars loaded.
func NewTypeScriptParser() *TypeScriptParser {
	ts := sitter.NewParser()
	ts.SetLanguage(typescript.GetLanguage())
	js := sitter.NewParser()
	js.SetLanguage(javascript.GetLanguage())
	return &TypeScriptParser{tsParser: ts, jsParser: js}
}

func (p *TypeScriptParser) Language() string { return "ts" }
func (p *TypeScriptParser) SupportedExtensions() []string {
	return []string{".ts", ".tsx", ".js", ".jsx", ".mjs"}
}

func (p *TypeScriptParser) Parse(path string, content []byte) (ParsedFile, error) {
	timer := logging.StartTimer(logging.CategoryParser, "typescript.Parse")
	defer timer.Stop()

	sp := p.tsParser
	lang := "ts"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".js" || ext == ".jsx" || ext == ".mjs" {
		sp = p.jsParser
		lang = "js"
	}

	tree, err := sp.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return ParsedFile{Language: lang}, err
	}
	defer tree.Close()

	pf := ParsedFile{Language: lang}
	walkTS(tree.RootNode(), content, "", &pf)
	return pf, nil
}

func walkTS(node *sitter.Node, content []byte, currentClass string, pf *ParsedFile) {
	text := func(n *sitter.Node) string { return string(content[n.StartByte():n.EndByte()]) }
	isExported := func(n *sitter.Node) bool {
		parent := n.Parent()
		return parent != nil && strings.HasPrefix(strings.TrimSpace(text(parent)), "export")
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "class_declaration":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := text(nameNode)
			pf.Types = append(pf.Types, TypeDecl{
				Name: name, Kind: TypeKindClass,
				Line: int(child.StartPoint().Row) + 1, IsPublic: isExported(child),
			})
			if body := child.ChildByFieldName("body"); body != nil {
				walkTS(body, content, name, pf)
			}

		case "interface_declaration":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			pf.Types = append(pf.Types, TypeDecl{
				Name: text(nameNode), Kind: TypeKindInterface,
				Line: int(child.StartPoint().Row) + 1, IsPublic: isExported(child),
			})

		case "function_declaration", "method_definition":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := text(nameNode)
			isAsync := strings.Contains(text(child)[:minInt(len(text(child)), 20)], "async")
			public := isExported(child)
			if currentClass != "" {
				public = !strings.HasPrefix(name, "#") && !strings.HasPrefix(name, "_")
			}
			fn := Function{
				Name: name, Line: int(child.StartPoint().Row) + 1,
				IsPublic: public,
				IsAsync:  isAsync,
				Receiver: currentClass,
			}
			if params := child.ChildByFieldName("parameters"); params != nil {
				fn.Signature = name + text(params)
			}
			pf.Functions = append(pf.Functions, fn)
			walkTS(child, content, currentClass, pf)

		case "import_statement":
			srcNode := child.ChildByFieldName("source")
			raw := ""
			if srcNode != nil {
				raw = strings.Trim(text(srcNode), `'"`)
			}
			pf.Imports = append(pf.Imports, Import{
				RawPath: raw, Line: int(child.StartPoint().Row) + 1, Hint: tsImportHint(raw),
			})

		case "call_expression":
			if fnExpr := child.ChildByFieldName("function"); fnExpr != nil {
				pf.Calls = append(pf.Calls, CallEdge{
					Callee: text(fnExpr), Line: int(child.StartPoint().Row) + 1,
				})
			}
			walkTS(child, content, currentClass, pf)

		default:
			walkTS(child, content, currentClass, pf)
		}
	}
}

func tsImportHint(raw string) string {
	if strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../") {
		return "relative"
	}
	return "module"
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
