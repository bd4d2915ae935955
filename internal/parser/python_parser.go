package parser

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"codeforge/internal/logging"
)

// PythonParser implements CodeParser for Python using Tree-sitter, mirroring
// the walk-the-AST shape used for every tree-sitter-backed language here.
type PythonParser struct {
	sitterParser *sitter.Parser
}

// NewPythonParser constructs a PythonParser with the Python grammar loaded.
func NewPythonParser() *PythonParser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &PythonParser{sitterParser: p}
}

func (p *PythonParser) Language() string             { return "py" }
func (p *PythonParser) SupportedExtensions() []string { return []string{".py", ".pyw"} }

func (p *PythonParser) Parse(path string, content []byte) (ParsedFile, error) {
	timer := logging.StartTimer(logging.CategoryParser, "python.Parse")
	defer timer.Stop()

	tree, err := p.sitterParser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return ParsedFile{Language: "py"}, err
	}
	defer tree.Close()

	pf := ParsedFile{Language: "py"}
	walkPython(tree.RootNode(), content, "", &pf)
	return pf, nil
}

func walkPython(node *sitter.Node, content []byte, currentClass string, pf *ParsedFile) {
	text := func(n *sitter.Node) string { return string(content[n.StartByte():n.EndByte()]) }

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "class_definition":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := text(nameNode)
			pf.Types = append(pf.Types, TypeDecl{
				Name:     name,
				Kind:     TypeKindClass,
				Line:     int(child.StartPoint().Row) + 1,
				IsPublic: !strings.HasPrefix(name, "_"),
			})
			if body := child.ChildByFieldName("body"); body != nil {
				walkPython(body, content, name, pf)
			}

		case "decorated_definition":
			// Decorators wrap a function_definition or class_definition as a
			// named child; recurse so that inner case matches it directly.
			walkPython(child, content, currentClass, pf)

		case "function_definition":
			fnNode := child
			nameNode := fnNode.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := text(nameNode)
			isAsync := hasAsyncKeyword(fnNode, content)
			fn := Function{
				Name:     name,
				Line:     int(fnNode.StartPoint().Row) + 1,
				IsPublic: !strings.HasPrefix(name, "_"),
				IsAsync:  isAsync,
				Receiver: currentClass,
			}
			if params := fnNode.ChildByFieldName("parameters"); params != nil {
				prefix := "def "
				if isAsync {
					prefix = "async def "
				}
				fn.Signature = prefix + name + text(params)
			}
			pf.Functions = append(pf.Functions, fn)
			walkPython(fnNode, content, currentClass, pf)

		case "import_statement", "import_from_statement":
			if imp, ok := extractPythonImport(child, text); ok {
				pf.Imports = append(pf.Imports, imp)
			}

		case "call":
			if fnExpr := child.ChildByFieldName("function"); fnExpr != nil {
				pf.Calls = append(pf.Calls, CallEdge{
					Callee: text(fnExpr),
					Line:   int(child.StartPoint().Row) + 1,
				})
			}
			walkPython(child, content, currentClass, pf)

		default:
			walkPython(child, content, currentClass, pf)
		}
	}
}

func hasAsyncKeyword(fnNode *sitter.Node, content []byte) bool {
	parent := fnNode.Parent()
	if parent == nil {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(string(content[parent.StartByte():fnNode.StartByte()])), "async")
}

// extractPythonImport pulls the dotted module path out of an
// import_statement/import_from_statement node, rather than the statement's
// verbatim source text, so the syncengine's import resolver sees something
// shaped like a path ("os.path", ".sibling") instead of "import os.path".
func extractPythonImport(node *sitter.Node, text func(*sitter.Node) string) (Import, bool) {
	line := int(node.StartPoint().Row) + 1

	switch node.Type() {
	case "import_statement":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			c := node.NamedChild(i)
			switch c.Type() {
			case "dotted_name":
				return Import{RawPath: text(c), Line: line, Hint: "module"}, true
			case "aliased_import":
				if name := c.ChildByFieldName("name"); name != nil {
					return Import{RawPath: text(name), Line: line, Hint: "module"}, true
				}
			}
		}

	case "import_from_statement":
		mod := node.ChildByFieldName("module_name")
		if mod == nil {
			return Import{}, false
		}
		if mod.Type() == "relative_import" {
			return Import{RawPath: text(mod), Line: line, Hint: "relative"}, true
		}
		return Import{RawPath: text(mod), Line: line, Hint: "module"}, true
	}
	return Import{}, false
}
