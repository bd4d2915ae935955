package parser

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"codeforge/internal/logging"
)

// RustParser implements CodeParser for Rust using Tree-sitter. It also
// emits ImplBlocks and classifies external traits per §4.D.6: a trait name
// not declared locally in this file is treated as external (a black-box
// classification, per the spec's open question — no further heuristic is
// layered on top).
type RustParser struct {
	sitterParser *sitter.Parser
}

// NewRustParser constructs a RustParser with the Rust grammar loaded.
func NewRustParser() *RustParser {
	p := sitter.NewParser()
	p.SetLanguage(rust.GetLanguage())
	return &RustParser{sitterParser: p}
}

func (p *RustParser) Language() string             { return "rs" }
func (p *RustParser) SupportedExtensions() []string { return []string{".rs"} }

func (p *RustParser) Parse(path string, content []byte) (ParsedFile, error) {
	timer := logging.StartTimer(logging.CategoryParser, "rust.Parse")
	defer timer.Stop()

	tree, err := p.sitterParser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return ParsedFile{Language: "rs"}, err
	}
	defer tree.Close()

	pf := ParsedFile{Language: "rs"}
	localTraits := map[string]bool{}
	collectLocalTraits(tree.RootNode(), content, localTraits)
	walkRust(tree.RootNode(), content, "", localTraits, &pf)
	return pf, nil
}

func collectLocalTraits(node *sitter.Node, content []byte, out map[string]bool) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "trait_item" {
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				out[string(content[nameNode.StartByte():nameNode.EndByte()])] = true
			}
		}
		collectLocalTraits(child, content, out)
	}
}

func walkRust(node *sitter.Node, content []byte, currentImpl string, localTraits map[string]bool, pf *ParsedFile) {
	text := func(n *sitter.Node) string { return string(content[n.StartByte():n.EndByte()]) }
	hasPub := func(n *sitter.Node) bool {
		return strings.HasPrefix(strings.TrimSpace(text(n)), "pub")
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "struct_item":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				name := text(nameNode)
				pf.Types = append(pf.Types, TypeDecl{
					Name: name, Kind: TypeKindStruct,
					Line: int(child.StartPoint().Row) + 1, IsPublic: hasPub(child),
				})
			}

		case "trait_item":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				name := text(nameNode)
				pf.Types = append(pf.Types, TypeDecl{
					Name: name, Kind: TypeKindTrait,
					Line: int(child.StartPoint().Row) + 1, IsPublic: hasPub(child),
				})
			}

		case "impl_item":
			typeNode := child.ChildByFieldName("type")
			traitNode := child.ChildByFieldName("trait")
			typeName := ""
			if typeNode != nil {
				typeName = text(typeNode)
			}
			traitName := ""
			if traitNode != nil {
				traitName = text(traitNode)
			}
			if typeName != "" {
				impl := ImplBlock{
					TypeName: typeName, TraitName: traitName,
					Line: int(child.StartPoint().Row) + 1,
				}
				if traitName != "" && !localTraits[traitName] {
					impl.IsExternal = true
					impl.ExternalSrc = "rust"
				}
				pf.Impls = append(pf.Impls, impl)
			}
			if body := child.ChildByFieldName("body"); body != nil {
				walkRust(body, content, typeName, localTraits, pf)
			}

		case "function_item":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := text(nameNode)
			fn := Function{
				Name: name, Line: int(child.StartPoint().Row) + 1,
				IsPublic: hasPub(child),
				IsAsync:  strings.Contains(text(child)[:minInt(len(text(child)), 20)], "async"),
				Receiver: currentImpl,
			}
			if params := child.ChildByFieldName("parameters"); params != nil {
				fn.Signature = "fn " + name + text(params)
			}
			pf.Functions = append(pf.Functions, fn)

		case "use_declaration":
			pf.Imports = append(pf.Imports, Import{
				RawPath: strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(text(child)), "use "), ";"),
				Line:    int(child.StartPoint().Row) + 1,
				Hint:    "module",
			})

		case "call_expression":
			if fnExpr := child.ChildByFieldName("function"); fnExpr != nil {
				pf.Calls = append(pf.Calls, CallEdge{
					Callee: text(fnExpr), Line: int(child.StartPoint().Row) + 1,
				})
			}
			walkRust(child, content, currentImpl, localTraits, pf)

		default:
			walkRust(child, content, currentImpl, localTraits, pf)
		}
	}
}
