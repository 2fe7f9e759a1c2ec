package analysis

import (
	"context"
	"fmt"
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// declaration is a top-level type or function found in a Go file.
type declaration struct {
	Name string
	Kind string // struct, interface, type, function
	node *sitter.Node
}

// reference is a use of a named symbol inside a declaration. Package is the
// import path for qualified references and "" for the file's own package.
type reference struct {
	From    string
	Package string
	Name    string
	Kind    string // use, call
}

// goFile holds what the analyzer needs from one parsed Go source file.
type goFile struct {
	Package      string
	Imports      map[string]string // local name -> import path
	Declarations []declaration
	References   []reference
	HasErrors    bool
}

type goParser struct {
	parser *sitter.Parser
}

func newGoParser() *goParser {
	p := sitter.NewParser()
	p.SetLanguage(golang.GetLanguage())
	return &goParser{parser: p}
}

func (p *goParser) parse(ctx context.Context, content []byte) (*goFile, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing failed: %w", err)
	}
	root := tree.RootNode()

	f := &goFile{Imports: make(map[string]string), HasErrors: root.HasError()}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "package_clause":
			if id := firstNamed(n, "package_identifier"); id != nil {
				f.Package = id.Content(content)
			}
		case "import_declaration":
			collectImports(n, content, f.Imports)
		case "type_declaration":
			for j := 0; j < int(n.NamedChildCount()); j++ {
				spec := n.NamedChild(j)
				if spec.Type() != "type_spec" && spec.Type() != "type_alias" {
					continue
				}
				name := spec.ChildByFieldName("name")
				if name == nil {
					continue
				}
				f.Declarations = append(f.Declarations, declaration{
					Name: name.Content(content),
					Kind: typeKind(spec.ChildByFieldName("type")),
					node: spec,
				})
			}
		case "function_declaration":
			if name := n.ChildByFieldName("name"); name != nil {
				f.Declarations = append(f.Declarations, declaration{Name: name.Content(content), Kind: "function", node: n})
			}
		case "method_declaration":
			// Methods are folded into their receiver type.
			if recv := receiverType(n, content); recv != "" {
				f.Declarations = append(f.Declarations, declaration{Name: recv, Kind: "", node: n})
			}
		}
	}

	for _, d := range f.Declarations {
		f.References = append(f.References, collectReferences(d, content, f.Imports)...)
	}
	return f, nil
}

func firstNamed(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func collectImports(n *sitter.Node, content []byte, imports map[string]string) {
	iter := sitter.NewIterator(n, sitter.DFSMode)
	for {
		spec, err := iter.Next()
		if err != nil || spec == nil {
			break
		}
		if spec.Type() != "import_spec" {
			continue
		}
		pathNode := spec.ChildByFieldName("path")
		if pathNode == nil {
			continue
		}
		importPath := strings.Trim(pathNode.Content(content), "\"`")
		local := path.Base(importPath)
		if alias := spec.ChildByFieldName("name"); alias != nil {
			local = alias.Content(content)
		}
		if local == "_" || local == "." {
			continue
		}
		imports[local] = importPath
	}
}

func typeKind(n *sitter.Node) string {
	if n == nil {
		return "type"
	}
	switch n.Type() {
	case "struct_type":
		return "struct"
	case "interface_type":
		return "interface"
	default:
		return "type"
	}
}

func receiverType(n *sitter.Node, content []byte) string {
	recv := n.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	iter := sitter.NewIterator(recv, sitter.DFSMode)
	for {
		c, err := iter.Next()
		if err != nil || c == nil {
			return ""
		}
		if c.Type() == "type_identifier" {
			return c.Content(content)
		}
	}
}

// collectReferences finds the types and package functions a declaration uses.
func collectReferences(d declaration, content []byte, imports map[string]string) []reference {
	var refs []reference
	iter := sitter.NewIterator(d.node, sitter.DFSMode)
	for {
		n, err := iter.Next()
		if err != nil || n == nil {
			break
		}
		switch n.Type() {
		case "qualified_type":
			pkg := n.ChildByFieldName("package")
			name := n.ChildByFieldName("name")
			if pkg == nil || name == nil {
				continue
			}
			if importPath, ok := imports[pkg.Content(content)]; ok {
				refs = append(refs, reference{From: d.Name, Package: importPath, Name: name.Content(content), Kind: "use"})
			}
		case "type_identifier":
			if isDeclaredName(n) {
				continue
			}
			refs = append(refs, reference{From: d.Name, Name: n.Content(content), Kind: "use"})
		case "call_expression":
			fn := n.ChildByFieldName("function")
			if fn == nil {
				continue
			}
			switch fn.Type() {
			case "identifier":
				refs = append(refs, reference{From: d.Name, Name: fn.Content(content), Kind: "call"})
			case "selector_expression":
				operand := fn.ChildByFieldName("operand")
				field := fn.ChildByFieldName("field")
				if operand == nil || field == nil || operand.Type() != "identifier" {
					continue
				}
				if importPath, ok := imports[operand.Content(content)]; ok {
					refs = append(refs, reference{From: d.Name, Package: importPath, Name: field.Content(content), Kind: "call"})
				}
			}
		}
	}
	return refs
}

// isDeclaredName reports whether a type identifier is the name being declared
// or the name part of a qualified type, neither of which is a local reference.
func isDeclaredName(n *sitter.Node) bool {
	p := n.Parent()
	if p == nil {
		return false
	}
	switch p.Type() {
	case "qualified_type":
		return true
	case "type_spec", "type_alias":
		name := p.ChildByFieldName("name")
		return name != nil && name.StartByte() == n.StartByte()
	}
	return false
}
