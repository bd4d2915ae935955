package parser

import (
	"path/filepath"
	"strings"
	"sync"

	"codeforge/internal/logging"
)

// Dispatcher maps file extensions to registered CodeParsers and is the
// single extension point named in §4.A "Extensibility": add a language by
// registering one more CodeParser, nothing else changes.
type Dispatcher struct {
	mu      sync.RWMutex
	parsers map[string]CodeParser // extension -> parser
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{parsers: make(map[string]CodeParser)}
}

// Register adds parser for each of its supported extensions, replacing any
// parser previously registered for that extension.
func (d *Dispatcher) Register(p CodeParser) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ext := range p.SupportedExtensions() {
		ext = normalizeExt(ext)
		logging.ParserDebug("dispatcher: registering %s parser for %s", p.Language(), ext)
		d.parsers[ext] = p
	}
}

// Lookup returns the parser registered for path's extension, or (nil,
// false) when the extension is unknown — per §4.A, unknown extensions are
// skipped, not an error.
func (d *Dispatcher) Lookup(path string) (CodeParser, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.parsers[normalizeExt(filepath.Ext(path))]
	return p, ok
}

// Parse dispatches path/content to the registered parser. A parse failure
// is caught and converted into an empty ParsedFile with a recorded error
// per §4.A's failure semantics — the file is still recorded by the caller
// (the sync engine) so the tree stays consistent.
func (d *Dispatcher) Parse(path string, content []byte) (ParsedFile, bool) {
	p, ok := d.Lookup(path)
	if !ok {
		return ParsedFile{}, false
	}

	result, err := func() (pf ParsedFile, err error) {
		defer func() {
			if r := recover(); r != nil {
				pf = ParsedFile{Language: p.Language()}
				err = nil
				pf.Errors = append(pf.Errors, ParseError{Message: recoverMessage(r)})
			}
		}()
		return p.Parse(path, content)
	}()

	if err != nil {
		logging.Get(logging.CategoryParser).Warn("parse failed for %s: %v", path, err)
		result = ParsedFile{Language: p.Language(), Errors: []ParseError{{Message: err.Error()}}}
	}
	return result, true
}

// SupportedExtensions returns every registered extension.
func (d *Dispatcher) SupportedExtensions() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	exts := make([]string, 0, len(d.parsers))
	for ext := range d.parsers {
		exts = append(exts, ext)
	}
	return exts
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func recoverMessage(r interface{}) string {
	if err, ok := r.(error); ok {
		return "panic: " + err.Error()
	}
	return "panic during parse"
}

// Default returns a Dispatcher with every built-in extractor registered:
// Go via go/ast, Python/TypeScript/JavaScript/Rust via tree-sitter, and a
// regex-based fallback for the remaining spec languages (§4.A).
func Default() *Dispatcher {
	d := NewDispatcher()
	d.Register(NewGoParser())
	d.Register(NewPythonParser())
	d.Register(NewTypeScriptParser())
	d.Register(NewRustParser())
	d.Register(NewFallbackParser("java", []string{".java"}))
	d.Register(NewFallbackParser("c", []string{".c", ".h"}))
	d.Register(NewFallbackParser("cpp", []string{".cpp", ".cc", ".cxx", ".hpp"}))
	d.Register(NewFallbackParser("ruby", []string{".rb"}))
	d.Register(NewFallbackParser("php", []string{".php"}))
	d.Register(NewFallbackParser("kotlin", []string{".kt", ".kts"}))
	d.Register(NewFallbackParser("swift", []string{".swift"}))
	d.Register(NewFallbackParser("bash", []string{".sh", ".bash"}))
	return d
}
