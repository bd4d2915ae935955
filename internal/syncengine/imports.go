package syncengine

import (
	"context"
	"path"
	"sort"
	"strings"

	"codeforge/internal/graph"
	"codeforge/internal/model"
)

// conventionRoots are the source-root prefixes tried when an import's raw
// path doesn't resolve relative to the project root directly — the
// "language convention" step of §4.D.5.
var conventionRoots = []string{"src/", "lib/", "pkg/", "internal/", "cmd/"}

// resolveImports attempts to resolve every unresolved import in scope (or
// every unresolved import in the project, when scope is nil), in the order
// §4.D.5 specifies: explicit relative, project-root-relative, language
// convention, fuzzy basename. A resolved import gets resolved_file set and
// an IMPORTS edge File->File; unresolved imports are left as-is.
func (e *Engine) resolveImports(ctx context.Context, projectID string, scope map[string]bool) error {
	unresolved, err := e.graph.UnresolvedImports(ctx, projectID)
	if err != nil {
		return err
	}

	pathSet, basenames, err := e.projectFileIndex(ctx, projectID)
	if err != nil {
		return err
	}
	exts := e.dispatcher.SupportedExtensions()
	sort.Strings(exts)

	for _, imp := range unresolved {
		if scope != nil && !scope[imp.FilePath] {
			continue
		}
		resolved, ok := resolveOne(imp, pathSet, basenames, exts)
		if !ok {
			continue
		}
		if err := e.graph.ResolveImport(ctx, imp.ID, resolved); err != nil {
			return err
		}
		if err := e.graph.AddEdge(ctx, graph.Edge{
			FromType: model.EntityFile, FromID: imp.FilePath,
			RelType: model.RelImports, ToType: model.EntityFile, ToID: resolved,
			ProjectID: projectID,
		}); err != nil {
			return err
		}
	}
	return nil
}

func resolveOne(imp model.Import, pathSet map[string]bool, basenames map[string][]string, exts []string) (string, bool) {
	norm, relative := normalizeImportPath(imp)

	if relative {
		dir := path.Dir(imp.FilePath)
		candidate := path.Clean(path.Join(dir, norm))
		if resolved, ok := tryWithExtensions(candidate, pathSet, exts); ok {
			return resolved, true
		}
	}

	candidate := path.Clean(strings.TrimPrefix(norm, "/"))
	if resolved, ok := tryWithExtensions(candidate, pathSet, exts); ok {
		return resolved, true
	}

	for _, root := range conventionRoots {
		candidate := path.Clean(root + strings.TrimPrefix(norm, "/"))
		if resolved, ok := tryWithExtensions(candidate, pathSet, exts); ok {
			return resolved, true
		}
	}

	base := path.Base(norm)
	base = strings.TrimSuffix(base, path.Ext(base))
	if matches := basenames[base]; len(matches) > 0 {
		// Ambiguous basename matches are broken by lex order on path
		// (spec.md §9 Open Question: the source's heuristic ordering for
		// ambiguous fuzzy matches is unspecified, so ties are resolved
		// deterministically here rather than left unresolved).
		sort.Strings(matches)
		return matches[0], true
	}
	return "", false
}

// normalizeImportPath turns a parser's RawPath into the slash-delimited
// path the four resolution strategies expect, and reports whether it
// should be tried relative to the importing file's directory first.
// Go/TS-style paths pass through unchanged; Rust's "::"-delimited module
// paths and Python's dotted/relative module paths are converted (§4.D.5,
// S1: "use crate::a;" in src/b.rs must resolve against src/a.rs).
func normalizeImportPath(imp model.Import) (string, bool) {
	raw := strings.TrimSpace(imp.RawPath)

	if strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../") {
		return raw, true
	}

	if imp.Hint == "relative" {
		dots := 0
		for dots < len(raw) && raw[dots] == '.' {
			dots++
		}
		rest := strings.Trim(raw[dots:], ".")
		joined := strings.Join(strings.Split(strings.ReplaceAll(rest, ".", "/"), "/"), "/")
		prefix := strings.Repeat("../", dots-1)
		if prefix == "" {
			prefix = "./"
		}
		return prefix + joined, true
	}

	switch {
	case strings.Contains(raw, "::"):
		raw = strings.ReplaceAll(raw, "::", "/")
	case !strings.Contains(raw, "/") && strings.Contains(raw, "."):
		raw = strings.ReplaceAll(raw, ".", "/")
	}

	switch {
	case strings.HasPrefix(raw, "crate/"):
		return strings.TrimPrefix(raw, "crate/"), false
	case strings.HasPrefix(raw, "self/"):
		return strings.TrimPrefix(raw, "self/"), true
	case strings.HasPrefix(raw, "super/"):
		return "../" + strings.TrimPrefix(raw, "super/"), true
	}
	return raw, false
}

func tryWithExtensions(candidate string, pathSet map[string]bool, exts []string) (string, bool) {
	if pathSet[candidate] {
		return candidate, true
	}
	for _, ext := range exts {
		if pathSet[candidate+ext] {
			return candidate + ext, true
		}
	}
	return "", false
}

// projectFileIndex builds {full path set, basename -> matching paths} for
// every File in the project, used by the fuzzy-match step.
func (e *Engine) projectFileIndex(ctx context.Context, projectID string) (map[string]bool, map[string][]string, error) {
	pathSet := make(map[string]bool)
	basenames := make(map[string][]string)
	offset := 0
	for {
		page, total, err := e.graph.ListFiles(ctx, graph.FileFilter{ProjectID: projectID}, graph.Page{Limit: graph.MaxPageLimit, Offset: offset})
		if err != nil {
			return nil, nil, err
		}
		for _, f := range page {
			pathSet[f.Path] = true
			base := path.Base(f.Path)
			base = strings.TrimSuffix(base, path.Ext(base))
			basenames[base] = append(basenames[base], f.Path)
		}
		offset += len(page)
		if len(page) == 0 || offset >= total {
			break
		}
	}
	return pathSet, basenames, nil
}
