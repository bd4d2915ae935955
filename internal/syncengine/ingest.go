package syncengine

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"codeforge/internal/eventbus"
	"codeforge/internal/graph"
	"codeforge/internal/logging"
	"codeforge/internal/model"
	"codeforge/internal/parser"
	"codeforge/internal/search"
)

// ingestOne parses already-read content and atomically replaces the symbol
// children of one file, then mirrors the structural digest into the search index
// (§4.D.3 "Per-file ingest"). existed tells the caller whether to emit a
// created or updated event.
func (e *Engine) ingestOne(ctx context.Context, project model.Project, relPath string, content []byte, hash string, existed bool) error {
	var retErr error
	e.fileLocks.withLock(lockKey(project.ID, relPath), func() {
		pf, _ := e.dispatcher.Parse(relPath, content)

		ids := make(map[string]string, len(pf.Functions)) // function name -> generated ID, for intra-file call resolution
		var syms graph.FileSymbols
		for _, fn := range pf.Functions {
			id := uuid.NewString()
			ids[fn.Name] = id
			syms.Functions = append(syms.Functions, model.Function{
				ID: id, ProjectID: project.ID, FilePath: relPath, Name: fn.Name,
				Signature: fn.Signature, Line: fn.Line, IsPublic: fn.IsPublic,
				IsAsync: fn.IsAsync, Docstring: fn.Docstring,
			})
		}
		for _, ty := range pf.Types {
			syms.Types = append(syms.Types, model.TypeDecl{
				ID: uuid.NewString(), ProjectID: project.ID, FilePath: relPath,
				Kind: model.TypeKind(ty.Kind), Name: ty.Name, Line: ty.Line,
				IsPublic: ty.IsPublic, Docstring: ty.Docstring,
			})
		}
		for _, imp := range pf.Imports {
			syms.Imports = append(syms.Imports, model.Import{
				ID: uuid.NewString(), ProjectID: project.ID, FilePath: relPath,
				RawPath: imp.RawPath, Hint: imp.Hint,
			})
		}
		type externalImpl struct {
			id   string
			impl parser.ImplBlock
		}
		var externalImpls []externalImpl
		for _, impl := range pf.Impls {
			implID := uuid.NewString()
			syms.Impls = append(syms.Impls, model.ImplBlock{
				ID: implID, ProjectID: project.ID, FilePath: relPath,
				TypeName: impl.TypeName, TraitName: impl.TraitName, Line: impl.Line,
			})
			if impl.IsExternal {
				externalImpls = append(externalImpls, externalImpl{id: implID, impl: impl})
			}
		}
		for _, call := range pf.Calls {
			callerID, ok := ids[call.Caller]
			if !ok {
				continue
			}
			calleeID, ok := ids[call.Callee]
			if !ok {
				continue // callee outside this file; cross-file call resolution is out of scope
			}
			syms.Calls = append(syms.Calls, graph.CallEdge{CallerID: callerID, CalleeID: calleeID})
		}

		if err := e.graph.ReplaceFileSymbols(ctx, project.ID, relPath, syms); err != nil {
			retErr = err
			return
		}

		for _, ext := range externalImpls {
			if err := e.syncExternalTrait(ctx, project.ID, ext.id, ext.impl); err != nil {
				retErr = err
				return
			}
		}

		f := model.File{ProjectID: project.ID, Path: relPath, Language: pf.Language, ContentHash: hash, Size: int64(len(content))}
		if _, err := e.graph.UpsertFile(ctx, f); err != nil {
			retErr = err
			return
		}

		if err := e.mirrorCode(ctx, project, relPath, pf); err != nil {
			logging.Get(logging.CategorySync).Warn("search mirror failed for %s after retries: %v", relPath, err)
		}

		action := eventbus.ActionUpdated
		if !existed {
			action = eventbus.ActionCreated
		}
		e.publish(ctx, eventbus.Event{EntityType: model.EntityFile, EntityID: relPath, Action: action, ProjectID: project.ID})
		logging.SyncDebug("ingested %s (%d functions, %d types, %d imports)", relPath, len(syms.Functions), len(syms.Types), len(syms.Imports))
	})
	return retErr
}

func (e *Engine) syncExternalTrait(ctx context.Context, projectID, implID string, impl parser.ImplBlock) error {
	if err := e.graph.UpsertExternalTrait(ctx, model.ExternalTrait{Name: impl.TraitName, SourceCrate: impl.ExternalSrc, IsExternal: true}); err != nil {
		return err
	}
	return e.graph.AddEdge(ctx, graph.Edge{
		FromType: model.EntityImplBlock, FromID: implID,
		RelType: model.RelImplementsTrait, ToType: model.EntityExtTrait, ToID: impl.TraitName,
		ProjectID: projectID,
	})
}

func (e *Engine) mirrorCode(ctx context.Context, project model.Project, relPath string, pf parser.ParsedFile) error {
	var symbols, docstrings, signatures, imports []string
	for _, fn := range pf.Functions {
		symbols = append(symbols, fn.Name)
		signatures = append(signatures, fn.Signature)
		if fn.Docstring != "" {
			docstrings = append(docstrings, fn.Docstring)
		}
	}
	for _, ty := range pf.Types {
		symbols = append(symbols, ty.Name)
		if ty.Docstring != "" {
			docstrings = append(docstrings, ty.Docstring)
		}
	}
	for _, imp := range pf.Imports {
		imports = append(imports, imp.RawPath)
	}

	doc := search.CodeDoc{
		ProjectID: project.ID, Path: relPath, Language: pf.Language,
		Symbols:    strings.Join(symbols, " "),
		Docstrings: strings.Join(docstrings, "\n"),
		Signatures: strings.Join(signatures, "\n"),
		Imports:    strings.Join(imports, " "),
	}
	return retrySearchWrite(ctx, func() error { return e.search.IndexCode(ctx, doc) })
}

// removeOne cascade-deletes a File and its children and removes its search
// document (§4.D.4 "Removed files").
func (e *Engine) removeOne(ctx context.Context, project model.Project, relPath string) error {
	var retErr error
	e.fileLocks.withLock(lockKey(project.ID, relPath), func() {
		if err := e.graph.DeleteFile(ctx, project.ID, relPath); err != nil {
			retErr = err
			return
		}
		if err := retrySearchWrite(ctx, func() error { return e.search.RemoveCode(ctx, project.ID, relPath) }); err != nil {
			logging.Get(logging.CategorySync).Warn("search removal failed for %s after retries: %v", relPath, err)
		}
		e.publish(ctx, eventbus.Event{EntityType: model.EntityFile, EntityID: relPath, Action: eventbus.ActionDeleted, ProjectID: project.ID})
		logging.SyncDebug("removed %s", relPath)
	})
	return retErr
}

func lockKey(projectID, path string) string { return projectID + "\x00" + path }
