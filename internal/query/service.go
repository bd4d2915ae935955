// Package query implements the Query Services (§4.I): read-only
// composition over the Graph Store and Search Store answering the
// questions an agent asks while working in a codebase — search, symbol
// references, call graphs, change-impact analysis, architecture summaries,
// and trait/impl lookups.
package query

import (
	"context"
	"sort"
	"strings"

	"codeforge/internal/errs"
	"codeforge/internal/graph"
	"codeforge/internal/logging"
	"codeforge/internal/model"
	"codeforge/internal/search"
)

// Service composes the two stores behind one read surface.
type Service struct {
	graph  graph.Store
	search search.Store
}

func New(g graph.Store, s search.Store) *Service {
	return &Service{graph: g, search: s}
}

// --- Search ---

// CodeHit is one code search result resolved back to its File node.
type CodeHit struct {
	File    model.File
	Rank    float64
	Snippet string
}

// SearchCode runs query against the code index, optionally scoped to a
// project slug / language / path prefix, and resolves every hit back to
// its File node for structural detail (§4.I "Search").
func (svc *Service) SearchCode(ctx context.Context, projectSlug, lang, pathPrefix, q string, limit int) ([]CodeHit, error) {
	filter := search.CodeFilter{Language: lang}
	if projectSlug != "" {
		p, err := svc.graph.GetProjectBySlug(ctx, projectSlug)
		if err != nil {
			return nil, err
		}
		filter.ProjectID = p.ID
	}
	results, err := svc.search.SearchCode(ctx, q, filter, limit)
	if err != nil {
		return nil, err
	}
	var out []CodeHit
	for _, r := range results {
		if pathPrefix != "" && !strings.HasPrefix(r.Path, pathPrefix) {
			continue
		}
		f, ok, err := svc.graph.GetFile(ctx, r.ProjectID, r.Path)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, CodeHit{File: f, Rank: r.Rank, Snippet: r.Snippet})
	}
	logging.QueryDebug("search %q matched %d files (%d after path_prefix filter)", q, len(results), len(out))
	return out, nil
}

// --- References ---

// References answers "who names/calls this symbol" (§4.I "References").
type References struct {
	Functions []model.Function
	Types     []model.TypeDecl
	Callers   []model.Function // functions that CALL one of the matched Functions
}

func (svc *Service) FindReferences(ctx context.Context, projectID, name string) (References, error) {
	fns, err := svc.graph.FindFunctionsByName(ctx, projectID, name)
	if err != nil {
		return References{}, err
	}
	types, err := svc.graph.FindTypesByName(ctx, projectID, name)
	if err != nil {
		return References{}, err
	}

	seen := map[string]bool{}
	var callers []model.Function
	for _, fn := range fns {
		paths, err := svc.graph.Callers(ctx, projectID, fn.ID, 1)
		if err != nil {
			return References{}, err
		}
		for _, p := range paths {
			if seen[p.EntityID] {
				continue
			}
			caller, ok, err := svc.graph.FindFunctionByID(ctx, p.EntityID)
			if err != nil {
				return References{}, err
			}
			if !ok {
				continue
			}
			seen[p.EntityID] = true
			callers = append(callers, caller)
		}
	}
	sort.Slice(callers, func(i, j int) bool { return callers[i].ID < callers[j].ID })
	return References{Functions: fns, Types: types, Callers: callers}, nil
}

// --- Call graph ---

// CallGraphNode is one function reached by the call graph walk.
type CallGraphNode struct {
	Function model.Function
	Distance int
	Direction string // "caller" or "callee"
}

// CallGraphEdge is one CALLS edge surfaced by the walk.
type CallGraphEdge struct {
	CallerID string
	CalleeID string
}

// CallGraph is the {nodes, edges} answer for visualizing a function's
// neighborhood (§4.I "Call graph").
type CallGraph struct {
	Root  model.Function
	Nodes []CallGraphNode
	Edges []CallGraphEdge
}

// CallGraphOf walks both inward (callers) and outward (callees) from
// functionID up to maxDepth, returning resolved nodes and the edges
// traversed to reach them.
func (svc *Service) CallGraphOf(ctx context.Context, projectID, functionID string, maxDepth int) (CallGraph, error) {
	root, ok, err := svc.graph.FindFunctionByID(ctx, functionID)
	if err != nil {
		return CallGraph{}, err
	}
	if !ok {
		return CallGraph{}, errs.NotFound("query.CallGraphOf", nil)
	}

	cg := CallGraph{Root: root}
	if err := svc.walkCallGraph(ctx, projectID, functionID, maxDepth, false, &cg); err != nil {
		return CallGraph{}, err
	}
	if err := svc.walkCallGraph(ctx, projectID, functionID, maxDepth, true, &cg); err != nil {
		return CallGraph{}, err
	}
	return cg, nil
}

func (svc *Service) walkCallGraph(ctx context.Context, projectID, functionID string, maxDepth int, outward bool, cg *CallGraph) error {
	direction := "caller"
	if outward {
		direction = "callee"
	}
	visited := map[string]bool{functionID: true}
	frontier := []string{functionID}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		sort.Strings(frontier)
		for _, id := range frontier {
			var edges []graph.Edge
			var err error
			if outward {
				edges, err = svc.graph.EdgesFrom(ctx, model.EntityFunction, id, model.RelCalls)
			} else {
				edges, err = svc.graph.EdgesTo(ctx, model.EntityFunction, id, model.RelCalls)
			}
			if err != nil {
				return err
			}
			sort.Slice(edges, func(i, j int) bool {
				if outward {
					return edges[i].ToID < edges[j].ToID
				}
				return edges[i].FromID < edges[j].FromID
			})
			for _, e := range edges {
				cg.Edges = append(cg.Edges, CallGraphEdge{CallerID: e.FromID, CalleeID: e.ToID})
				other := e.ToID
				if !outward {
					other = e.FromID
				}
				if visited[other] {
					continue
				}
				visited[other] = true
				fn, ok, err := svc.graph.FindFunctionByID(ctx, other)
				if err != nil {
					return err
				}
				if ok {
					cg.Nodes = append(cg.Nodes, CallGraphNode{Function: fn, Distance: depth, Direction: direction})
				}
				next = append(next, other)
			}
		}
		frontier = next
	}
	return nil
}

// --- Impact analysis ---

// RiskLevel buckets the blast radius of a change (§4.I "Impact analysis").
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

func riskFromCount(n int) RiskLevel {
	switch {
	case n <= 3:
		return RiskLow
	case n <= 10:
		return RiskMedium
	case n <= 30:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// testFileMarkers are the path substrings that heuristically identify a
// test file (§4.I "Impact analysis").
var testFileMarkers = []string{"tests/", "_test.", ".test.", "spec/"}

func looksLikeTestFile(path string) bool {
	for _, marker := range testFileMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}
	return false
}

// ImpactTarget names what changed: a file path, a symbol name, or both
// (a symbol resolves to its containing file plus its direct callers).
type ImpactTarget struct {
	FilePath   string
	SymbolName string
}

// Impact is the {directly_affected, transitively_affected, test_files_affected,
// risk_level} answer.
type Impact struct {
	DirectlyAffected     []string
	TransitivelyAffected []string
	TestFilesAffected    []string
	RiskLevel            RiskLevel
}

func (svc *Service) ImpactAnalysis(ctx context.Context, projectID string, target ImpactTarget, maxDepth int) (Impact, error) {
	if maxDepth <= 0 {
		maxDepth = 5
	}
	roots := map[string]bool{}
	direct := map[string]bool{}

	if target.FilePath != "" {
		roots[target.FilePath] = true
	}
	if target.SymbolName != "" {
		fns, err := svc.graph.FindFunctionsByName(ctx, projectID, target.SymbolName)
		if err != nil {
			return Impact{}, err
		}
		for _, fn := range fns {
			roots[fn.FilePath] = true
			callers, err := svc.graph.Callers(ctx, projectID, fn.ID, 1)
			if err != nil {
				return Impact{}, err
			}
			for _, c := range callers {
				caller, ok, err := svc.graph.FindFunctionByID(ctx, c.EntityID)
				if err != nil {
					return Impact{}, err
				}
				if ok {
					direct[caller.FilePath] = true
				}
			}
		}
	}
	if len(roots) == 0 && len(direct) == 0 {
		return Impact{}, errs.Validation("query.ImpactAnalysis", nil)
	}

	for path := range roots {
		dependents, err := svc.graph.ImportedBy(ctx, projectID, path)
		if err != nil {
			return Impact{}, err
		}
		for _, d := range dependents {
			direct[d.Path] = true
		}
	}

	transitive := map[string]bool{}
	for path := range direct {
		walk, err := svc.graph.TransitiveDependents(ctx, projectID, path, maxDepth)
		if err != nil {
			return Impact{}, err
		}
		for _, tp := range walk {
			if tp.EntityType != model.EntityFile || direct[tp.EntityID] || roots[tp.EntityID] {
				continue
			}
			transitive[tp.EntityID] = true
		}
	}

	var impact Impact
	for path := range direct {
		impact.DirectlyAffected = append(impact.DirectlyAffected, path)
		if looksLikeTestFile(path) {
			impact.TestFilesAffected = append(impact.TestFilesAffected, path)
		}
	}
	for path := range transitive {
		impact.TransitivelyAffected = append(impact.TransitivelyAffected, path)
		if looksLikeTestFile(path) {
			impact.TestFilesAffected = append(impact.TestFilesAffected, path)
		}
	}
	sort.Strings(impact.DirectlyAffected)
	sort.Strings(impact.TransitivelyAffected)
	sort.Strings(impact.TestFilesAffected)
	impact.RiskLevel = riskFromCount(len(direct) + len(transitive))
	logging.Query("impact analysis on %v: %d direct, %d transitive, risk=%s", target, len(direct), len(transitive), impact.RiskLevel)
	return impact, nil
}

// --- Architecture ---

// FileConnectivity ranks a file by its IMPORTS degree.
type FileConnectivity struct {
	Path      string
	InDegree  int
	OutDegree int
}

// Architecture returns the most-connected files by IMPORTS in+out degree,
// capped to limit (§4.I "Architecture").
func (svc *Service) Architecture(ctx context.Context, projectID string, limit int) ([]FileConnectivity, error) {
	var files []model.File
	offset := 0
	for {
		page, total, err := svc.graph.ListFiles(ctx, graph.FileFilter{ProjectID: projectID}, graph.Page{Limit: graph.MaxPageLimit, Offset: offset})
		if err != nil {
			return nil, err
		}
		files = append(files, page...)
		offset += len(page)
		if len(page) == 0 || offset >= total {
			break
		}
	}

	out := make([]FileConnectivity, 0, len(files))
	for _, f := range files {
		in, err := svc.graph.ImportedBy(ctx, projectID, f.Path)
		if err != nil {
			return nil, err
		}
		outFiles, err := svc.graph.ImportsOf(ctx, projectID, f.Path)
		if err != nil {
			return nil, err
		}
		out = append(out, FileConnectivity{Path: f.Path, InDegree: len(in), OutDegree: len(outFiles)})
	}

	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].InDegree+out[i].OutDegree, out[j].InDegree+out[j].OutDegree
		if di != dj {
			return di > dj
		}
		return out[i].Path < out[j].Path
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- Trait/impl ---

// FindTraitImplementations returns every ImplBlock implementing trait
// (§4.I "find_trait_implementations").
func (svc *Service) FindTraitImplementations(ctx context.Context, projectID, trait string) ([]model.ImplBlock, error) {
	return svc.graph.FindImplBlocksByTrait(ctx, projectID, trait)
}

// FindTypeTraits returns the distinct trait names a type implements
// (§4.I "find_type_traits").
func (svc *Service) FindTypeTraits(ctx context.Context, projectID, typeName string) ([]string, error) {
	impls, err := svc.graph.FindImplBlocksByType(ctx, projectID, typeName)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var traits []string
	for _, impl := range impls {
		if impl.TraitName == "" || seen[impl.TraitName] {
			continue
		}
		seen[impl.TraitName] = true
		traits = append(traits, impl.TraitName)
	}
	sort.Strings(traits)
	return traits, nil
}

// GetImplBlocks returns every ImplBlock for typeName (§4.I "get_impl_blocks").
func (svc *Service) GetImplBlocks(ctx context.Context, projectID, typeName string) ([]model.ImplBlock, error) {
	return svc.graph.FindImplBlocksByType(ctx, projectID, typeName)
}
