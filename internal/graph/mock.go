package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"codeforge/internal/errs"
	"codeforge/internal/model"
)

// Mock is an in-memory Store used by tests that don't need a live database,
// grounded on the teacher's mocks_test.go fake-store pattern and generalized
// to the full entity set (§9 "dynamic dispatch over stores").
type Mock struct {
	mu sync.Mutex

	projects map[string]model.Project // by ID
	files    map[fileKey]model.File
	symbols  map[fileKey]FileSymbols
	imports  map[string]model.Import // by ID
	edges    []Edge

	plans       map[string]model.Plan
	tasks       map[string]model.Task
	steps       map[string]model.Step
	decisions   map[string]model.Decision
	constraints map[string]model.Constraint
	commits     map[string]model.Commit
	milestones  map[string]model.Milestone

	workspaces map[string]model.Workspace
	resources  map[string]model.Resource
	components map[string]model.Component

	notes map[string]model.Note
}

type fileKey struct {
	projectID string
	path      string
}

var _ Store = (*Mock)(nil)

// NewMock constructs an empty in-memory Store.
func NewMock() *Mock {
	return &Mock{
		projects:    make(map[string]model.Project),
		files:       make(map[fileKey]model.File),
		symbols:     make(map[fileKey]FileSymbols),
		imports:     make(map[string]model.Import),
		plans:       make(map[string]model.Plan),
		tasks:       make(map[string]model.Task),
		steps:       make(map[string]model.Step),
		decisions:   make(map[string]model.Decision),
		constraints: make(map[string]model.Constraint),
		commits:     make(map[string]model.Commit),
		milestones:  make(map[string]model.Milestone),
		workspaces:  make(map[string]model.Workspace),
		resources:   make(map[string]model.Resource),
		components:  make(map[string]model.Component),
		notes:       make(map[string]model.Note),
	}
}

func (m *Mock) Close() error { return nil }

// --- Project ---

func (m *Mock) UpsertProject(ctx context.Context, p model.Project) (model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Slug == "" {
		return model.Project{}, errs.Validation("graph.UpsertProject", nil)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	for _, existing := range m.projects {
		if existing.Slug == p.Slug && existing.ID != p.ID {
			p.ID = existing.ID
		}
	}
	m.projects[p.ID] = p
	return p, nil
}

func (m *Mock) GetProjectBySlug(ctx context.Context, slug string) (model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.projects {
		if p.Slug == slug {
			return p, nil
		}
	}
	return model.Project{}, errs.NotFound("graph.GetProjectBySlug", nil)
}

func (m *Mock) GetProjectByID(ctx context.Context, id string) (model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return model.Project{}, errs.NotFound("graph.GetProjectByID", nil)
	}
	return p, nil
}

func (m *Mock) ListProjects(ctx context.Context, page Page) ([]model.Project, int, error) {
	if err := validatePage(page); err != nil {
		return nil, 0, err
	}
	page = normalizePage(page)
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Project
	for _, p := range m.projects {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return paginateSlice(all, page), len(all), nil
}

func paginateSlice[T any](all []T, page Page) []T {
	if page.Offset >= len(all) {
		return nil
	}
	end := page.Offset + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return append([]T{}, all[page.Offset:end]...)
}

func (m *Mock) TouchProjectSynced(ctx context.Context, projectID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return errs.NotFound("graph.TouchProjectSynced", nil)
	}
	p.LastSynced = at
	m.projects[projectID] = p
	return nil
}

// --- File & symbols ---

func (m *Mock) UpsertFile(ctx context.Context, f model.File) (model.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[fileKey{f.ProjectID, f.Path}] = f
	return f, nil
}

func (m *Mock) GetFile(ctx context.Context, projectID, path string) (model.File, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileKey{projectID, path}]
	return f, ok, nil
}

func (m *Mock) ListFiles(ctx context.Context, filter FileFilter, page Page) ([]model.File, int, error) {
	if err := validatePage(page); err != nil {
		return nil, 0, err
	}
	page = normalizePage(page)
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.File
	for _, f := range m.files {
		if filter.ProjectID != "" && f.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Language != "" && f.Language != filter.Language {
			continue
		}
		if filter.PathPrefix != "" && !hasPrefix(f.Path, filter.PathPrefix) {
			continue
		}
		all = append(all, f)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Path < all[j].Path })
	return paginateSlice(all, page), len(all), nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func (m *Mock) DeleteFile(ctx context.Context, projectID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fileKey{projectID, path}
	delete(m.files, key)
	delete(m.symbols, key)
	for id, imp := range m.imports {
		if imp.ProjectID == projectID && imp.FilePath == path {
			delete(m.imports, id)
		}
	}
	var kept []Edge
	for _, e := range m.edges {
		if (e.FromType == model.EntityFile && e.FromID == path) || (e.ToType == model.EntityFile && e.ToID == path) {
			continue
		}
		kept = append(kept, e)
	}
	m.edges = kept
	return nil
}

func (m *Mock) ReplaceFileSymbols(ctx context.Context, projectID, path string, in FileSymbols) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbols[fileKey{projectID, path}] = in
	for id, imp := range m.imports {
		if imp.ProjectID == projectID && imp.FilePath == path {
			delete(m.imports, id)
		}
	}
	for _, imp := range in.Imports {
		m.imports[imp.ID] = imp
	}
	for _, call := range in.Calls {
		m.edges = append(m.edges, Edge{FromType: model.EntityFunction, FromID: call.CallerID, RelType: model.RelCalls, ToType: model.EntityFunction, ToID: call.CalleeID, ProjectID: projectID, CreatedAt: time.Now()})
	}
	return nil
}

func (m *Mock) GetFileSymbols(ctx context.Context, projectID, path string) (FileSymbols, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.symbols[fileKey{projectID, path}], nil
}

func (m *Mock) UpsertImport(ctx context.Context, imp model.Import) (model.Import, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imports[imp.ID] = imp
	return imp, nil
}

func (m *Mock) ResolveImport(ctx context.Context, importID, resolvedFilePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	imp, ok := m.imports[importID]
	if !ok {
		return errs.NotFound("graph.ResolveImport", nil)
	}
	imp.ResolvedFile = resolvedFilePath
	m.imports[importID] = imp
	return nil
}

func (m *Mock) UnresolvedImports(ctx context.Context, projectID string) ([]model.Import, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Import
	for _, imp := range m.imports {
		if imp.ProjectID == projectID && imp.ResolvedFile == "" {
			out = append(out, imp)
		}
	}
	return out, nil
}

func (m *Mock) UpsertExternalTrait(ctx context.Context, t model.ExternalTrait) error { return nil }

// --- Symbol lookup ---

func (m *Mock) FindFunctionByID(ctx context.Context, id string) (model.Function, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, syms := range m.symbols {
		for _, fn := range syms.Functions {
			if fn.ID == id {
				return fn, true, nil
			}
		}
	}
	return model.Function{}, false, nil
}

func (m *Mock) FindFunctionsByName(ctx context.Context, projectID, name string) ([]model.Function, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Function
	for key, syms := range m.symbols {
		if projectID != "" && key.projectID != projectID {
			continue
		}
		for _, fn := range syms.Functions {
			if fn.Name == name {
				out = append(out, fn)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Mock) FindTypesByName(ctx context.Context, projectID, name string) ([]model.TypeDecl, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.TypeDecl
	for key, syms := range m.symbols {
		if projectID != "" && key.projectID != projectID {
			continue
		}
		for _, ty := range syms.Types {
			if ty.Name == name {
				out = append(out, ty)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Mock) FindImplBlocksByType(ctx context.Context, projectID, typeName string) ([]model.ImplBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ImplBlock
	for key, syms := range m.symbols {
		if projectID != "" && key.projectID != projectID {
			continue
		}
		for _, impl := range syms.Impls {
			if impl.TypeName == typeName {
				out = append(out, impl)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Mock) FindImplBlocksByTrait(ctx context.Context, projectID, traitName string) ([]model.ImplBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ImplBlock
	for key, syms := range m.symbols {
		if projectID != "" && key.projectID != projectID {
			continue
		}
		for _, impl := range syms.Impls {
			if impl.TraitName == traitName {
				out = append(out, impl)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Edges ---

func edgeMatches(e Edge, withRel bool, rel model.RelType) bool {
	if withRel && e.RelType != rel {
		return false
	}
	return true
}

func (m *Mock) AddEdge(ctx context.Context, e Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	for _, existing := range m.edges {
		if existing.FromType == e.FromType && existing.FromID == e.FromID && existing.RelType == e.RelType && existing.ToType == e.ToType && existing.ToID == e.ToID {
			return nil
		}
	}
	m.edges = append(m.edges, e)
	return nil
}

func (m *Mock) RemoveEdge(ctx context.Context, e Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []Edge
	for _, existing := range m.edges {
		if existing.FromType == e.FromType && existing.FromID == e.FromID && existing.RelType == e.RelType && existing.ToType == e.ToType && existing.ToID == e.ToID {
			continue
		}
		kept = append(kept, existing)
	}
	m.edges = kept
	return nil
}

func (m *Mock) EdgesFrom(ctx context.Context, fromType model.EntityType, fromID string, rel model.RelType) ([]Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Edge
	for _, e := range m.edges {
		if e.FromType == fromType && e.FromID == fromID && edgeMatches(e, rel != "", rel) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Mock) EdgesTo(ctx context.Context, toType model.EntityType, toID string, rel model.RelType) ([]Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Edge
	for _, e := range m.edges {
		if e.ToType == toType && e.ToID == toID && edgeMatches(e, rel != "", rel) {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- Traversals ---

func (m *Mock) ImportsOf(ctx context.Context, projectID, filePath string) ([]model.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.File
	for _, imp := range m.imports {
		if imp.ProjectID == projectID && imp.FilePath == filePath && imp.ResolvedFile != "" {
			if f, ok := m.files[fileKey{projectID, imp.ResolvedFile}]; ok {
				out = append(out, f)
			}
		}
	}
	return out, nil
}

func (m *Mock) ImportedBy(ctx context.Context, projectID, filePath string) ([]model.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.File
	for _, imp := range m.imports {
		if imp.ProjectID == projectID && imp.ResolvedFile == filePath {
			if f, ok := m.files[fileKey{projectID, imp.FilePath}]; ok {
				out = append(out, f)
			}
		}
	}
	return out, nil
}

func (m *Mock) TransitiveDependents(ctx context.Context, projectID, filePath string, maxDepth int) ([]TraversalPath, error) {
	visited := map[string]bool{filePath: true}
	frontier := []string{filePath}
	var out []TraversalPath
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		sort.Strings(frontier)
		for _, path := range frontier {
			deps, _ := m.ImportedBy(ctx, projectID, path)
			sort.Slice(deps, func(i, j int) bool { return deps[i].Path < deps[j].Path })
			for _, d := range deps {
				if visited[d.Path] {
					continue
				}
				visited[d.Path] = true
				out = append(out, TraversalPath{EntityType: model.EntityFile, EntityID: d.Path, Distance: depth, ViaRelType: model.RelImports})
				next = append(next, d.Path)
			}
		}
		frontier = next
	}
	return out, nil
}

func (m *Mock) callGraphWalk(ctx context.Context, functionID string, maxDepth int, forward bool) ([]TraversalPath, error) {
	visited := map[string]bool{functionID: true}
	frontier := []string{functionID}
	var out []TraversalPath
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		sort.Strings(frontier)
		for _, id := range frontier {
			var edges []Edge
			if forward {
				edges, _ = m.EdgesFrom(ctx, model.EntityFunction, id, model.RelCalls)
			} else {
				edges, _ = m.EdgesTo(ctx, model.EntityFunction, id, model.RelCalls)
			}
			sort.Slice(edges, func(i, j int) bool {
				if forward {
					return edges[i].ToID < edges[j].ToID
				}
				return edges[i].FromID < edges[j].FromID
			})
			for _, e := range edges {
				other := e.ToID
				if !forward {
					other = e.FromID
				}
				if visited[other] {
					continue
				}
				visited[other] = true
				out = append(out, TraversalPath{EntityType: model.EntityFunction, EntityID: other, Distance: depth, ViaRelType: model.RelCalls})
				next = append(next, other)
			}
		}
		frontier = next
	}
	return out, nil
}

func (m *Mock) Callers(ctx context.Context, projectID, functionID string, maxDepth int) ([]TraversalPath, error) {
	return m.callGraphWalk(ctx, functionID, maxDepth, false)
}

func (m *Mock) Callees(ctx context.Context, projectID, functionID string, maxDepth int) ([]TraversalPath, error) {
	return m.callGraphWalk(ctx, functionID, maxDepth, true)
}

func (m *Mock) PropagationWalk(ctx context.Context, anchor model.Anchor, maxDepth int, edgeWhitelist []model.RelType) ([]TraversalPath, error) {
	allowed := make(map[model.RelType]bool, len(edgeWhitelist))
	for _, r := range edgeWhitelist {
		allowed[r] = true
	}
	type node struct {
		typ model.EntityType
		id  string
	}
	start := node{anchor.EntityType, anchor.EntityID}
	visited := map[node]bool{start: true}
	frontier := []node{start}
	var out []TraversalPath

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		sort.Slice(frontier, func(i, j int) bool {
			if frontier[i].typ != frontier[j].typ {
				return frontier[i].typ < frontier[j].typ
			}
			return frontier[i].id < frontier[j].id
		})
		type candidate struct {
			n   node
			rel model.RelType
		}
		var candidates []candidate
		for _, n := range frontier {
			out1, _ := m.EdgesFrom(ctx, n.typ, n.id, "")
			for _, e := range out1 {
				if len(allowed) > 0 && !allowed[e.RelType] {
					continue
				}
				candidates = append(candidates, candidate{node{e.ToType, e.ToID}, e.RelType})
			}
			in1, _ := m.EdgesTo(ctx, n.typ, n.id, "")
			for _, e := range in1 {
				if len(allowed) > 0 && !allowed[e.RelType] {
					continue
				}
				candidates = append(candidates, candidate{node{e.FromType, e.FromID}, e.RelType})
			}
		}
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].n.typ != candidates[j].n.typ {
				return candidates[i].n.typ < candidates[j].n.typ
			}
			return candidates[i].n.id < candidates[j].n.id
		})
		var next []node
		for _, c := range candidates {
			if visited[c.n] {
				continue
			}
			visited[c.n] = true
			out = append(out, TraversalPath{EntityType: c.n.typ, EntityID: c.n.id, Distance: depth, ViaRelType: c.rel})
			next = append(next, c.n)
		}
		frontier = next
	}
	return out, nil
}

// --- Workflow ---

func (m *Mock) UpsertPlan(ctx context.Context, p model.Plan) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Title == "" {
		return model.Plan{}, errs.Validation("graph.UpsertPlan", nil)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	m.plans[p.ID] = p
	return p, nil
}

func (m *Mock) GetPlan(ctx context.Context, id string) (model.Plan, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	return p, ok, nil
}

func (m *Mock) ListPlans(ctx context.Context, projectID string, page Page) ([]model.Plan, int, error) {
	if err := validatePage(page); err != nil {
		return nil, 0, err
	}
	page = normalizePage(page)
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Plan
	for _, p := range m.plans {
		if p.ProjectID == projectID {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return paginateSlice(all, page), len(all), nil
}

func (m *Mock) UpsertTask(ctx context.Context, t model.Task) (model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.PlanID == "" || t.Title == "" {
		return model.Task{}, errs.Validation("graph.UpsertTask", nil)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	m.tasks[t.ID] = t
	return t, nil
}

func (m *Mock) GetTask(ctx context.Context, id string) (model.Task, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	return t, ok, nil
}

func (m *Mock) ListTasks(ctx context.Context, filter TaskFilter, page Page) ([]model.Task, int, error) {
	if err := validatePage(page); err != nil {
		return nil, 0, err
	}
	page = normalizePage(page)
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Task
	for _, t := range m.tasks {
		if filter.PlanID != "" && t.PlanID != filter.PlanID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if len(filter.Tags) > 0 && !hasAnyTag(t.Tags, filter.Tags) {
			continue
		}
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Priority != all[j].Priority {
			return all[i].Priority > all[j].Priority
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return paginateSlice(all, page), len(all), nil
}

func (m *Mock) DeleteTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	var kept []Edge
	for _, e := range m.edges {
		if e.RelType == model.RelDependsOn && ((e.FromType == model.EntityTask && e.FromID == id) || (e.ToType == model.EntityTask && e.ToID == id)) {
			continue
		}
		kept = append(kept, e)
	}
	m.edges = kept
	for sid, st := range m.steps {
		if st.TaskID == id {
			delete(m.steps, sid)
		}
	}
	for did, d := range m.decisions {
		if d.TaskID == id {
			delete(m.decisions, did)
		}
	}
	return nil
}

func (m *Mock) reachable(from, to string) bool {
	visited := map[string]bool{from: true}
	frontier := []string{from}
	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			for _, e := range m.edges {
				if e.FromType == model.EntityTask && e.FromID == id && e.RelType == model.RelDependsOn {
					if e.ToID == to {
						return true
					}
					if !visited[e.ToID] {
						visited[e.ToID] = true
						next = append(next, e.ToID)
					}
				}
			}
		}
		frontier = next
	}
	return false
}

func (m *Mock) AddTaskDependency(ctx context.Context, fromTaskID, toTaskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fromTaskID == toTaskID {
		return errs.Validation("graph.AddTaskDependency", fmt.Errorf("task cannot depend on itself"))
	}
	if m.reachable(toTaskID, fromTaskID) {
		return errs.Conflict("graph.AddTaskDependency", fmt.Errorf("adding dependency %s -> %s would create a cycle", fromTaskID, toTaskID))
	}
	for _, e := range m.edges {
		if e.FromType == model.EntityTask && e.FromID == fromTaskID && e.RelType == model.RelDependsOn && e.ToID == toTaskID {
			return nil
		}
	}
	m.edges = append(m.edges, Edge{FromType: model.EntityTask, FromID: fromTaskID, RelType: model.RelDependsOn, ToType: model.EntityTask, ToID: toTaskID, CreatedAt: time.Now()})
	return nil
}

func (m *Mock) RemoveTaskDependency(ctx context.Context, fromTaskID, toTaskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []Edge
	for _, e := range m.edges {
		if e.FromType == model.EntityTask && e.FromID == fromTaskID && e.RelType == model.RelDependsOn && e.ToID == toTaskID {
			continue
		}
		kept = append(kept, e)
	}
	m.edges = kept
	return nil
}

func (m *Mock) TaskDependencies(ctx context.Context, taskID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.edges {
		if e.FromType == model.EntityTask && e.FromID == taskID && e.RelType == model.RelDependsOn {
			out = append(out, e.ToID)
		}
	}
	return out, nil
}

func (m *Mock) TaskDependents(ctx context.Context, taskID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.edges {
		if e.ToType == model.EntityTask && e.ToID == taskID && e.RelType == model.RelDependsOn {
			out = append(out, e.FromID)
		}
	}
	return out, nil
}

func (m *Mock) NextAvailableTask(ctx context.Context, planID string) (model.Task, bool, error) {
	m.mu.Lock()
	var candidates []model.Task
	for _, t := range m.tasks {
		if t.PlanID == planID && t.Status == model.TaskStatusPending {
			candidates = append(candidates, t)
		}
	}
	m.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	for _, t := range candidates {
		deps, _ := m.TaskDependencies(ctx, t.ID)
		ready := true
		for _, depID := range deps {
			dep, ok, _ := m.GetTask(ctx, depID)
			if !ok || dep.Status != model.TaskStatusCompleted {
				ready = false
				break
			}
		}
		if ready {
			return t, true, nil
		}
	}
	return model.Task{}, false, nil
}

func (m *Mock) UpsertStep(ctx context.Context, st model.Step) (model.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[st.ID] = st
	return st, nil
}

func (m *Mock) ListSteps(ctx context.Context, taskID string) ([]model.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Step
	for _, st := range m.steps {
		if st.TaskID == taskID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (m *Mock) UpsertDecision(ctx context.Context, d model.Decision) (model.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now()
	}
	m.decisions[d.ID] = d
	return d, nil
}

func (m *Mock) ListDecisions(ctx context.Context, taskID string) ([]model.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Decision
	for _, d := range m.decisions {
		if d.TaskID == taskID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DecidedAt.Before(out[j].DecidedAt) })
	return out, nil
}

func (m *Mock) UpsertConstraint(ctx context.Context, c model.Constraint) (model.Constraint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.constraints[c.ID] = c
	return c, nil
}

func (m *Mock) ListConstraints(ctx context.Context, planID string) ([]model.Constraint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Constraint
	for _, c := range m.constraints {
		if c.PlanID == planID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Mock) UpsertCommit(ctx context.Context, c model.Commit) (model.Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits[c.SHA] = c
	return c, nil
}

func (m *Mock) GetCommit(ctx context.Context, sha string) (model.Commit, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commits[sha]
	return c, ok, nil
}

func (m *Mock) LinkCommitToTask(ctx context.Context, sha, taskID string) error {
	return m.AddEdge(ctx, Edge{FromType: model.EntityTask, FromID: taskID, RelType: model.RelResolvedBy, ToType: model.EntityCommit, ToID: sha})
}

func (m *Mock) LinkCommitToPlan(ctx context.Context, sha, planID string) error {
	return m.AddEdge(ctx, Edge{FromType: model.EntityCommit, FromID: sha, RelType: model.RelResultedIn, ToType: model.EntityPlan, ToID: planID})
}

func (m *Mock) LinkMilestoneCommit(ctx context.Context, milestoneID, sha string) error {
	return m.AddEdge(ctx, Edge{FromType: model.EntityMilestone, FromID: milestoneID, RelType: model.RelIncludesCommit, ToType: model.EntityCommit, ToID: sha})
}

func (m *Mock) UpsertMilestone(ctx context.Context, ms model.Milestone) (model.Milestone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.milestones[ms.ID] = ms
	return ms, nil
}

func (m *Mock) LinkMilestoneTask(ctx context.Context, milestoneID, taskID string) error {
	return m.AddEdge(ctx, Edge{FromType: model.EntityMilestone, FromID: milestoneID, RelType: model.RelIncludesTask, ToType: model.EntityTask, ToID: taskID})
}

// --- Workspace ---

func (m *Mock) UpsertWorkspace(ctx context.Context, w model.Workspace) (model.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.Slug == "" {
		return model.Workspace{}, errs.Validation("graph.UpsertWorkspace", nil)
	}
	m.workspaces[w.Slug] = w
	return w, nil
}

func (m *Mock) UpsertResource(ctx context.Context, r model.Resource) (model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[r.ID] = r
	return r, nil
}

func (m *Mock) UpsertComponent(ctx context.Context, c model.Component) (model.Component, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[c.ID] = c
	return c, nil
}

func (m *Mock) LinkProjectToWorkspace(ctx context.Context, projectID, workspaceSlug string) error {
	return m.AddEdge(ctx, Edge{FromType: model.EntityProject, FromID: projectID, RelType: model.RelBelongsToWS, ToType: model.EntityWorkspace, ToID: workspaceSlug})
}

func (m *Mock) GetResource(ctx context.Context, id string) (model.Resource, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resources[id]
	return r, ok, nil
}

func (m *Mock) ListResources(ctx context.Context, workspaceSlug string, page Page) ([]model.Resource, int, error) {
	if err := validatePage(page); err != nil {
		return nil, 0, err
	}
	page = normalizePage(page)
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Resource
	for _, r := range m.resources {
		if r.WsSlug == workspaceSlug {
			all = append(all, r)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return paginateSlice(all, page), len(all), nil
}

func (m *Mock) GetComponent(ctx context.Context, id string) (model.Component, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.components[id]
	return c, ok, nil
}

func (m *Mock) ListComponents(ctx context.Context, workspaceSlug string, page Page) ([]model.Component, int, error) {
	if err := validatePage(page); err != nil {
		return nil, 0, err
	}
	page = normalizePage(page)
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Component
	for _, c := range m.components {
		if c.WsSlug == workspaceSlug {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return paginateSlice(all, page), len(all), nil
}

func (m *Mock) LinkWorkspaceResource(ctx context.Context, workspaceSlug, resourceID string) error {
	return m.AddEdge(ctx, Edge{FromType: model.EntityWorkspace, FromID: workspaceSlug, RelType: model.RelHasResource, ToType: model.EntityResource, ToID: resourceID})
}

func (m *Mock) LinkComponentResource(ctx context.Context, componentID, resourceID string, implements bool) error {
	rel := model.RelUsesResource
	if implements {
		rel = model.RelImplementsRes
	}
	return m.AddEdge(ctx, Edge{FromType: model.EntityComponent, FromID: componentID, RelType: rel, ToType: model.EntityResource, ToID: resourceID})
}

func (m *Mock) LinkComponentToProject(ctx context.Context, componentID, projectID string) error {
	return m.AddEdge(ctx, Edge{FromType: model.EntityComponent, FromID: componentID, RelType: model.RelMapsToProject, ToType: model.EntityProject, ToID: projectID})
}

func (m *Mock) LinkComponentDependency(ctx context.Context, fromComponentID, toComponentID, protocol string, required bool) error {
	return m.AddEdge(ctx, Edge{
		FromType: model.EntityComponent, FromID: fromComponentID,
		RelType: model.RelDependsOnCompo, ToType: model.EntityComponent, ToID: toComponentID,
		Metadata: map[string]interface{}{"protocol": protocol, "required": required},
	})
}

// --- Notes ---

func (m *Mock) UpsertNote(ctx context.Context, n model.Note) (model.Note, error) {
	m.mu.Lock()
	if n.Content == "" {
		m.mu.Unlock()
		return model.Note{}, errs.Validation("graph.UpsertNote", nil)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	m.notes[n.ID] = n
	m.mu.Unlock()

	if n.SupersedesID != "" {
		if err := m.AddEdge(ctx, Edge{FromType: model.EntityNote, FromID: n.ID, RelType: model.RelSupersedes, ToType: model.EntityNote, ToID: n.SupersedesID}); err != nil {
			return model.Note{}, err
		}
	}
	for _, a := range n.Anchors {
		if err := m.AddEdge(ctx, Edge{FromType: model.EntityNote, FromID: n.ID, RelType: model.RelAttachedTo, ToType: a.EntityType, ToID: a.EntityID}); err != nil {
			return model.Note{}, err
		}
	}
	return n, nil
}

func (m *Mock) GetNote(ctx context.Context, id string) (model.Note, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	return n, ok, nil
}

func (m *Mock) ListNotes(ctx context.Context, filter NoteFilter, page Page) ([]model.Note, int, error) {
	if err := validatePage(page); err != nil {
		return nil, 0, err
	}
	page = normalizePage(page)
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Note
	for _, n := range m.notes {
		if filter.ProjectID != "" && n.ProjectID != filter.ProjectID {
			continue
		}
		if filter.WorkspaceSlug != "" && n.WorkspaceSlug != filter.WorkspaceSlug {
			continue
		}
		if filter.NoteType != "" && n.NoteType != filter.NoteType {
			continue
		}
		if filter.Status != "" && n.Status != filter.Status {
			continue
		}
		if filter.Importance != "" && n.Importance != filter.Importance {
			continue
		}
		all = append(all, n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginateSlice(all, page), len(all), nil
}

func (m *Mock) NotesByAnchor(ctx context.Context, anchor model.Anchor) ([]model.Note, error) {
	edges, err := m.EdgesTo(ctx, anchor.EntityType, anchor.EntityID, model.RelAttachedTo)
	if err != nil {
		return nil, err
	}
	var out []model.Note
	for _, e := range edges {
		if e.FromType != model.EntityNote {
			continue
		}
		n, ok, _ := m.GetNote(ctx, e.FromID)
		if ok {
			out = append(out, n)
		}
	}
	return out, nil
}
