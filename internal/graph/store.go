// Package graph implements the Graph Store interface (§4.B): a narrow,
// polymorphic surface over typed nodes and relationships, upsert/traversal
// operations, satisfied by either a real backend or an in-memory Mock.
package graph

import (
	"context"
	"time"

	"codeforge/internal/model"
)

// Page describes pagination/sort parameters common to every list operation
// (§4.B "Pagination"). The store rejects a Limit above 100 with a
// Validation error and treats a Limit <= 0 as 100. SortBy and SortOrder are
// carried but not applied: each list operation returns its items in its own
// fixed order.
type Page struct {
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string // "asc" or "desc"
}

// FileFilter narrows File listings.
type FileFilter struct {
	ProjectID string
	Language  string
	PathPrefix string
}

// TaskFilter narrows Task listings.
type TaskFilter struct {
	PlanID string
	Status model.TaskStatus
	Tags   []string
}

// NoteFilter narrows Note listings.
type NoteFilter struct {
	ProjectID     string
	WorkspaceSlug string
	NoteType      model.NoteType
	Status        model.NoteStatus
	Importance    model.Importance
}

// TraversalPath is one hop result from a BFS-style traversal.
type TraversalPath struct {
	EntityType model.EntityType
	EntityID   string
	Distance   int
	// ViaRelType is the relationship type traversed to reach this entity.
	ViaRelType model.RelType
}

// Store is the full Graph Store surface. A real backend (Sqlite, in this
// implementation) and an in-memory Mock both satisfy it so tests never
// depend on a live database (§9 "dynamic dispatch over stores").
type Store interface {
	// --- Project ---
	UpsertProject(ctx context.Context, p model.Project) (model.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (model.Project, error)
	GetProjectByID(ctx context.Context, id string) (model.Project, error)
	ListProjects(ctx context.Context, page Page) ([]model.Project, int, error)
	TouchProjectSynced(ctx context.Context, projectID string, at time.Time) error

	// --- File & symbols ---
	UpsertFile(ctx context.Context, f model.File) (model.File, error)
	GetFile(ctx context.Context, projectID, path string) (model.File, bool, error)
	ListFiles(ctx context.Context, filter FileFilter, page Page) ([]model.File, int, error)
	DeleteFile(ctx context.Context, projectID, path string) error // cascades children

	ReplaceFileSymbols(ctx context.Context, projectID, path string, in FileSymbols) error
	GetFileSymbols(ctx context.Context, projectID, path string) (FileSymbols, error)

	UpsertImport(ctx context.Context, imp model.Import) (model.Import, error)
	ResolveImport(ctx context.Context, importID, resolvedFilePath string) error
	UnresolvedImports(ctx context.Context, projectID string) ([]model.Import, error)

	UpsertExternalTrait(ctx context.Context, t model.ExternalTrait) error

	// --- Symbol lookup (§4.I "References", "Trait/impl") ---
	FindFunctionByID(ctx context.Context, id string) (model.Function, bool, error)
	FindFunctionsByName(ctx context.Context, projectID, name string) ([]model.Function, error)
	FindTypesByName(ctx context.Context, projectID, name string) ([]model.TypeDecl, error)
	FindImplBlocksByType(ctx context.Context, projectID, typeName string) ([]model.ImplBlock, error)
	FindImplBlocksByTrait(ctx context.Context, projectID, traitName string) ([]model.ImplBlock, error)

	// --- Edges ---
	AddEdge(ctx context.Context, e Edge) error
	RemoveEdge(ctx context.Context, e Edge) error
	EdgesFrom(ctx context.Context, fromType model.EntityType, fromID string, rel model.RelType) ([]Edge, error)
	EdgesTo(ctx context.Context, toType model.EntityType, toID string, rel model.RelType) ([]Edge, error)

	// --- Traversals (§4.B "Key traversal operations") ---
	ImportsOf(ctx context.Context, projectID, filePath string) ([]model.File, error)
	ImportedBy(ctx context.Context, projectID, filePath string) ([]model.File, error)
	TransitiveDependents(ctx context.Context, projectID, filePath string, maxDepth int) ([]TraversalPath, error)
	Callers(ctx context.Context, projectID, functionID string, maxDepth int) ([]TraversalPath, error)
	Callees(ctx context.Context, projectID, functionID string, maxDepth int) ([]TraversalPath, error)
	PropagationWalk(ctx context.Context, anchor model.Anchor, maxDepth int, edgeWhitelist []model.RelType) ([]TraversalPath, error)

	// --- Workflow ---
	UpsertPlan(ctx context.Context, p model.Plan) (model.Plan, error)
	GetPlan(ctx context.Context, id string) (model.Plan, bool, error)
	ListPlans(ctx context.Context, projectID string, page Page) ([]model.Plan, int, error)

	UpsertTask(ctx context.Context, t model.Task) (model.Task, error)
	GetTask(ctx context.Context, id string) (model.Task, bool, error)
	ListTasks(ctx context.Context, filter TaskFilter, page Page) ([]model.Task, int, error)
	DeleteTask(ctx context.Context, id string) error // also removes dangling DEPENDS_ON edges

	AddTaskDependency(ctx context.Context, fromTaskID, toTaskID string) error
	RemoveTaskDependency(ctx context.Context, fromTaskID, toTaskID string) error
	TaskDependencies(ctx context.Context, taskID string) ([]string, error)   // tasks this one depends on
	TaskDependents(ctx context.Context, taskID string) ([]string, error)     // tasks depending on this one
	NextAvailableTask(ctx context.Context, planID string) (model.Task, bool, error)

	UpsertStep(ctx context.Context, s model.Step) (model.Step, error)
	ListSteps(ctx context.Context, taskID string) ([]model.Step, error)

	UpsertDecision(ctx context.Context, d model.Decision) (model.Decision, error)
	ListDecisions(ctx context.Context, taskID string) ([]model.Decision, error)

	UpsertConstraint(ctx context.Context, c model.Constraint) (model.Constraint, error)
	ListConstraints(ctx context.Context, planID string) ([]model.Constraint, error)

	UpsertCommit(ctx context.Context, c model.Commit) (model.Commit, error)
	GetCommit(ctx context.Context, sha string) (model.Commit, bool, error)
	LinkCommitToTask(ctx context.Context, sha, taskID string) error
	LinkCommitToPlan(ctx context.Context, sha, planID string) error

	UpsertMilestone(ctx context.Context, m model.Milestone) (model.Milestone, error)
	LinkMilestoneTask(ctx context.Context, milestoneID, taskID string) error
	LinkMilestoneCommit(ctx context.Context, milestoneID, sha string) error

	// --- Workspace ---
	UpsertWorkspace(ctx context.Context, w model.Workspace) (model.Workspace, error)
	UpsertResource(ctx context.Context, r model.Resource) (model.Resource, error)
	GetResource(ctx context.Context, id string) (model.Resource, bool, error)
	ListResources(ctx context.Context, workspaceSlug string, page Page) ([]model.Resource, int, error)
	UpsertComponent(ctx context.Context, c model.Component) (model.Component, error)
	GetComponent(ctx context.Context, id string) (model.Component, bool, error)
	ListComponents(ctx context.Context, workspaceSlug string, page Page) ([]model.Component, int, error)
	LinkProjectToWorkspace(ctx context.Context, projectID, workspaceSlug string) error
	LinkWorkspaceResource(ctx context.Context, workspaceSlug, resourceID string) error
	LinkComponentResource(ctx context.Context, componentID, resourceID string, implements bool) error
	LinkComponentToProject(ctx context.Context, componentID, projectID string) error
	LinkComponentDependency(ctx context.Context, fromComponentID, toComponentID, protocol string, required bool) error

	// --- Notes ---
	UpsertNote(ctx context.Context, n model.Note) (model.Note, error)
	GetNote(ctx context.Context, id string) (model.Note, bool, error)
	ListNotes(ctx context.Context, filter NoteFilter, page Page) ([]model.Note, int, error)
	NotesByAnchor(ctx context.Context, anchor model.Anchor) ([]model.Note, error)

	Close() error
}

// FileSymbols bundles the children of a File replaced atomically during
// ingest (§4.D step 3 "Per-file ingest").
type FileSymbols struct {
	Functions []model.Function
	Types     []model.TypeDecl
	Imports   []model.Import
	Impls     []model.ImplBlock
	Calls     []CallEdge // caller function ID -> callee function ID, both within this file
}

// CallEdge is a resolved intra-file call between two Function IDs.
type CallEdge struct {
	CallerID string
	CalleeID string
}

// Edge is a generic, directed, typed relationship instance.
type Edge struct {
	FromType  model.EntityType
	FromID    string
	RelType   model.RelType
	ToType    model.EntityType
	ToID      string
	ProjectID string
	Metadata  map[string]interface{}
	CreatedAt time.Time
}
