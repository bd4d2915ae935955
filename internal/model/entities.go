// Package model defines the graph entities and relationship types of §3:
// the wire format every store backend (real or mock) and every transport
// collaborator observes.
package model

import "time"

// RelType names a directed, typed relationship between two entities (§3.2).
type RelType string

const (
	RelContains         RelType = "CONTAINS"
	RelImports          RelType = "IMPORTS"
	RelCalls            RelType = "CALLS"
	RelImplementsFor    RelType = "IMPLEMENTS_FOR"
	RelImplementsTrait  RelType = "IMPLEMENTS_TRAIT"
	RelHasTask          RelType = "HAS_TASK"
	RelHasStep          RelType = "HAS_STEP"
	RelDependsOn        RelType = "DEPENDS_ON"
	RelConstrainedBy    RelType = "CONSTRAINED_BY"
	RelInformedBy       RelType = "INFORMED_BY"
	RelResolvedBy       RelType = "RESOLVED_BY"
	RelResultedIn       RelType = "RESULTED_IN"
	RelIncludesTask     RelType = "INCLUDES_TASK"
	RelIncludesCommit   RelType = "INCLUDES_COMMIT"
	RelAttachedTo       RelType = "ATTACHED_TO"
	RelSupersedes       RelType = "SUPERSEDES"
	RelDerivedFrom      RelType = "DERIVED_FROM"
	RelBelongsToWS      RelType = "BELONGS_TO_WORKSPACE"
	RelHasResource      RelType = "HAS_RESOURCE"
	RelImplementsRes    RelType = "IMPLEMENTS_RESOURCE"
	RelUsesResource     RelType = "USES_RESOURCE"
	RelMapsToProject    RelType = "MAPS_TO_PROJECT"
	RelDependsOnCompo   RelType = "DEPENDS_ON_COMPONENT"
	RelHasPlan          RelType = "HAS_PLAN"
)

// EntityType names the kind of node an entity/edge endpoint refers to.
type EntityType string

const (
	EntityProject   EntityType = "Project"
	EntityFile      EntityType = "File"
	EntityFunction  EntityType = "Function"
	EntityStruct    EntityType = "Struct"
	EntityEnum      EntityType = "Enum"
	EntityTrait     EntityType = "Trait"
	EntityExtTrait  EntityType = "ExternalTrait"
	EntityImport    EntityType = "Import"
	EntityImplBlock EntityType = "ImplBlock"
	EntityPlan      EntityType = "Plan"
	EntityTask      EntityType = "Task"
	EntityStep      EntityType = "Step"
	EntityDecision  EntityType = "Decision"
	EntityConstraint EntityType = "Constraint"
	EntityMilestone EntityType = "Milestone"
	EntityCommit    EntityType = "Commit"
	EntityWorkspace EntityType = "Workspace"
	EntityResource  EntityType = "Resource"
	EntityComponent EntityType = "Component"
	EntityNote      EntityType = "Note"
	EntityModule    EntityType = "Module"
)

// Project is the root container for a synced source tree (§3.1).
type Project struct {
	ID         string    `json:"id"`
	Slug       string    `json:"slug"`
	Name       string    `json:"name"`
	RootPath   string    `json:"root_path"`
	CreatedAt  time.Time `json:"created_at"`
	LastSynced time.Time `json:"last_synced,omitzero"`
}

// File is a source file contained in a Project.
type File struct {
	Path        string    `json:"path"`
	ProjectID   string    `json:"project_id"`
	Language    string    `json:"language"`
	ContentHash string    `json:"content_hash"`
	Size        int64     `json:"size"`
	MTime       time.Time `json:"mtime"`
}

// Function is a callable symbol contained in a File.
type Function struct {
	ID         string `json:"id"`
	FilePath   string `json:"file_path"`
	ProjectID  string `json:"project_id"`
	Name       string `json:"name"`
	Signature  string `json:"signature"`
	Line       int    `json:"line"`
	IsPublic   bool   `json:"is_public"`
	IsAsync    bool   `json:"is_async"`
	Docstring  string `json:"docstring,omitempty"`
}

// TypeKind distinguishes Struct/Enum/Trait records that share one table.
type TypeKind string

const (
	TypeKindStruct TypeKind = "struct"
	TypeKindEnum   TypeKind = "enum"
	TypeKindTrait  TypeKind = "trait"
)

// TypeDecl is a Struct, Enum, or Trait declaration contained in a File.
type TypeDecl struct {
	ID        string   `json:"id"`
	FilePath  string   `json:"file_path"`
	ProjectID string   `json:"project_id"`
	Kind      TypeKind `json:"kind"`
	Name      string   `json:"name"`
	Line      int      `json:"line"`
	IsPublic  bool     `json:"is_public"`
	Docstring string   `json:"docstring,omitempty"`
}

// Import is a raw import/use statement, optionally resolved to a File.
type Import struct {
	ID        string `json:"id"`
	FilePath  string `json:"file_path"`
	ProjectID string `json:"project_id"`
	RawPath   string `json:"raw_path"`
	// Hint carries the parser's resolution aid for RawPath, e.g. "relative"
	// for Python's "from . import x" style, empty/"module" otherwise.
	Hint         string `json:"hint,omitempty"`
	ResolvedFile string `json:"resolved_file,omitempty"`
}

// ImplBlock associates a type with an optional trait (Rust-style impls, or
// the language-agnostic equivalent).
type ImplBlock struct {
	ID        string `json:"id"`
	FilePath  string `json:"file_path"`
	ProjectID string `json:"project_id"`
	TypeName  string `json:"type_name"`
	TraitName string `json:"trait_name,omitempty"`
	Line      int    `json:"line"`
}

// ExternalTrait is a black-box trait classification returned by a language
// extractor (§4.D.6) — never synthesized as a local Trait node.
type ExternalTrait struct {
	Name        string `json:"name"`
	SourceCrate string `json:"source_crate"`
	IsExternal  bool   `json:"is_external"`
}

// PlanStatus is the lifecycle status of a Plan.
type PlanStatus string

const (
	PlanStatusDraft    PlanStatus = "draft"
	PlanStatusActive   PlanStatus = "active"
	PlanStatusComplete PlanStatus = "complete"
	PlanStatusArchived PlanStatus = "archived"
)

// Plan groups Tasks, Constraints, and Decisions under one objective.
type Plan struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      PlanStatus `json:"status"`
	Priority    int        `json:"priority"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TaskStatus is the lifecycle status of a Task (§3.3 task readiness).
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusBlocked    TaskStatus = "blocked"
)

// Task is a unit of work belonging to a Plan.
type Task struct {
	ID                 string     `json:"id"`
	PlanID             string     `json:"plan_id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	Status             TaskStatus `json:"status"`
	Priority           int        `json:"priority"`
	Tags               []string   `json:"tags,omitempty"`
	AcceptanceCriteria []string   `json:"acceptance_criteria,omitempty"`
	AffectedFiles      []string   `json:"affected_files,omitempty"`
	AssignedTo         string     `json:"assigned_to,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// StepStatus is the lifecycle status of a Step.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusSkipped    StepStatus = "skipped"
)

// Step is an advisory checklist item within a Task.
type Step struct {
	ID           string     `json:"id"`
	TaskID       string     `json:"task_id"`
	Description  string     `json:"description"`
	Verification string     `json:"verification,omitempty"`
	Status       StepStatus `json:"status"`
}

// Decision records a choice made while executing a Task. Append-only.
type Decision struct {
	ID           string    `json:"id"`
	TaskID       string    `json:"task_id"`
	Description  string    `json:"description"`
	Rationale    string    `json:"rationale,omitempty"`
	Alternatives []string  `json:"alternatives,omitempty"`
	ChosenOption string    `json:"chosen_option,omitempty"`
	DecidedAt    time.Time `json:"decided_at"`
}

// Constraint restricts how a Plan may be executed.
type Constraint struct {
	ID          string `json:"id"`
	PlanID      string `json:"plan_id"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// Commit is a first-class link target for Tasks, Plans, and Releases.
type Commit struct {
	SHA          string    `json:"sha"`
	ProjectID    string    `json:"project_id"`
	Message      string    `json:"message"`
	Author       string    `json:"author,omitempty"`
	FilesChanged []string  `json:"files_changed,omitempty"`
	CommittedAt  time.Time `json:"committed_at"`
}

// Milestone (Release) marks a target version/date for a Project.
type Milestone struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	Title      string     `json:"title"`
	TargetDate *time.Time `json:"target_date,omitempty"`
	Status     string     `json:"status"`
	Version    string     `json:"version,omitempty"`
}

// Workspace groups Resources and Components above the Project level.
type Workspace struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Resource is a named artifact (schema, contract, config) owned by a Workspace.
type Resource struct {
	ID       string `json:"id"`
	WsSlug   string `json:"workspace_slug"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	FilePath string `json:"file_path,omitempty"`
	Version  string `json:"version,omitempty"`
}

// Component is a runnable unit (service, worker) owned by a Workspace.
type Component struct {
	ID      string                 `json:"id"`
	WsSlug  string                 `json:"workspace_slug"`
	Name    string                 `json:"name"`
	Kind    string                 `json:"kind"`
	Runtime string                 `json:"runtime,omitempty"`
	Config  map[string]interface{} `json:"config,omitempty"`
}

// NoteType classifies a Note for staleness decay purposes (§4.G).
type NoteType string

const (
	NoteTypeContext     NoteType = "context"
	NoteTypeTip         NoteType = "tip"
	NoteTypeObservation NoteType = "observation"
	NoteTypeGotcha      NoteType = "gotcha"
	NoteTypeGuideline   NoteType = "guideline"
	NoteTypePattern     NoteType = "pattern"
	NoteTypeAssertion   NoteType = "assertion"
)

// NoteStatus is the lifecycle status of a Note (§4.G status machine).
type NoteStatus string

const (
	NoteStatusActive      NoteStatus = "active"
	NoteStatusNeedsReview NoteStatus = "needs_review"
	NoteStatusStale       NoteStatus = "stale"
	NoteStatusObsolete    NoteStatus = "obsolete"
	NoteStatusArchived    NoteStatus = "archived"
)

// Importance weights a Note's relevance and decay rate (§4.G).
type Importance string

const (
	ImportanceCritical Importance = "critical"
	ImportanceHigh     Importance = "high"
	ImportanceMedium   Importance = "medium"
	ImportanceLow      Importance = "low"
)

// Anchor ties a Note to a graph entity (§4.G "Anchors").
type Anchor struct {
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
}

// Note is a contextual knowledge note anchored to one or more entities.
type Note struct {
	ID              string     `json:"id"`
	ProjectID       string     `json:"project_id,omitempty"`
	WorkspaceSlug   string     `json:"workspace_slug,omitempty"`
	NoteType        NoteType   `json:"note_type"`
	Content         string     `json:"content"`
	Importance      Importance `json:"importance"`
	Status          NoteStatus `json:"status"`
	Tags            []string   `json:"tags,omitempty"`
	Scope           string     `json:"scope,omitempty"`
	Anchors         []Anchor   `json:"anchors"`
	StalenessScore  float64    `json:"staleness_score"`
	CreatedAt       time.Time  `json:"created_at"`
	LastConfirmedAt time.Time  `json:"last_confirmed_at,omitzero"`
	SupersedesID    string     `json:"supersedes_id,omitempty"`
}
