// Package workspace registers Workspaces, Resources, and Components (§3.1)
// and wires the workspace-domain edges (§3.2): BELONGS_TO_WORKSPACE,
// HAS_RESOURCE, IMPLEMENTS_RESOURCE, USES_RESOURCE, MAPS_TO_PROJECT, and
// DEPENDS_ON_COMPONENT. It is a thin CRUD+link wrapper over the Graph
// Store, the same shape as notes.Manager.
package workspace

import (
	"context"

	"codeforge/internal/errs"
	"codeforge/internal/graph"
	"codeforge/internal/model"
)

type Manager struct {
	store graph.Store
}

func New(store graph.Store) *Manager {
	return &Manager{store: store}
}

func (m *Manager) UpsertWorkspace(ctx context.Context, w model.Workspace) (model.Workspace, error) {
	return m.store.UpsertWorkspace(ctx, w)
}

func (m *Manager) AttachProject(ctx context.Context, projectID, workspaceSlug string) error {
	return m.store.LinkProjectToWorkspace(ctx, projectID, workspaceSlug)
}

// RegisterResource upserts r and records that its workspace owns it
// (HAS_RESOURCE).
func (m *Manager) RegisterResource(ctx context.Context, r model.Resource) (model.Resource, error) {
	if r.WsSlug == "" {
		return model.Resource{}, errs.Validation("workspace.RegisterResource", nil)
	}
	out, err := m.store.UpsertResource(ctx, r)
	if err != nil {
		return model.Resource{}, err
	}
	if err := m.store.LinkWorkspaceResource(ctx, out.WsSlug, out.ID); err != nil {
		return model.Resource{}, err
	}
	return out, nil
}

func (m *Manager) GetResource(ctx context.Context, id string) (model.Resource, bool, error) {
	return m.store.GetResource(ctx, id)
}

func (m *Manager) ListResources(ctx context.Context, workspaceSlug string, page graph.Page) ([]model.Resource, int, error) {
	return m.store.ListResources(ctx, workspaceSlug, page)
}

// RegisterComponent upserts c and, when projectID is non-empty, records
// that it's implemented by that project's source tree (MAPS_TO_PROJECT).
func (m *Manager) RegisterComponent(ctx context.Context, c model.Component, projectID string) (model.Component, error) {
	if c.WsSlug == "" {
		return model.Component{}, errs.Validation("workspace.RegisterComponent", nil)
	}
	out, err := m.store.UpsertComponent(ctx, c)
	if err != nil {
		return model.Component{}, err
	}
	if projectID != "" {
		if err := m.store.LinkComponentToProject(ctx, out.ID, projectID); err != nil {
			return model.Component{}, err
		}
	}
	return out, nil
}

func (m *Manager) GetComponent(ctx context.Context, id string) (model.Component, bool, error) {
	return m.store.GetComponent(ctx, id)
}

func (m *Manager) ListComponents(ctx context.Context, workspaceSlug string, page graph.Page) ([]model.Component, int, error) {
	return m.store.ListComponents(ctx, workspaceSlug, page)
}

// Implements records that componentID provides resourceID
// (IMPLEMENTS_RESOURCE).
func (m *Manager) Implements(ctx context.Context, componentID, resourceID string) error {
	return m.store.LinkComponentResource(ctx, componentID, resourceID, true)
}

// Uses records that componentID consumes resourceID (USES_RESOURCE).
func (m *Manager) Uses(ctx context.Context, componentID, resourceID string) error {
	return m.store.LinkComponentResource(ctx, componentID, resourceID, false)
}

// DependsOn records fromComponentID's dependency on toComponentID over
// protocol (DEPENDS_ON_COMPONENT{protocol, required}).
func (m *Manager) DependsOn(ctx context.Context, fromComponentID, toComponentID, protocol string, required bool) error {
	return m.store.LinkComponentDependency(ctx, fromComponentID, toComponentID, protocol, required)
}
