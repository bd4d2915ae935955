package workspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"codeforge/internal/graph"
	"codeforge/internal/model"
)

func TestRegisterResourceLinksHasResource(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMock()
	mgr := New(store)

	_, err := mgr.UpsertWorkspace(ctx, model.Workspace{Slug: "platform", Name: "Platform"})
	require.NoError(t, err)

	r, err := mgr.RegisterResource(ctx, model.Resource{ID: "res-1", WsSlug: "platform", Name: "orders-schema", Kind: "schema"})
	require.NoError(t, err)
	require.Equal(t, "res-1", r.ID)

	edges, err := store.EdgesFrom(ctx, model.EntityWorkspace, "platform", model.RelHasResource)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, "res-1", edges[0].ToID)

	got, ok, err := mgr.GetResource(ctx, "res-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "orders-schema", got.Name)

	list, total, err := mgr.ListResources(ctx, "platform", graph.Page{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
}

func TestRegisterComponentLinksMapsToProject(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMock()
	mgr := New(store)

	_, err := mgr.UpsertWorkspace(ctx, model.Workspace{Slug: "platform"})
	require.NoError(t, err)

	c, err := mgr.RegisterComponent(ctx, model.Component{ID: "comp-1", WsSlug: "platform", Name: "orders-svc", Kind: "service"}, "proj-1")
	require.NoError(t, err)
	require.Equal(t, "comp-1", c.ID)

	edges, err := store.EdgesFrom(ctx, model.EntityComponent, "comp-1", model.RelMapsToProject)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, "proj-1", edges[0].ToID)
}

func TestImplementsUsesAndDependsOn(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMock()
	mgr := New(store)

	require.NoError(t, mgr.Implements(ctx, "comp-1", "res-1"))
	require.NoError(t, mgr.Uses(ctx, "comp-2", "res-1"))
	require.NoError(t, mgr.DependsOn(ctx, "comp-2", "comp-1", "grpc", true))

	implEdges, err := store.EdgesFrom(ctx, model.EntityComponent, "comp-1", model.RelImplementsRes)
	require.NoError(t, err)
	require.Len(t, implEdges, 1)

	usesEdges, err := store.EdgesFrom(ctx, model.EntityComponent, "comp-2", model.RelUsesResource)
	require.NoError(t, err)
	require.Len(t, usesEdges, 1)

	depEdges, err := store.EdgesFrom(ctx, model.EntityComponent, "comp-2", model.RelDependsOnCompo)
	require.NoError(t, err)
	require.Len(t, depEdges, 1)
	require.Equal(t, "comp-1", depEdges[0].ToID)
	require.Equal(t, "grpc", depEdges[0].Metadata["protocol"])
	require.Equal(t, true, depEdges[0].Metadata["required"])
}
