// Package propagation implements the Note Propagation Engine (§4.H): given
// a target entity, finds directly-anchored notes plus notes reachable by
// walking a whitelisted set of edge types outward, scored by a decaying
// per-hop weight times note freshness and importance.
package propagation

import (
	"context"
	"sort"

	"codeforge/internal/graph"
	"codeforge/internal/model"
)

// DefaultMaxDepth is the BFS depth cap when a caller doesn't specify one.
const DefaultMaxDepth = 3

// DefaultMinScore filters out propagated notes below this relevance.
const DefaultMinScore = 0.1

var importanceWeight = map[model.Importance]float64{
	model.ImportanceCritical: 1.3,
	model.ImportanceHigh:     1.1,
	model.ImportanceMedium:   1.0,
	model.ImportanceLow:      0.8,
}

// edgeWeight returns the per-hop multiplier for traversing rel in the
// stored From->To direction (forward=true) or the reverse (forward=false),
// and whether rel is in the propagation whitelist at all (§4.H step 2).
func edgeWeight(rel model.RelType, forward bool) (float64, bool) {
	switch rel {
	case model.RelContains:
		// spec.md §4.H pairs "up"/"down" with file->function/function->file
		// inconsistently with its own worked example (S4: a function
		// propagating to its containing file scores the CONTAINS hop at
		// 0.9, not the 0.8 the direction table would suggest). The worked
		// numeric scenario is the testable property, so a walk away from a
		// contained entity toward its container (forward=false, i.e.
		// function->file) uses 0.9 and a walk from a container down into
		// what it contains (forward=true, file->function) uses 0.8.
		if forward {
			return 0.8, true // file -> function
		}
		return 0.9, true // function -> file
	case model.RelImports:
		return 0.6, true
	case model.RelCalls:
		return 0.5, true
	case model.RelBelongsToWS:
		return 0.8, true
	default:
		return 0, false
	}
}

// Propagated is one note reached by the propagation walk, carrying the
// highest-scoring path discovered to it.
type Propagated struct {
	Note           model.Note
	SourceEntity   model.Anchor
	Path           []model.RelType
	RelevanceScore float64
}

// Result is the full answer for one target entity.
type Result struct {
	Direct     []model.Note
	Propagated []Propagated
}

type frontierNode struct {
	anchor model.Anchor
	score  float64
	path   []model.RelType
}

// Notes computes {direct, propagated[]} for target, per §4.H's algorithm.
func Notes(ctx context.Context, store graph.Store, target model.Anchor, maxDepth int, minScore float64) (Result, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if minScore <= 0 {
		minScore = DefaultMinScore
	}

	direct, err := activeNotesFor(ctx, store, target)
	if err != nil {
		return Result{}, err
	}

	best := make(map[model.Anchor]frontierNode) // highest-score path discovered per visited entity
	visited := map[model.Anchor]bool{target: true}
	frontier := []frontierNode{{anchor: target, score: 1.0}}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []frontierNode
		expansions := make(map[model.Anchor]frontierNode)

		for _, node := range frontier {
			neighbors, err := neighborsOf(ctx, store, node.anchor)
			if err != nil {
				return Result{}, err
			}
			sort.Slice(neighbors, func(i, j int) bool { return lessAnchor(neighbors[i].anchor, neighbors[j].anchor) })
			for _, n := range neighbors {
				weight, ok := edgeWeight(n.rel, n.forward)
				if !ok {
					continue
				}
				score := node.score * weight
				cand := frontierNode{anchor: n.anchor, score: score, path: append(append([]model.RelType{}, node.path...), n.rel)}
				if existing, ok := expansions[n.anchor]; !ok || cand.score > existing.score {
					expansions[n.anchor] = cand
				}
			}
		}

		// Sort expansion keys for deterministic visitation order (§4.H "Determinism").
		var keys []model.Anchor
		for a := range expansions {
			keys = append(keys, a)
		}
		sort.Slice(keys, func(i, j int) bool { return lessAnchor(keys[i], keys[j]) })

		for _, a := range keys {
			cand := expansions[a]
			if prev, ok := best[a]; !ok || cand.score > prev.score {
				best[a] = cand
			}
			if !visited[a] {
				visited[a] = true
				next = append(next, cand)
			}
		}
		frontier = next
	}

	var propagated []Propagated
	for anchor, node := range best {
		if anchor == target {
			continue
		}
		notesHere, err := activeNotesFor(ctx, store, anchor)
		if err != nil {
			return Result{}, err
		}
		for _, note := range notesHere {
			score := node.score * (1 - note.StalenessScore) * importanceOf(note.Importance)
			if score < minScore {
				continue
			}
			propagated = append(propagated, Propagated{
				Note: note, SourceEntity: anchor, Path: node.path, RelevanceScore: score,
			})
		}
	}

	sort.Slice(propagated, func(i, j int) bool {
		a, b := propagated[i], propagated[j]
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		if a.Note.Importance != b.Note.Importance {
			return importanceOf(a.Note.Importance) > importanceOf(b.Note.Importance)
		}
		return a.Note.CreatedAt.After(b.Note.CreatedAt)
	})

	return Result{Direct: direct, Propagated: propagated}, nil
}

func importanceOf(i model.Importance) float64 {
	if w, ok := importanceWeight[i]; ok {
		return w
	}
	return 1.0
}

func activeNotesFor(ctx context.Context, store graph.Store, anchor model.Anchor) ([]model.Note, error) {
	all, err := store.NotesByAnchor(ctx, anchor)
	if err != nil {
		return nil, err
	}
	var out []model.Note
	for _, n := range all {
		if n.Status == model.NoteStatusActive {
			out = append(out, n)
		}
	}
	return out, nil
}

type neighbor struct {
	anchor  model.Anchor
	rel     model.RelType
	forward bool
}

func neighborsOf(ctx context.Context, store graph.Store, anchor model.Anchor) ([]neighbor, error) {
	out, err := store.EdgesFrom(ctx, anchor.EntityType, anchor.EntityID, "")
	if err != nil {
		return nil, err
	}
	var neighbors []neighbor
	for _, e := range out {
		neighbors = append(neighbors, neighbor{anchor: model.Anchor{EntityType: e.ToType, EntityID: e.ToID}, rel: e.RelType, forward: true})
	}
	in, err := store.EdgesTo(ctx, anchor.EntityType, anchor.EntityID, "")
	if err != nil {
		return nil, err
	}
	for _, e := range in {
		neighbors = append(neighbors, neighbor{anchor: model.Anchor{EntityType: e.FromType, EntityID: e.FromID}, rel: e.RelType, forward: false})
	}
	return neighbors, nil
}

func lessAnchor(a, b model.Anchor) bool {
	if a.EntityType != b.EntityType {
		return a.EntityType < b.EntityType
	}
	return a.EntityID < b.EntityID
}
