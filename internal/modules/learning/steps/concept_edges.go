package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/studypath-backend/internal/data/graph"
	repos "github.com/yungbote/studypath-backend/internal/data/repos/learning"
	"github.com/yungbote/studypath-backend/internal/domain/learning"
	"github.com/yungbote/studypath-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
	"github.com/yungbote/studypath-backend/internal/platform/neo4jdb"
	"github.com/yungbote/studypath-backend/internal/platform/openai"
)

type ConceptEdgesDeps struct {
	Log      *logger.Logger
	Concepts repos.ConceptRepo
	AI       openai.Client
	Graph    *neo4jdb.Client
}

type ConceptEdgesInput struct {
	OwnerUserID uuid.UUID
	FileID      uuid.UUID
	Concepts    []*learning.Concept
}

type ConceptEdgesOutput struct {
	EdgesMade   int  `json:"edges_made"`
	GraphSynced bool `json:"graph_synced"`
}

// ConceptEdges asks the model for prereq/related relations among the file's
// concepts, persists the valid ones, and mirrors the result to the graph
// store when one is configured. The whole step is advisory: any failure here
// logs and the file still completes.
func ConceptEdges(ctx context.Context, deps ConceptEdgesDeps, in ConceptEdgesInput) (ConceptEdgesOutput, error) {
	out := ConceptEdgesOutput{}
	if deps.Log == nil || deps.Concepts == nil || deps.AI == nil {
		return out, fmt.Errorf("concept_edges: missing deps")
	}
	if in.OwnerUserID == uuid.Nil || in.FileID == uuid.Nil {
		return out, fmt.Errorf("concept_edges: missing ids: %w", apperrors.ErrInvalidArgument)
	}
	if len(in.Concepts) < 2 {
		return out, nil
	}

	byOrdinal := make(map[int]*learning.Concept, len(in.Concepts))
	var listing strings.Builder
	for i, c := range in.Concepts {
		if c == nil || c.ID == uuid.Nil {
			continue
		}
		byOrdinal[i] = c
		fmt.Fprintf(&listing, "%d. %s: %s\n", i, c.Title, shorten(c.Explanation, 240))
	}
	if len(byOrdinal) < 2 {
		return out, nil
	}

	system, user := conceptEdgesPrompt(listing.String(), envutil.Int("CONCEPT_EDGES_MAX", 3*len(byOrdinal)))
	obj, err := deps.AI.GenerateJSON(ctx, system, user, "concept_edges", conceptEdgesSchema())
	if err != nil {
		deps.Log.Warn("concept edge proposal failed, file keeps its concepts without relations", "file_id", in.FileID, "error", err.Error())
		return out, nil
	}

	type pairKey struct {
		from, to int
		kind     string
	}
	seen := map[pairKey]bool{}
	rows := make([]*learning.ConceptEdge, 0)
	for _, m := range mapSliceFromAny(obj["edges"]) {
		fromF, okF := floatFromAny(m["from"])
		toF, okT := floatFromAny(m["to"])
		kind := strings.ToLower(stringFromAny(m["edge_type"]))
		if !okF || !okT {
			continue
		}
		if kind != learning.EdgeTypePrereq && kind != learning.EdgeTypeRelated {
			continue
		}
		from, to := int(fromF), int(toF)
		cFrom, cTo := byOrdinal[from], byOrdinal[to]
		if cFrom == nil || cTo == nil || from == to {
			continue
		}
		k := pairKey{from: from, to: to, kind: kind}
		if seen[k] {
			continue
		}
		seen[k] = true
		strength, _ := floatFromAny(m["strength"])
		if strength < 0 {
			strength = 0
		}
		if strength > 1 {
			strength = 1
		}
		rows = append(rows, &learning.ConceptEdge{
			FileID:        in.FileID,
			FromConceptID: cFrom.ID,
			ToConceptID:   cTo.ID,
			EdgeType:      kind,
			Strength:      strength,
		})
	}
	if len(rows) == 0 {
		return out, nil
	}

	if err := deps.Concepts.CreateEdges(dbctx.From(ctx), rows); err != nil {
		deps.Log.Warn("concept edge persist failed", "file_id", in.FileID, "error", err.Error())
		return out, nil
	}
	out.EdgesMade = len(rows)

	if deps.Graph != nil {
		if err := graph.UpsertFileConceptGraph(ctx, deps.Graph, deps.Log, in.FileID, in.Concepts, rows); err != nil {
			deps.Log.Warn("concept graph sync failed", "file_id", in.FileID, "error", err.Error())
		} else {
			out.GraphSynced = true
		}
	}
	return out, nil
}
