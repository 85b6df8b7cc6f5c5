package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/studypath-backend/internal/domain/learning"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/neo4jdb"
)

// UpsertFileConceptGraph mirrors one file's concepts and edges into neo4j.
// A nil client means graph sync is disabled and the call is a no-op; Postgres
// stays the source of truth either way.
func UpsertFileConceptGraph(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, fileID uuid.UUID, concepts []*learning.Concept, edges []*learning.ConceptEdge) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if fileID == uuid.Nil {
		return fmt.Errorf("neo4j concept graph sync: missing fileID")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	nodes := make([]map[string]any, 0, len(concepts))
	for _, c := range concepts {
		if c == nil || c.ID == uuid.Nil {
			continue
		}
		node := map[string]any{
			"id":            c.ID.String(),
			"file_id":       fileID.String(),
			"owner_user_id": c.OwnerUserID.String(),
			"title":         c.Title,
			"explanation":   truncateString(c.Explanation, 1600),
			"sort_index":    int64(c.SortIndex),
			"is_custom":     c.IsCustom,
			"synced_at":     now,
		}
		if c.Page != nil {
			node["page"] = int64(*c.Page)
		}
		if c.StartSec != nil {
			node["start_sec"] = *c.StartSec
		}
		if c.EndSec != nil {
			node["end_sec"] = *c.EndSec
		}
		nodes = append(nodes, node)
	}

	rels := make([]map[string]any, 0, len(edges))
	prereq := make([]map[string]any, 0, len(edges))
	related := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		if e == nil || e.FromConceptID == uuid.Nil || e.ToConceptID == uuid.Nil || e.EdgeType == "" {
			continue
		}
		rec := map[string]any{
			"id":        e.ID.String(),
			"from_id":   e.FromConceptID.String(),
			"to_id":     e.ToConceptID.String(),
			"edge_type": e.EdgeType,
			"strength":  e.Strength,
			"file_id":   fileID.String(),
			"synced_at": now,
		}
		rels = append(rels, rec)
		switch e.EdgeType {
		case learning.EdgeTypePrereq:
			prereq = append(prereq, rec)
		case learning.EdgeTypeRelated:
			related = append(related, rec)
		}
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	// Create schema helpers (best-effort; may fail for restricted users).
	if res, err := session.Run(ctx, `CREATE CONSTRAINT concept_id_unique IF NOT EXISTS FOR (c:Concept) REQUIRE c.id IS UNIQUE`, nil); err != nil {
		if log != nil {
			log.Warn("neo4j schema init failed (continuing)", "error", err)
		}
	} else {
		_, _ = res.Consume(ctx)
	}
	if res, err := session.Run(ctx, `CREATE INDEX concept_file_idx IF NOT EXISTS FOR (c:Concept) ON (c.file_id)`, nil); err != nil {
		if log != nil {
			log.Warn("neo4j schema init failed (continuing)", "error", err)
		}
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(nodes) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $nodes AS n
MERGE (c:Concept {id: n.id})
SET c += n
`, map[string]any{"nodes": nodes})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		if len(rels) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $rels AS r
MATCH (a:Concept {id: r.from_id})
MATCH (b:Concept {id: r.to_id})
MERGE (a)-[e:CONCEPT_EDGE {edge_type: r.edge_type}]->(b)
SET e.id = r.id,
    e.strength = r.strength,
    e.file_id = r.file_id,
    e.synced_at = r.synced_at
`, map[string]any{"rels": rels})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		// Convenience edges for fast traversals without property filtering.
		if len(prereq) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $rels AS r
MATCH (a:Concept {id: r.from_id})
MATCH (b:Concept {id: r.to_id})
MERGE (a)-[e:CONCEPT_PREREQ]->(b)
SET e.id = r.id,
    e.strength = r.strength,
    e.file_id = r.file_id,
    e.synced_at = r.synced_at
`, map[string]any{"rels": prereq})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		if len(related) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $rels AS r
MATCH (a:Concept {id: r.from_id})
MATCH (b:Concept {id: r.to_id})
MERGE (a)-[e:CONCEPT_RELATED]->(b)
SET e.id = r.id,
    e.strength = r.strength,
    e.file_id = r.file_id,
    e.synced_at = r.synced_at
`, map[string]any{"rels": related})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		return nil, nil
	})
	return err
}

// DeleteFileConceptGraph removes a file's concept nodes and their edges,
// used when a file is deleted or reprocessed from scratch.
func DeleteFileConceptGraph(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, fileID uuid.UUID) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if fileID == uuid.Nil {
		return fmt.Errorf("neo4j concept graph delete: missing fileID")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:Concept {file_id: $file_id})
DETACH DELETE c
`, map[string]any{"file_id": fileID.String()})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err == nil && log != nil {
		log.Debug("neo4j concept graph cleared", "file_id", fileID)
	}
	return err
}

// DeleteConceptNode removes a single concept node and its relationships,
// used when a user deletes one concept without reprocessing the file.
func DeleteConceptNode(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, conceptID uuid.UUID) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if conceptID == uuid.Nil {
		return fmt.Errorf("neo4j concept node delete: missing conceptID")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:Concept {id: $id})
DETACH DELETE c
`, map[string]any{"id": conceptID.String()})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err == nil && log != nil {
		log.Debug("neo4j concept node removed", "concept_id", conceptID)
	}
	return err
}

func truncateString(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
