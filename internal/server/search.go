package server

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/cortexkb/cortex/internal/sidecar"
	"github.com/cortexkb/cortex/internal/store"
)

// UniversalSearchResult is one merged hit from vector and entity search.
type UniversalSearchResult struct {
	Kind           string  `json:"kind"` // chunk or entity
	Title          string  `json:"title"`
	Text           string  `json:"text,omitempty"`
	EntityID       string  `json:"entity_id,omitempty"`
	EntityType     string  `json:"entity_type,omitempty"`
	SourceFile     string  `json:"source_file,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

type universalSearchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) handleUniversalSearch(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var args universalSearchArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Limit <= 0 {
		args.Limit = 20
	}

	merged := make([]UniversalSearchResult, 0)

	// Vector hits are best-effort: a sidecar outage degrades to local search.
	if vec, err := s.client.Search(ctx, args.Query, args.Limit, nil); err == nil {
		for _, hit := range vec {
			title := hit.SourceFile
			if hit.EntityName != nil && *hit.EntityName != "" {
				title = *hit.EntityName
			}
			merged = append(merged, UniversalSearchResult{
				Kind:           "chunk",
				Title:          title,
				Text:           hit.Text,
				SourceFile:     hit.SourceFile,
				RelevanceScore: hit.RelevanceScore,
			})
		}
	} else {
		s.log.Debug().Err(err).Msg("vector search unavailable")
	}

	profileID, err := s.activeProfile()
	if err != nil {
		return nil, err
	}
	entities, err := s.store.SearchEntities(args.Query, nil, profileID, args.Limit)
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		var source string
		if e.SourceFile != nil {
			source = *e.SourceFile
		}
		merged = append(merged, UniversalSearchResult{
			Kind:           "entity",
			Title:          e.Title,
			EntityID:       e.ID,
			EntityType:     e.EntityType,
			SourceFile:     source,
			RelevanceScore: scoreEntity(args.Query, e),
		})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].RelevanceScore > merged[j].RelevanceScore
	})
	if len(merged) > args.Limit {
		merged = merged[:args.Limit]
	}
	return map[string]interface{}{"results": merged, "query": args.Query}, nil
}

// scoreEntity computes the local relevance score for an entity hit:
// exact title 0.95, title substring 0.80, content substring 0.60,
// otherwise 0.50, plus a small recency boost capped at 1.0.
func scoreEntity(query string, e store.EntitySearchResult) float64 {
	q := strings.ToLower(query)
	title := strings.ToLower(e.Title)

	var score float64
	switch {
	case title == q:
		score = 0.95
	case strings.Contains(title, q):
		score = 0.80
	case e.Content != nil && strings.Contains(strings.ToLower(*e.Content), q):
		score = 0.60
	default:
		score = 0.50
	}

	if updated, ok := parseTimestamp(e.UpdatedAt); ok {
		age := time.Since(updated)
		if age < 24*time.Hour {
			score += 0.05
		} else if age < 7*24*time.Hour {
			score += 0.02
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// parseTimestamp reads SQLite CURRENT_TIMESTAMP values (UTC).
func parseTimestamp(value string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (s *Server) searchSidecar(ctx context.Context, args semanticSearchArgs) ([]sidecar.SearchResult, error) {
	var filters *sidecar.SearchFilters
	if args.Filters != nil {
		filters = &sidecar.SearchFilters{
			Language:       args.Filters.Language,
			SourceType:     args.Filters.SourceType,
			ChunkType:      args.Filters.ChunkType,
			FilePathPrefix: args.Filters.FilePathPrefix,
		}
	}
	return s.client.Search(ctx, args.Query, args.Limit, filters)
}
