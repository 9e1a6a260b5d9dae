package server

import (
	"context"
	"encoding/json"
	"fmt"
)

// HealthStatus aggregates component health for the UI.
type HealthStatus struct {
	Core    string `json:"core"`
	SQLite  string `json:"sqlite"`
	Sidecar string `json:"sidecar"`
	LanceDB string `json:"lancedb"`
}

func (s *Server) handleHealthCheck(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	status := HealthStatus{Core: "ok"}

	if err := s.store.Ping(); err != nil {
		status.SQLite = fmt.Sprintf("error: %v", err)
	} else {
		status.SQLite = "ok"
	}

	health, err := s.client.Health(ctx)
	if err != nil {
		status.Sidecar = fmt.Sprintf("unreachable: %v", err)
		status.LanceDB = "unknown"
	} else {
		status.Sidecar = health.Status
		if health.LanceDB != "" {
			status.LanceDB = health.LanceDB
		} else {
			status.LanceDB = "unknown"
		}
	}
	return status, nil
}

func (s *Server) handleGetAppStatus(_ context.Context, _ json.RawMessage) (interface{}, error) {
	return map[string]string{"sidecar": string(s.manager.Status())}, nil
}

func (s *Server) handleGetIndexingStatus(_ context.Context, _ json.RawMessage) (interface{}, error) {
	if s.pipeline == nil {
		return map[string]interface{}{"completed": 0, "total": 0, "current_file": nil, "is_idle": true}, nil
	}
	return s.pipeline.Progress(), nil
}

type semanticSearchArgs struct {
	Query   string `json:"query"`
	Limit   int    `json:"limit"`
	Filters *struct {
		Language       string `json:"language"`
		SourceType     string `json:"source_type"`
		ChunkType      string `json:"chunk_type"`
		FilePathPrefix string `json:"file_path_prefix"`
	} `json:"filters"`
}

func (s *Server) handleSemanticSearch(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var args semanticSearchArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Limit <= 0 {
		args.Limit = 10
	}

	results, err := s.searchSidecar(ctx, args)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"results": results, "query": args.Query}, nil
}

type entitySearchArgs struct {
	Query      string  `json:"query"`
	EntityType *string `json:"entity_type"`
	Limit      int     `json:"limit"`
}

func (s *Server) handleEntitySearch(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args entitySearchArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	profileID, err := s.activeProfile()
	if err != nil {
		return nil, err
	}
	if args.Limit <= 0 {
		args.Limit = 20
	}
	return s.store.SearchEntities(args.Query, args.EntityType, profileID, args.Limit)
}

func (s *Server) activeProfile() (string, error) {
	id, err := s.store.ActiveProfileID()
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("no active workspace profile")
	}
	return id, nil
}

func unmarshalArgs(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing arguments")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
