package server

import (
	"context"
	"encoding/json"
	"fmt"
)

// ─── Notes ───────────────────────────────────────────────────────────

type noteCreateArgs struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) handleNoteCreate(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args noteCreateArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	profileID, err := s.activeProfile()
	if err != nil {
		return nil, err
	}
	return s.store.CreateNote(args.Title, args.Content, profileID)
}

type idArgs struct {
	ID string `json:"id"`
}

func (s *Server) handleNoteGet(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args idArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	note, err := s.store.GetNote(args.ID)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, fmt.Errorf("note not found: %s", args.ID)
	}
	return note, nil
}

func (s *Server) handleNoteList(_ context.Context, _ json.RawMessage) (interface{}, error) {
	profileID, err := s.activeProfile()
	if err != nil {
		return nil, err
	}
	return s.store.ListNotes(profileID)
}

type noteUpdateArgs struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) handleNoteUpdate(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args noteUpdateArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	return s.store.UpdateNote(args.ID, args.Title, args.Content)
}

func (s *Server) handleNoteDelete(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args idArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	return s.store.DeleteNote(args.ID)
}

// ─── Tasks ───────────────────────────────────────────────────────────

type taskCreateArgs struct {
	Title    string  `json:"title"`
	Content  *string `json:"content"`
	Priority string  `json:"priority"`
}

func (s *Server) handleTaskCreate(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args taskCreateArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	profileID, err := s.activeProfile()
	if err != nil {
		return nil, err
	}
	return s.store.CreateTask(args.Title, args.Content, args.Priority, profileID, nil)
}

func (s *Server) handleTaskGet(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args idArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	task, err := s.store.GetTask(args.ID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task not found: %s", args.ID)
	}
	return task, nil
}

type taskListArgs struct {
	Status *string `json:"status"`
}

func (s *Server) handleTaskList(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args taskListArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
	}
	profileID, err := s.activeProfile()
	if err != nil {
		return nil, err
	}
	return s.store.ListTasks(profileID, args.Status)
}

type taskUpdateArgs struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Content    *string `json:"content"`
	Status     string  `json:"status"`
	Priority   string  `json:"priority"`
	DueDate    *string `json:"due_date"`
	AssignedTo *string `json:"assigned_to"`
}

func (s *Server) handleTaskUpdate(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args taskUpdateArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	return s.store.UpdateTask(args.ID, args.Title, args.Content, args.Status, args.Priority, args.DueDate, args.AssignedTo)
}

func (s *Server) handleTaskDelete(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args idArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	return s.store.DeleteTask(args.ID)
}

// ─── Links ───────────────────────────────────────────────────────────

type linkCreateArgs struct {
	SourceID         string `json:"source_id"`
	TargetID         string `json:"target_id"`
	RelationshipType string `json:"relationship_type"`
}

func (s *Server) handleEntityLinkCreate(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args linkCreateArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	// Manual links are user-confirmed from the start.
	return s.store.CreateEntityLink(args.SourceID, args.TargetID, args.RelationshipType, 1.0, false, nil)
}

type entityIDArgs struct {
	EntityID string `json:"entity_id"`
}

func (s *Server) handleEntityLinkList(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args entityIDArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	return s.store.ListEntityLinks(args.EntityID)
}

type linkIDArgs struct {
	LinkID string `json:"link_id"`
}

func (s *Server) handleEntityLinkDelete(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args linkIDArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	return s.store.DeleteEntityLink(args.LinkID)
}

func (s *Server) handleEntityLinkConfirm(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args linkIDArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	return s.store.ConfirmEntityLink(args.LinkID)
}

func (s *Server) handleEntityLinksWithDetails(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args entityIDArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	return s.store.ListEntityLinksWithDetails(args.EntityID)
}

type suggestedLinksArgs struct {
	EntityID      string  `json:"entity_id"`
	MinConfidence float64 `json:"min_confidence"`
}

func (s *Server) handleListSuggestedLinks(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args suggestedLinksArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	return s.store.ListSuggestedLinks(args.EntityID, args.MinConfidence)
}

// ─── Auto-linking ────────────────────────────────────────────────────

func (s *Server) handleNoteAutoLink(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var args idArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	return s.linker.AutoLinkNote(ctx, args.ID)
}

type terminalExtractArgs struct {
	Limit int `json:"limit"`
}

func (s *Server) handleExtractTasksFromTerminal(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var args terminalExtractArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
	}
	if args.Limit <= 0 {
		args.Limit = 50
	}
	created, err := s.linker.ExtractTasksFromTerminal(ctx, args.Limit)
	if err != nil {
		return nil, err
	}
	return map[string]int{"tasks_created": created}, nil
}

// ─── Profiles ────────────────────────────────────────────────────────

func (s *Server) handleProfileList(_ context.Context, _ json.RawMessage) (interface{}, error) {
	return s.store.ListProfiles()
}

type profileCreateArgs struct {
	Name               string   `json:"name"`
	WatchedDirectories []string `json:"watched_directories"`
}

func (s *Server) handleProfileCreate(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args profileCreateArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	return s.store.CreateProfile(args.Name, args.WatchedDirectories)
}

func (s *Server) handleProfileSetActive(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args idArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := s.store.SetActiveProfile(args.ID); err != nil {
		return nil, err
	}
	return true, nil
}

type profileDirsArgs struct {
	ID                 string   `json:"id"`
	WatchedDirectories []string `json:"watched_directories"`
}

func (s *Server) handleProfileSetWatchedDirs(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args profileDirsArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := s.store.UpdateWatchedDirectories(args.ID, args.WatchedDirectories); err != nil {
		return nil, err
	}
	return true, nil
}

// ─── App config ──────────────────────────────────────────────────────

type configKeyArgs struct {
	Key string `json:"key"`
}

func (s *Server) handleConfigGet(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args configKeyArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	value, err := s.store.ConfigGet(args.Key)
	if err != nil {
		return nil, err
	}
	return map[string]string{"key": args.Key, "value": value}, nil
}

type configSetArgs struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) handleConfigSet(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args configSetArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := s.store.ConfigSet(args.Key, args.Value); err != nil {
		return nil, err
	}
	return true, nil
}

// ─── Session state + passive rows ────────────────────────────────────

type sessionSaveArgs struct {
	Payload         string `json:"payload"`
	Trigger         string `json:"trigger"`
	DurationMinutes *int   `json:"duration_minutes"`
}

func (s *Server) handleSessionStateSave(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args sessionSaveArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	profileID, err := s.activeProfile()
	if err != nil {
		return nil, err
	}
	id, err := s.store.SaveSessionState(profileID, args.Payload, args.Trigger, args.DurationMinutes)
	if err != nil {
		return nil, err
	}
	return map[string]string{"id": id}, nil
}

func (s *Server) handleSessionStateLoad(_ context.Context, _ json.RawMessage) (interface{}, error) {
	profileID, err := s.activeProfile()
	if err != nil {
		return nil, err
	}
	payload, err := s.store.LoadLatestSessionState(profileID)
	if err != nil {
		return nil, err
	}
	return map[string]string{"payload": payload}, nil
}

type gitEventArgs struct {
	EventType  string  `json:"event_type"`
	RepoPath   *string `json:"repo_path"`
	RefName    *string `json:"ref_name"`
	CommitHash *string `json:"commit_hash"`
	Message    *string `json:"message"`
	Author     *string `json:"author"`
}

func (s *Server) handleGitEventInsert(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args gitEventArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	profileID, err := s.activeProfile()
	if err != nil {
		return nil, err
	}
	id, err := s.store.InsertGitEvent(profileID, args.EventType, args.RepoPath, args.RefName, args.CommitHash, args.Message, args.Author)
	if err != nil {
		return nil, err
	}
	return map[string]string{"id": id}, nil
}

type limitArgs struct {
	Limit int `json:"limit"`
}

func (s *Server) handleGitEventList(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args limitArgs
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &args)
	}
	profileID, err := s.activeProfile()
	if err != nil {
		return nil, err
	}
	return s.store.ListGitEvents(profileID, args.Limit)
}

type chatInsertArgs struct {
	ThreadID *string `json:"thread_id"`
	Role     string  `json:"role"`
	Content  string  `json:"content"`
}

func (s *Server) handleChatInsert(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args chatInsertArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	profileID, err := s.activeProfile()
	if err != nil {
		return nil, err
	}
	id, err := s.store.InsertChatMessage(profileID, args.ThreadID, args.Role, args.Content)
	if err != nil {
		return nil, err
	}
	return map[string]string{"id": id}, nil
}

type chatListArgs struct {
	ThreadID string `json:"thread_id"`
	Limit    int    `json:"limit"`
}

func (s *Server) handleChatList(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args chatListArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	return s.store.ListChatMessages(args.ThreadID, args.Limit)
}
