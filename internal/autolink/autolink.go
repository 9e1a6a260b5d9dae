// Package autolink materializes suggested links and extracted tasks from
// free text: note bodies and terminal history run through the sidecar's
// reference extraction and the results are resolved against the store.
package autolink

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cortexkb/cortex/internal/logging"
	"github.com/cortexkb/cortex/internal/sidecar"
	"github.com/cortexkb/cortex/internal/store"
)

// contextWindow is the number of bytes kept on each side of a reference
// when recording link context.
const contextWindow = 30

// Linker runs the auto-linking workflow.
type Linker struct {
	store  *store.Store
	client *sidecar.Client
	log    zerolog.Logger
}

// NewLinker creates a linker over the given store and sidecar client.
func NewLinker(st *store.Store, client *sidecar.Client) *Linker {
	return &Linker{
		store:  st,
		client: client,
		log:    logging.Component("autolink"),
	}
}

// AutoLinkNote embeds the note, extracts references from its content and
// creates suggested links plus extracted tasks. Returns the created links.
func (l *Linker) AutoLinkNote(ctx context.Context, noteID string) ([]store.EntityLinkRow, error) {
	note, err := l.store.GetNote(noteID)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, fmt.Errorf("note not found: %s", noteID)
	}

	profileID := note.ProfileID
	if profileID == "" {
		profileID, err = l.store.ActiveProfileID()
		if err != nil {
			return nil, err
		}
	}

	// Refresh the note's embedding under its stable source key.
	sourceKey := "note_" + noteID
	if err := l.client.DeleteEmbeddings(ctx, sourceKey); err != nil {
		l.log.Debug().Err(err).Str("note", noteID).Msg("stale note embedding delete failed")
	}
	if note.Content != "" {
		err := l.client.Embed(ctx, &sidecar.EmbedRequest{
			Text: fmt.Sprintf("Note: %s\n\n%s", note.Title, note.Content),
			Metadata: map[string]string{
				"source_type": "note",
				"source_file": sourceKey,
				"entity_id":   noteID,
				"chunk_type":  "note",
			},
		})
		if err != nil {
			return nil, fmt.Errorf("embed note: %w", err)
		}
	}

	titles, err := l.store.ListEntityTitles(profileID)
	if err != nil {
		return nil, err
	}
	knownSymbols := make([]string, 0, len(titles))
	for _, t := range titles {
		knownSymbols = append(knownSymbols, t.Title)
	}

	refs, err := l.client.ExtractReferences(ctx, note.Content, knownSymbols)
	if err != nil {
		return nil, fmt.Errorf("extract references: %w", err)
	}

	return l.materialize(note.Content, noteID, note.Title, profileID, refs)
}

// materialize turns extracted references into links and tasks.
func (l *Linker) materialize(content, sourceID, sourceTitle, profileID string, refs []sidecar.Reference) ([]store.EntityLinkRow, error) {
	newLinks := make([]store.EntityLinkRow, 0)

	for _, ref := range refs {
		switch ref.RefType {
		case "action_item":
			link, err := l.extractTask(content, sourceID, sourceTitle, profileID, ref)
			if err != nil {
				l.log.Warn().Err(err).Str("source", sourceID).Msg("task extraction failed")
				continue
			}
			if link != nil {
				newLinks = append(newLinks, *link)
			}
		case "code_symbol", "file_path":
			links, err := l.linkReference(content, sourceID, profileID, ref)
			if err != nil {
				l.log.Warn().Err(err).Str("source", sourceID).Msg("reference linking failed")
				continue
			}
			newLinks = append(newLinks, links...)
		default:
			// Unhandled reference kinds are dropped.
		}
	}
	return newLinks, nil
}

// extractTask creates a task from an action_item reference. The task title
// is the text from the reference's start to the end of its line; duplicates
// within the profile are skipped.
func (l *Linker) extractTask(content, sourceID, sourceTitle, profileID string, ref sidecar.Reference) (*store.EntityLinkRow, error) {
	title := taskTitleAt(content, ref.Start)
	if title == "" {
		return nil, nil
	}

	exists, err := l.store.TaskTitleExists(title, profileID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	taskContent := "From note: " + sourceTitle
	sourceType := "note"
	task, err := l.store.CreateTask(title, &taskContent, "medium", profileID, &sourceType)
	if err != nil {
		return nil, err
	}

	return l.store.CreateEntityLink(sourceID, task.ID, "contains_task", ref.Confidence, true, nil)
}

// taskTitleAt returns the trimmed text from start to the next newline.
func taskTitleAt(content string, start int) string {
	if start < 0 || start >= len(content) {
		return ""
	}
	rest := content[start:]
	if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
		rest = rest[:idx]
	}
	return strings.TrimSpace(rest)
}

// linkReference resolves a code_symbol or file_path reference against the
// store and creates a references link per match.
func (l *Linker) linkReference(content, sourceID, profileID string, ref sidecar.Reference) ([]store.EntityLinkRow, error) {
	var matches []store.EntityRef
	var err error
	switch ref.RefType {
	case "code_symbol":
		matches, err = l.store.FindEntitiesByTitle(ref.Text, profileID)
	case "file_path":
		matches, err = l.store.FindEntitiesBySourceFile(ref.Text)
	}
	if err != nil {
		return nil, err
	}

	ctxSnippet := contextAround(content, ref.Start, ref.End)

	links := make([]store.EntityLinkRow, 0, len(matches))
	for _, match := range matches {
		if match.ID == sourceID {
			continue
		}
		link, err := l.store.CreateEntityLink(sourceID, match.ID, "references", ref.Confidence, true, &ctxSnippet)
		if err != nil {
			l.log.Warn().Err(err).Str("target", match.ID).Msg("link create failed")
			continue
		}
		links = append(links, *link)
	}
	return links, nil
}

// contextAround returns content[start-30..end+30], clamped to bounds.
func contextAround(content string, start, end int) string {
	lo := start - contextWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + contextWindow
	if hi > len(content) {
		hi = len(content)
	}
	if lo > len(content) {
		lo = len(content)
	}
	if hi < lo {
		hi = lo
	}
	return content[lo:hi]
}

// ExtractTasksFromTerminal runs reference extraction over recent terminal
// history and creates tasks from action_item references. Returns the
// number of tasks created.
func (l *Linker) ExtractTasksFromTerminal(ctx context.Context, limit int) (int, error) {
	profileID, err := l.store.ActiveProfileID()
	if err != nil {
		return 0, err
	}
	if profileID == "" {
		return 0, fmt.Errorf("no active workspace profile")
	}

	cmds, err := l.store.ListTerminalCommands(profileID, limit)
	if err != nil {
		return 0, err
	}
	if len(cmds) == 0 {
		return 0, nil
	}

	lines := make([]string, 0, len(cmds))
	for _, c := range cmds {
		lines = append(lines, c.Command)
	}
	text := strings.Join(lines, "\n")

	refs, err := l.client.ExtractReferences(ctx, text, nil)
	if err != nil {
		return 0, fmt.Errorf("extract references: %w", err)
	}

	created := 0
	for _, ref := range refs {
		if ref.RefType != "action_item" {
			continue
		}
		title := taskTitleAt(text, ref.Start)
		if title == "" {
			continue
		}
		exists, err := l.store.TaskTitleExists(title, profileID)
		if err != nil || exists {
			continue
		}
		content := "From terminal history"
		sourceType := "terminal"
		if _, err := l.store.CreateTask(title, &content, "medium", profileID, &sourceType); err != nil {
			l.log.Warn().Err(err).Msg("terminal task create failed")
			continue
		}
		created++
	}
	return created, nil
}
