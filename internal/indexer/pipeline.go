// Package indexer keeps the store and the sidecar's vector index
// eventually consistent with the watched directory trees.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cortexkb/cortex/internal/events"
	"github.com/cortexkb/cortex/internal/gitinfo"
	"github.com/cortexkb/cortex/internal/logging"
	"github.com/cortexkb/cortex/internal/sidecar"
	"github.com/cortexkb/cortex/internal/store"
)

const (
	pollInterval   = 100 * time.Millisecond
	debounceWindow = 300 * time.Millisecond
	scanWorkers    = 8
)

type action int

const (
	actionUpsert action = iota
	actionDelete
)

type pendingEntry struct {
	action   action
	lastSeen time.Time
}

// Pipeline drives initial scans and the debounced event loop for a set of
// watch roots.
type Pipeline struct {
	store  *store.Store
	client *sidecar.Client
	bus    *events.Bus
	roots  []string
	rules  map[string]*IgnoreRules
	track  *Tracker
	log    zerolog.Logger
}

// NewPipeline creates a pipeline over the given watch roots. Ignore rules
// are compiled fresh, one set per root.
func NewPipeline(st *store.Store, client *sidecar.Client, bus *events.Bus, roots []string) *Pipeline {
	rules := make(map[string]*IgnoreRules, len(roots))
	for _, root := range roots {
		rules[root] = NewIgnoreRules(root)
	}
	return &Pipeline{
		store:  st,
		client: client,
		bus:    bus,
		roots:  roots,
		rules:  rules,
		track:  NewTracker(bus),
		log:    logging.Component("indexer"),
	}
}

// Progress returns the current indexing counters.
func (p *Pipeline) Progress() events.IndexingProgressPayload {
	return p.track.Snapshot()
}

// Run performs the initial scan and then consumes filesystem events until
// ctx is canceled. Events are buffered per path and flushed after the
// debounce window; the flushed action is the most recent one seen.
func (p *Pipeline) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, root := range p.roots {
		if err := p.addRecursive(watcher, root); err != nil {
			p.log.Warn().Err(err).Str("root", root).Msg("failed to watch root")
		}
	}

	go p.initialScan(ctx)

	pending := make(map[string]pendingEntry)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			p.handleEvent(ctx, watcher, ev, pending)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.log.Warn().Err(werr).Msg("watcher error")
		case <-time.After(pollInterval):
		}

		now := time.Now()
		for path, entry := range pending {
			if now.Sub(entry.lastSeen) < debounceWindow {
				continue
			}
			delete(pending, path)
			act := entry.action
			target := path
			go func() {
				if act == actionDelete {
					p.DeleteFile(ctx, target)
				} else {
					if err := p.UpsertFile(ctx, target); err != nil {
						p.log.Debug().Err(err).Str("file", target).Msg("upsert failed")
					}
				}
			}()
		}
	}
}

func (p *Pipeline) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, ev fsnotify.Event, pending map[string]pendingEntry) {
	var act action
	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		act = actionUpsert
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		act = actionDelete
	default:
		return
	}

	path := ev.Name

	// New directories must join the watch so nested events arrive.
	if act == actionUpsert {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			p.watchNewDir(ctx, watcher, path)
			return
		}
	}

	if !IsIndexable(path) {
		return
	}
	root := p.rootOf(path)
	if root == "" {
		return
	}
	if p.rules[root].Ignored(path) {
		return
	}

	pending[path] = pendingEntry{action: act, lastSeen: time.Now()}
}

func (p *Pipeline) rootOf(path string) string {
	for _, root := range p.roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && !strings.HasPrefix(rel, "..") {
			return root
		}
	}
	return ""
}

func (p *Pipeline) addRecursive(watcher *fsnotify.Watcher, root string) error {
	rules := p.rules[root]
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && rules.Ignored(path) {
			return fs.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			p.log.Debug().Err(err).Str("dir", path).Msg("failed to watch directory")
		}
		return nil
	})
}

// watchNewDir adds a freshly created directory to the watch, retrying with
// exponential backoff since creation and population can race.
func (p *Pipeline) watchNewDir(ctx context.Context, watcher *fsnotify.Watcher, dir string) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	err := backoff.Retry(func() error {
		if err := watcher.Add(dir); err != nil {
			return err
		}
		return p.addRecursive(watcher, dir)
	}, policy)
	if err != nil {
		p.log.Warn().Err(err).Str("dir", dir).Msg("failed to watch new directory")
	}
}

// initialScan walks every root and submits each indexable file to the
// per-file pipeline with bounded concurrency.
func (p *Pipeline) initialScan(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanWorkers)

	for _, root := range p.roots {
		rules := p.rules[root]
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if d.IsDir() {
				if path != root && rules.Ignored(path) {
					return fs.SkipDir
				}
				return nil
			}
			if !IsIndexable(path) || rules.Ignored(path) {
				return nil
			}
			target := path
			g.Go(func() error {
				if err := p.UpsertFile(gctx, target); err != nil {
					p.log.Debug().Err(err).Str("file", target).Msg("scan upsert failed")
				}
				return nil
			})
			return nil
		})
	}
	_ = g.Wait()
	p.log.Info().Msg("initial scan complete")
}

// UpsertFile runs the per-file ingest pipeline: hash-skip, embedding
// refresh, sidecar ingest, store mutations and progress events.
func (p *Pipeline) UpsertFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	content := string(raw)
	if strings.TrimSpace(content) == "" {
		return nil
	}

	sum := sha256.Sum256(raw)
	contentHash := hex.EncodeToString(sum[:])

	profileID, err := p.store.ActiveProfileID()
	if err != nil {
		return err
	}
	if profileID == "" {
		return fmt.Errorf("no active workspace profile")
	}

	prevHash, err := p.store.FileHash(path, profileID)
	if err != nil {
		return err
	}
	if prevHash == contentHash {
		return nil
	}

	p.track.Enqueue(path)

	if err := p.client.DeleteEmbeddings(ctx, path); err != nil {
		p.log.Debug().Err(err).Str("file", path).Msg("stale embedding delete failed")
	}
	if _, err := p.store.DeleteEntitiesBySourceFile(path); err != nil {
		p.fail(path, err)
		return err
	}

	branch := gitinfo.CurrentBranch(filepath.Dir(path))
	resp, err := p.client.Ingest(ctx, &sidecar.IngestRequest{
		FilePath:   path,
		Content:    content,
		Language:   DetectLanguage(path),
		SourceType: DetectSourceType(path),
		GitBranch:  branch,
	})
	if err != nil {
		p.fail(path, err)
		return err
	}

	if err := p.store.UpsertFileIndex(path, profileID, contentHash, DetectLanguage(path), resp.ChunkCount, int64(len(raw))); err != nil {
		p.fail(path, err)
		return err
	}
	for _, entity := range resp.Entities {
		meta, _ := json.Marshal(map[string]interface{}{
			"start_line": entity.StartLine,
			"end_line":   entity.EndLine,
		})
		if err := p.store.UpsertEntity(entity.Type, entity.Name, path, profileID, string(meta)); err != nil {
			p.log.Warn().Err(err).Str("file", path).Str("entity", entity.Name).Msg("entity upsert failed")
		}
	}

	completed, total := p.track.Finish()
	p.bus.Emit(events.IndexingFileComplete, events.IndexingFileCompletePayload{
		FilePath:   path,
		ChunkCount: resp.ChunkCount,
		Completed:  completed,
		Total:      total,
	})
	return nil
}

func (p *Pipeline) fail(path string, cause error) {
	completed, total := p.track.Finish()
	p.bus.Emit(events.IndexingFileError, events.IndexingFileErrorPayload{
		FilePath:  path,
		Error:     cause.Error(),
		Completed: completed,
		Total:     total,
	})
}

// DeleteFile removes every trace of a deleted file: embeddings, the
// file_index row and extracted entities.
func (p *Pipeline) DeleteFile(ctx context.Context, path string) {
	if err := p.client.DeleteEmbeddings(ctx, path); err != nil {
		p.log.Debug().Err(err).Str("file", path).Msg("embedding delete failed")
	}

	profileID, err := p.store.ActiveProfileID()
	if err == nil && profileID != "" {
		if err := p.store.DeleteFileIndex(path, profileID); err != nil {
			p.log.Warn().Err(err).Str("file", path).Msg("file index delete failed")
		}
	}
	if _, err := p.store.DeleteEntitiesBySourceFile(path); err != nil {
		p.log.Warn().Err(err).Str("file", path).Msg("entity delete failed")
	}

	p.bus.Emit(events.IndexingFileDeleted, events.IndexingFileDeletedPayload{FilePath: path})
}
