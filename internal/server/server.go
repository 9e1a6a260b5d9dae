package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cortexkb/cortex/internal/autolink"
	"github.com/cortexkb/cortex/internal/events"
	"github.com/cortexkb/cortex/internal/indexer"
	"github.com/cortexkb/cortex/internal/logging"
	"github.com/cortexkb/cortex/internal/sidecar"
	"github.com/cortexkb/cortex/internal/store"
	"github.com/cortexkb/cortex/internal/term"
)

// handler executes one operation. Internal errors become opaque strings in
// the response; no partial state is exposed.
type handler func(ctx context.Context, args json.RawMessage) (interface{}, error)

// Server wires the command surface over a unix socket.
type Server struct {
	socketPath string
	store      *store.Store
	manager    *sidecar.Manager
	client     *sidecar.Client
	ptys       *term.Manager
	pipeline   *indexer.Pipeline
	linker     *autolink.Linker
	bus        *events.Bus
	hookDir    string
	workspace  string

	handlers map[string]handler
	listener net.Listener
	log      zerolog.Logger
	wg       sync.WaitGroup
}

// Options bundles the server's collaborators.
type Options struct {
	SocketPath    string
	Store         *store.Store
	Manager       *sidecar.Manager
	Client        *sidecar.Client
	Ptys          *term.Manager
	Pipeline      *indexer.Pipeline
	Linker        *autolink.Linker
	Bus           *events.Bus
	HookDir       string
	WorkspaceRoot string
}

// New creates a server and registers every operation.
func New(opts Options) *Server {
	s := &Server{
		socketPath: opts.SocketPath,
		store:      opts.Store,
		manager:    opts.Manager,
		client:     opts.Client,
		ptys:       opts.Ptys,
		pipeline:   opts.Pipeline,
		linker:     opts.Linker,
		bus:        opts.Bus,
		hookDir:    opts.HookDir,
		workspace:  opts.WorkspaceRoot,
		log:        logging.Component("server"),
	}
	s.handlers = map[string]handler{
		OpHealthCheck:       s.handleHealthCheck,
		OpGetAppStatus:      s.handleGetAppStatus,
		OpGetIndexingStatus: s.handleGetIndexingStatus,
		OpSemanticSearch:    s.handleSemanticSearch,
		OpUniversalSearch:   s.handleUniversalSearch,
		OpEntitySearch:      s.handleEntitySearch,

		OpNoteCreate: s.handleNoteCreate,
		OpNoteGet:    s.handleNoteGet,
		OpNoteList:   s.handleNoteList,
		OpNoteUpdate: s.handleNoteUpdate,
		OpNoteDelete: s.handleNoteDelete,

		OpTaskCreate: s.handleTaskCreate,
		OpTaskGet:    s.handleTaskGet,
		OpTaskList:   s.handleTaskList,
		OpTaskUpdate: s.handleTaskUpdate,
		OpTaskDelete: s.handleTaskDelete,

		OpEntityLinkCreate:       s.handleEntityLinkCreate,
		OpEntityLinkList:         s.handleEntityLinkList,
		OpEntityLinkDelete:       s.handleEntityLinkDelete,
		OpEntityLinkConfirm:      s.handleEntityLinkConfirm,
		OpEntityLinksWithDetails: s.handleEntityLinksWithDetails,
		OpListSuggestedLinks:     s.handleListSuggestedLinks,

		OpNoteAutoLink:             s.handleNoteAutoLink,
		OpExtractTasksFromTerminal: s.handleExtractTasksFromTerminal,

		OpPtyCreate: s.handlePtyCreate,
		OpPtyWrite:  s.handlePtyWrite,
		OpPtyResize: s.handlePtyResize,
		OpPtyKill:   s.handlePtyKill,

		OpFileRead:          s.handleFileRead,
		OpFileWrite:         s.handleFileWrite,
		OpFileListDirectory: s.handleFileListDirectory,
		OpFileStat:          s.handleFileStat,
		OpFileListAll:       s.handleFileListAll,
		OpGetWorkspaceRoot:  s.handleGetWorkspaceRoot,

		OpProfileList:           s.handleProfileList,
		OpProfileCreate:         s.handleProfileCreate,
		OpProfileSetActive:      s.handleProfileSetActive,
		OpProfileSetWatchedDirs: s.handleProfileSetWatchedDirs,

		OpConfigGet: s.handleConfigGet,
		OpConfigSet: s.handleConfigSet,

		OpSessionStateSave: s.handleSessionStateSave,
		OpSessionStateLoad: s.handleSessionStateLoad,

		OpGitEventInsert: s.handleGitEventInsert,
		OpGitEventList:   s.handleGitEventList,
		OpChatInsert:     s.handleChatInsert,
		OpChatList:       s.handleChatList,
	}
	return s
}

// Start listens on the unix socket and serves until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	_ = os.Remove(s.socketPath)
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	s.listener = listener
	s.log.Info().Str("socket", s.socketPath).Msg("command surface listening")

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			_ = enc.Encode(Response{Success: false, Error: "malformed request: " + err.Error()})
			continue
		}

		if req.Operation == OpSubscribe {
			s.streamEvents(ctx, conn, enc)
			return
		}

		resp := s.dispatch(ctx, &req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req *Request) Response {
	h, ok := s.handlers[req.Operation]
	if !ok {
		return Response{Success: false, Error: "unknown operation: " + req.Operation, RequestID: req.RequestID}
	}

	result, err := h(ctx, req.Args)
	if err != nil {
		return Response{Success: false, Error: err.Error(), RequestID: req.RequestID}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return Response{Success: false, Error: "encode result: " + err.Error(), RequestID: req.RequestID}
	}
	return Response{Success: true, Data: data, RequestID: req.RequestID}
}

// streamEvents turns the connection into an event feed.
func (s *Server) streamEvents(ctx context.Context, conn net.Conn, enc *json.Encoder) {
	ch, cancel := s.bus.Subscribe()
	defer cancel()

	_ = enc.Encode(Response{Success: true})

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := enc.Encode(ev); err != nil {
				return
			}
		}
	}
}
