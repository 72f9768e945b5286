package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"reelpull/internal/api"
	"reelpull/internal/daemon"
	"reelpull/internal/jobs"
	"reelpull/internal/logging"
)

// Backend is the daemon surface served over the socket.
type Backend interface {
	Status(ctx context.Context) api.DaemonStatus
	Submit(ctx context.Context, req api.SubmitRequest) (api.SubmitResponse, error)
	ListJobs(ctx context.Context, filter jobs.Filter) ([]api.Job, error)
	DescribeJob(ctx context.Context, id string) (*api.Job, error)
	Metadata(ctx context.Context, rawURL string) (api.MetadataResponse, error)
	Subtitles(ctx context.Context, rawURL string) (api.SubtitleListResponse, error)
	DownloadSubtitle(ctx context.Context, req api.SubtitleDownloadRequest) (api.SubtitleDownloadResponse, error)
}

var _ Backend = (*daemon.Daemon)(nil)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, backend Backend, logger *slog.Logger) (*Server, error) {
	if backend == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	srv := &service{backend: backend, logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName("Reelpull", srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.track(c, false)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

func (s *Server) track(conn net.Conn, add bool) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
}

// Close stops the server, drops open connections, and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.connMu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.connMu.Unlock()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"))
	}
}

type service struct {
	backend Backend
	logger  *slog.Logger
	ctx     context.Context
}

func (s *service) log() *slog.Logger {
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.backend.Status(s.ctx)
	return nil
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	s.log().Debug("submit requested", logging.String("source_url", req.SourceURL))
	out, err := s.backend.Submit(s.ctx, req)
	if err != nil {
		return err
	}
	*resp = out
	return nil
}

func (s *service) JobList(req JobListRequest, resp *JobListResponse) error {
	filter := jobs.Filter{CallerID: req.CallerID, Limit: req.Limit}
	for _, status := range req.Statuses {
		parsed, ok := jobs.ParseStatus(status)
		if !ok {
			return fmt.Errorf("unknown status %q", status)
		}
		filter.Statuses = append(filter.Statuses, parsed)
	}
	items, err := s.backend.ListJobs(s.ctx, filter)
	if err != nil {
		return err
	}
	resp.Jobs = items
	if resp.Jobs == nil {
		resp.Jobs = []Job{}
	}
	return nil
}

func (s *service) JobDescribe(req JobDescribeRequest, resp *JobDescribeResponse) error {
	if req.ID == "" {
		return errors.New("job id required")
	}
	job, err := s.backend.DescribeJob(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s not found", req.ID)
	}
	resp.Job = *job
	return nil
}

func (s *service) Metadata(req MetadataRequest, resp *MetadataResponse) error {
	out, err := s.backend.Metadata(s.ctx, req.URL)
	if err != nil {
		return err
	}
	*resp = out
	return nil
}

func (s *service) Subtitles(req SubtitlesRequest, resp *SubtitlesResponse) error {
	out, err := s.backend.Subtitles(s.ctx, req.URL)
	if err != nil {
		return err
	}
	*resp = out
	return nil
}

func (s *service) SubtitleDownload(req SubtitleDownloadRequest, resp *SubtitleDownloadResponse) error {
	out, err := s.backend.DownloadSubtitle(s.ctx, req)
	if err != nil {
		return err
	}
	*resp = out
	return nil
}
