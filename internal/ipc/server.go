package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"aimatrix/internal/assetstore"
	"aimatrix/internal/daemon"
	"aimatrix/internal/job"
	"aimatrix/internal/logging"
	"aimatrix/internal/logs"
	"aimatrix/internal/services"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
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

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Aimatrix", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
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
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually before the next start"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

// rpcError flattens wrapped errors to their user-facing message. net/rpc
// transports errors as bare strings, so sentinel chains do not survive the
// socket anyway.
func rpcError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(services.UserMessage(err))
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.SocketPath = status.SocketPath
	resp.LockPath = status.LockPath
	resp.DatabasePath = status.DatabasePath
	resp.Backends = make([]BackendHealth, 0, len(status.Backends))
	for _, health := range status.Backends {
		resp.Backends = append(resp.Backends, BackendHealth{
			Name:   health.Name,
			Ready:  health.Ready,
			Detail: health.Detail,
		})
	}
	resp.Jobs = append(resp.Jobs, status.Jobs...)
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) WorkflowExecute(req WorkflowExecuteRequest, resp *WorkflowExecuteResponse) error {
	wf := req.Workflow
	s.log().Debug("workflow execute requested",
		logging.String(logging.FieldWorkflow, wf.ID),
		logging.String(logging.FieldBackend, string(wf.Type)))
	result, err := s.daemon.Execute(s.ctx, &wf)
	if err != nil {
		return rpcError(err)
	}
	resp.Result = result
	s.log().Info("workflow dispatched",
		logging.String(logging.FieldWorkflow, wf.ID),
		logging.String(logging.FieldJobID, result.JobID),
		logging.String(logging.FieldEventType, "workflow_execute"))
	return nil
}

func (s *service) WorkflowStatus(req WorkflowStatusRequest, resp *WorkflowStatusResponse) error {
	if req.JobID == "" {
		return errors.New("workflow status requires a job id")
	}
	snap, err := s.daemon.JobStatus(s.ctx, req.JobID)
	if err != nil {
		return rpcError(err)
	}
	resp.Job = snap
	return nil
}

func (s *service) WorkflowCancel(req WorkflowCancelRequest, resp *WorkflowCancelResponse) error {
	if req.JobID == "" {
		return errors.New("workflow cancel requires a job id")
	}
	if err := s.daemon.CancelJob(s.ctx, req.JobID); err != nil {
		return rpcError(err)
	}
	resp.Cancelled = true
	s.log().Info("job cancel requested",
		logging.String(logging.FieldJobID, req.JobID),
		logging.String(logging.FieldEventType, "workflow_cancel"))
	return nil
}

func (s *service) WorkflowList(_ WorkflowListRequest, resp *WorkflowListResponse) error {
	resp.Jobs = append(resp.Jobs, s.daemon.Jobs()...)
	return nil
}

func (s *service) WorkflowSave(req WorkflowSaveRequest, resp *WorkflowSaveResponse) error {
	wf := req.Workflow
	if err := s.daemon.SaveWorkflow(s.ctx, &wf); err != nil {
		return rpcError(err)
	}
	resp.Saved = true
	s.log().Info("workflow definition saved",
		logging.String(logging.FieldWorkflow, wf.ID),
		logging.String(logging.FieldEventType, "workflow_save"))
	return nil
}

func (s *service) WorkflowLoad(req WorkflowLoadRequest, resp *WorkflowLoadResponse) error {
	if req.ID == "" {
		return errors.New("workflow load requires a definition id")
	}
	wf, err := s.daemon.LoadWorkflow(s.ctx, req.ID)
	if err != nil {
		return rpcError(err)
	}
	resp.Workflow = *wf
	return nil
}

func (s *service) WorkflowDefinitions(_ WorkflowDefinitionsRequest, resp *WorkflowDefinitionsResponse) error {
	defs, err := s.daemon.ListWorkflows(s.ctx)
	if err != nil {
		return rpcError(err)
	}
	resp.Workflows = make([]job.Workflow, 0, len(defs))
	for _, def := range defs {
		if def == nil {
			continue
		}
		resp.Workflows = append(resp.Workflows, *def)
	}
	return nil
}

func (s *service) Split(req SplitRequest, resp *SplitResponse) error {
	resp.Scenes = s.daemon.Split(req.Text, req.ChunkSize)
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) Assets(req AssetsRequest, resp *AssetsResponse) error {
	filter := assetstore.Filter{
		JobID:   req.JobID,
		SceneID: req.SceneID,
		Kind:    job.PortType(req.Kind),
	}
	assets, err := s.daemon.QueryAssets(s.ctx, filter)
	if err != nil {
		return rpcError(err)
	}
	resp.Assets = make([]AssetRecord, 0, len(assets))
	for _, asset := range assets {
		if asset == nil {
			continue
		}
		resp.Assets = append(resp.Assets, AssetRecord{
			ID:        asset.ID,
			JobID:     asset.JobID,
			SceneID:   asset.SceneID,
			Kind:      string(asset.Kind),
			Path:      asset.Path,
			Metadata:  string(asset.Metadata),
			CreatedAt: asset.CreatedAt.Format(time.RFC3339),
		})
	}
	return nil
}
