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
	"strings"
	"sync"
	"time"

	"squash/internal/daemon"
	"squash/internal/engine"
	"squash/internal/history"
	"squash/internal/logging"
)

const (
	serviceName  = "Squash"
	maxEventWait = 30 * time.Second
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
	conns  sync.Map
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName(serviceName, srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

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

// Serve starts accepting RPC connections until Close is called.
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
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"),
					logging.Error(err),
				)
				continue
			}
			s.conns.Store(conn, struct{}{})
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.conns.Delete(c)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server, drops open connections and removes the socket.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.conns.Range(func(key, _ any) bool {
		_ = key.(net.Conn).Close()
		return true
	})
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.String(logging.FieldImpact, "stale IPC socket may confuse clients"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"),
			logging.Error(err),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	if !status.StartedAt.IsZero() {
		resp.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
	}
	resp.Waiting = status.Waiting
	resp.Active = status.Active
	resp.MaxParallelJobs = status.MaxParallelJobs
	resp.HistoryPath = status.HistoryPath
	resp.LockPath = status.LockPath
	resp.Dependencies = make([]DependencyStatus, 0, len(status.Dependencies))
	for _, dep := range status.Dependencies {
		resp.Dependencies = append(resp.Dependencies, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return nil
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	if len(req.Jobs) == 0 {
		return errors.New("submit requires at least one job")
	}
	s.logger.Debug("submit requested", logging.Int("job_count", len(req.Jobs)))
	resp.Results = make([]SubmitResult, 0, len(req.Jobs))
	for i, res := range s.daemon.SubmitBatch(s.ctx, req.Jobs) {
		result := SubmitResult{InputPath: req.Jobs[i].InputPath}
		if res.Err != nil {
			result.Failure = failureFrom(res.Err)
		} else {
			job := res.Job
			result.Job = &job
		}
		resp.Results = append(resp.Results, result)
	}
	return nil
}

func (s *service) List(req ListRequest, resp *ListResponse) error {
	wanted := make(map[engine.Status]struct{}, len(req.Statuses))
	for _, status := range req.Statuses {
		if trimmed := strings.ToLower(strings.TrimSpace(status)); trimmed != "" {
			wanted[engine.Status(trimmed)] = struct{}{}
		}
	}
	jobs := s.daemon.Engine().List()
	resp.Jobs = make([]engine.Job, 0, len(jobs))
	for _, job := range jobs {
		if len(wanted) > 0 {
			if _, ok := wanted[job.Status]; !ok {
				continue
			}
		}
		resp.Jobs = append(resp.Jobs, job)
	}
	return nil
}

func (s *service) Describe(req JobRequest, resp *JobResponse) error {
	job, err := s.daemon.Engine().Get(strings.TrimSpace(req.ID))
	resp.Job = job
	resp.Failure = failureFrom(err)
	return nil
}

func (s *service) Cancel(req JobRequest, resp *JobResponse) error {
	return s.control(req, resp, "cancel", s.daemon.Engine().Cancel)
}

func (s *service) Pause(req JobRequest, resp *JobResponse) error {
	return s.control(req, resp, "pause", s.daemon.Engine().Pause)
}

func (s *service) Resume(req JobRequest, resp *JobResponse) error {
	return s.control(req, resp, "resume", s.daemon.Engine().Resume)
}

func (s *service) control(req JobRequest, resp *JobResponse, action string, op func(string) error) error {
	id := strings.TrimSpace(req.ID)
	s.logger.Debug("job control requested",
		logging.JobID(id),
		logging.String("action", action))
	if err := op(id); err != nil {
		resp.Failure = failureFrom(err)
		return nil
	}
	job, err := s.daemon.Engine().Get(id)
	resp.Job = job
	resp.Failure = failureFrom(err)
	return nil
}

func (s *service) ClearCompleted(_ ClearCompletedRequest, resp *ClearResponse) error {
	removed := s.daemon.Engine().ClearCompleted()
	resp.Removed = int64(removed)
	s.logger.Info("finished jobs cleared",
		logging.String(logging.FieldEventType, "jobs_clear_completed"),
		logging.Int("removed_count", removed))
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	wait := min(time.Duration(req.WaitMillis)*time.Millisecond, maxEventWait)
	ctx := s.ctx
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait)
		defer cancel()
	}
	batch, next, err := s.daemon.Events().Fetch(ctx, req.Since, req.Limit, wait > 0)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	jobID := strings.TrimSpace(req.JobID)
	resp.Events = batch[:0]
	for _, evt := range batch {
		if jobID != "" && evt.JobID() != jobID {
			continue
		}
		resp.Events = append(resp.Events, evt)
	}
	resp.Next = next
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	entries, err := s.daemon.History(s.ctx, history.Filter{
		Limit:       req.Limit,
		FailedOnly:  req.FailedOnly,
		SuccessOnly: req.SuccessOnly,
	})
	if err != nil {
		return err
	}
	stats, err := s.daemon.HistoryStats(s.ctx)
	if err != nil {
		return err
	}
	resp.Entries = entries
	resp.Stats = stats
	return nil
}

func (s *service) HistoryClear(_ HistoryClearRequest, resp *ClearResponse) error {
	removed, err := s.daemon.ClearHistory(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Info("daemon stop requested via IPC",
		logging.String(logging.FieldEventType, "daemon_stop_requested"))
	s.daemon.RequestStop()
	resp.Stopping = true
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
