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

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/daemon"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
)

// serviceName is the JSON-RPC receiver name clients call methods on.
const serviceName = "Instrumental"

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

// NewServer binds the IPC socket at path and registers the control service.
// A stale socket file from a previous run is replaced.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires a daemon")
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
	svc := &service{daemon: d, logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName(serviceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		daemon:    d,
		logger:    logging.NewComponentLogger(logger, "ipc"),
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve accepts connections until Close. Each connection runs its own codec
// so a slow client cannot stall the rest.
func (s *Server) Serve() {
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
				s.logger.Warn("accept ipc connection", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer c.Close()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Path returns the socket path the server listens on.
func (s *Server) Path() string {
	return s.path
}

// Close stops accepting connections, waits for in-flight calls, and removes
// the socket file.
func (s *Server) Close() {
	s.cancel()
	s.listener.Close()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("remove socket file", logging.Error(err))
	}
}

// service implements the RPC methods. Every method delegates to the daemon;
// the request and response types live in types.go.
type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.PID = os.Getpid()
	return nil
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	if s.daemon.Running() {
		resp.Started = false
		resp.Message = "daemon already running"
		return nil
	}
	if err := s.daemon.Start(s.ctx); err != nil {
		return err
	}
	resp.Started = true
	resp.Message = "daemon started"
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	resp.Stopped = s.daemon.Running()
	s.daemon.Stop()
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	st, err := s.daemon.Status()
	if err != nil {
		return err
	}
	*resp = st
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses, err := parseQueueStatuses(req.Statuses)
	if err != nil {
		return err
	}
	list, err := s.daemon.QueueItems(statuses...)
	if err != nil {
		return err
	}
	resp.Items = make([]QueueItem, 0, len(list))
	for _, item := range list {
		resp.Items = append(resp.Items, *item)
	}
	return nil
}

func (s *service) QueueDescribe(req QueueItemRequest, resp *QueueItemResponse) error {
	item, err := s.daemon.QueueItem(req.ID)
	if err != nil {
		return err
	}
	resp.Item = *item
	return nil
}

func (s *service) QueueClear(req QueueClearRequest, resp *QueueClearResponse) error {
	if len(req.Statuses) == 0 {
		removed, err := s.daemon.QueueClear()
		if err != nil {
			return err
		}
		resp.Removed = removed
		return nil
	}
	statuses, err := parseQueueStatuses(req.Statuses)
	if err != nil {
		return err
	}
	removed, err := s.daemon.QueueClearStatuses(statuses...)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) QueueRemove(req QueueRemoveRequest, resp *QueueRemoveResponse) error {
	if err := s.daemon.QueueRemove(req.ID); err != nil {
		return err
	}
	resp.Removed = true
	return nil
}

func (s *service) QueueRetry(req QueueRetryRequest, resp *QueueRetryResponse) error {
	count, err := s.daemon.QueueRetry(req.IDs...)
	if err != nil {
		return err
	}
	resp.Retried = count
	return nil
}

func (s *service) QueueSetPriority(req QueuePriorityRequest, resp *QueuePriorityResponse) error {
	item, err := s.daemon.QueueSetPriority(req.ID, req.Priority)
	if err != nil {
		return err
	}
	resp.Item = *item
	return nil
}

func (s *service) QueuePause(_ QueuePauseRequest, resp *QueuePauseResponse) error {
	s.daemon.QueuePause()
	resp.Paused = true
	return nil
}

func (s *service) QueueResume(_ QueueResumeRequest, resp *QueueResumeResponse) error {
	s.daemon.QueueResume()
	resp.Paused = s.daemon.QueuePaused()
	return nil
}

func (s *service) JobList(req JobListRequest, resp *JobListResponse) error {
	statuses, err := parseJobStatuses(req.Statuses)
	if err != nil {
		return err
	}
	list, err := s.daemon.JobList(req.Limit, req.Offset, statuses...)
	if err != nil {
		return err
	}
	resp.Jobs = make([]Job, 0, len(list))
	for _, job := range list {
		resp.Jobs = append(resp.Jobs, *job)
	}
	return nil
}

func (s *service) JobDescribe(req JobRequest, resp *JobResponse) error {
	job, err := s.daemon.Job(req.ID)
	if err != nil {
		return err
	}
	resp.Job = *job
	return nil
}

func (s *service) JobStart(req JobStartRequest, resp *JobStartResponse) error {
	job, err := s.daemon.JobStart(req.ID)
	if err != nil {
		return err
	}
	resp.Job = *job
	return nil
}

func (s *service) JobRetry(req JobRetryRequest, resp *JobRetryResponse) error {
	job, err := s.daemon.JobRetry(req.ID)
	if err != nil {
		return err
	}
	resp.Job = *job
	return nil
}

func (s *service) JobDelete(req JobDeleteRequest, resp *JobDeleteResponse) error {
	if err := s.daemon.JobDelete(req.ID); err != nil {
		return err
	}
	resp.Deleted = true
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	res, err := logs.Tail(s.ctx, s.daemon.LogPath(), logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   time.Duration(req.WaitMillis) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	resp.Lines = res.Lines
	resp.Offset = res.Offset
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	if err != nil {
		return err
	}
	resp.Sent = sent
	resp.Message = message
	return nil
}

func parseQueueStatuses(values []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(values))
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown queue status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func parseJobStatuses(values []string) ([]jobs.Status, error) {
	statuses := make([]jobs.Status, 0, len(values))
	for _, value := range values {
		status, ok := jobs.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown job status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
