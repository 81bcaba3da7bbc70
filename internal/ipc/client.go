package ipc

import (
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// dialTimeout bounds the connection attempt; the daemon either answers its
// socket promptly or is not serving it.
const dialTimeout = 2 * time.Second

// Client wraps a JSON-RPC connection to the daemon socket.
type Client struct {
	client *rpc.Client
}

// Dial connects to the daemon socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial daemon socket: %w", err)
	}
	return &Client{client: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(serviceName+"."+method, req, resp)
}

// Ping checks liveness and returns the daemon's process id.
func (c *Client) Ping() (PingResponse, error) {
	var resp PingResponse
	err := c.call("Ping", PingRequest{}, &resp)
	return resp, err
}

// Start asks the daemon to bring its components up.
func (c *Client) Start() (StartResponse, error) {
	var resp StartResponse
	err := c.call("Start", StartRequest{}, &resp)
	return resp, err
}

// Stop asks the daemon to halt its components.
func (c *Client) Stop() (StopResponse, error) {
	var resp StopResponse
	err := c.call("Stop", StopRequest{}, &resp)
	return resp, err
}

// Status fetches the daemon status snapshot.
func (c *Client) Status() (StatusResponse, error) {
	var resp StatusResponse
	err := c.call("Status", StatusRequest{}, &resp)
	return resp, err
}

// QueueList returns queue items, optionally filtered by status name.
func (c *Client) QueueList(statuses ...string) (QueueListResponse, error) {
	var resp QueueListResponse
	err := c.call("QueueList", QueueListRequest{Statuses: statuses}, &resp)
	return resp, err
}

// QueueDescribe returns one queue item by id.
func (c *Client) QueueDescribe(id string) (QueueItemResponse, error) {
	var resp QueueItemResponse
	err := c.call("QueueDescribe", QueueItemRequest{ID: id}, &resp)
	return resp, err
}

// QueueClear drops waiting items, optionally restricted to statuses.
func (c *Client) QueueClear(statuses ...string) (QueueClearResponse, error) {
	var resp QueueClearResponse
	err := c.call("QueueClear", QueueClearRequest{Statuses: statuses}, &resp)
	return resp, err
}

// QueueRemove drops a single item by id.
func (c *Client) QueueRemove(id string) (QueueRemoveResponse, error) {
	var resp QueueRemoveResponse
	err := c.call("QueueRemove", QueueRemoveRequest{ID: id}, &resp)
	return resp, err
}

// QueueRetry requeues failed items; no ids means every failed item.
func (c *Client) QueueRetry(ids ...string) (QueueRetryResponse, error) {
	var resp QueueRetryResponse
	err := c.call("QueueRetry", QueueRetryRequest{IDs: ids}, &resp)
	return resp, err
}

// QueueSetPriority reorders one item among the waiting work.
func (c *Client) QueueSetPriority(id string, priority int) (QueuePriorityResponse, error) {
	var resp QueuePriorityResponse
	err := c.call("QueueSetPriority", QueuePriorityRequest{ID: id, Priority: priority}, &resp)
	return resp, err
}

// QueuePause suspends dispatching.
func (c *Client) QueuePause() (QueuePauseResponse, error) {
	var resp QueuePauseResponse
	err := c.call("QueuePause", QueuePauseRequest{}, &resp)
	return resp, err
}

// QueueResume resumes dispatching.
func (c *Client) QueueResume() (QueueResumeResponse, error) {
	var resp QueueResumeResponse
	err := c.call("QueueResume", QueueResumeRequest{}, &resp)
	return resp, err
}

// JobList returns jobs newest first, optionally filtered by status name.
func (c *Client) JobList(limit, offset int, statuses ...string) (JobListResponse, error) {
	var resp JobListResponse
	err := c.call("JobList", JobListRequest{Statuses: statuses, Limit: limit, Offset: offset}, &resp)
	return resp, err
}

// JobDescribe returns one job by id.
func (c *Client) JobDescribe(id string) (JobResponse, error) {
	var resp JobResponse
	err := c.call("JobDescribe", JobRequest{ID: id}, &resp)
	return resp, err
}

// JobStart dispatches a pending job.
func (c *Client) JobStart(id string) (JobStartResponse, error) {
	var resp JobStartResponse
	err := c.call("JobStart", JobStartRequest{ID: id}, &resp)
	return resp, err
}

// JobRetry redispatches a failed job.
func (c *Client) JobRetry(id string) (JobRetryResponse, error) {
	var resp JobRetryResponse
	err := c.call("JobRetry", JobRetryRequest{ID: id}, &resp)
	return resp, err
}

// JobDelete removes a job record and its output.
func (c *Client) JobDelete(id string) (JobDeleteResponse, error) {
	var resp JobDeleteResponse
	err := c.call("JobDelete", JobDeleteRequest{ID: id}, &resp)
	return resp, err
}

// LogTail reads lines from the daemon's log file.
func (c *Client) LogTail(req LogTailRequest) (LogTailResponse, error) {
	var resp LogTailResponse
	err := c.call("LogTail", req, &resp)
	return resp, err
}

// TestNotification publishes a test event to the configured topic.
func (c *Client) TestNotification() (TestNotificationResponse, error) {
	var resp TestNotificationResponse
	err := c.call("TestNotification", TestNotificationRequest{}, &resp)
	return resp, err
}
