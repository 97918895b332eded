package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"squash/internal/engine"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(serviceName+"."+method, req, resp)
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit queues jobs. Per-job failures are reported in the results, not as
// the returned error.
func (c *Client) Submit(jobs []engine.Submission) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.call("Submit", SubmitRequest{Jobs: jobs}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns jobs optionally filtered by statuses.
func (c *Client) List(statuses []string) ([]engine.Job, error) {
	var resp ListResponse
	if err := c.call("List", ListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Describe returns a single job.
func (c *Client) Describe(id string) (engine.Job, error) {
	return c.jobCall("Describe", id)
}

// Cancel cancels a waiting, running or paused job.
func (c *Client) Cancel(id string) (engine.Job, error) {
	return c.jobCall("Cancel", id)
}

// Pause suspends a running job.
func (c *Client) Pause(id string) (engine.Job, error) {
	return c.jobCall("Pause", id)
}

// Resume continues a paused job.
func (c *Client) Resume(id string) (engine.Job, error) {
	return c.jobCall("Resume", id)
}

func (c *Client) jobCall(method, id string) (engine.Job, error) {
	var resp JobResponse
	if err := c.call(method, JobRequest{ID: id}, &resp); err != nil {
		return engine.Job{}, err
	}
	if err := resp.Failure.Err(); err != nil {
		return engine.Job{}, err
	}
	return resp.Job, nil
}

// ClearCompleted removes finished jobs from the daemon's registry.
func (c *Client) ClearCompleted() (int64, error) {
	var resp ClearResponse
	if err := c.call("ClearCompleted", ClearCompletedRequest{}, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// Events polls the daemon's event ring.
func (c *Client) Events(req EventsRequest) (*EventsResponse, error) {
	var resp EventsResponse
	if err := c.call("Events", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns recorded history entries and totals.
func (c *Client) History(req HistoryRequest) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.call("History", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HistoryClear removes every recorded history entry.
func (c *Client) HistoryClear() (int64, error) {
	var resp ClearResponse
	if err := c.call("HistoryClear", HistoryClearRequest{}, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// Stop asks the daemon to cancel its jobs and exit.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.call("Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.call("TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
