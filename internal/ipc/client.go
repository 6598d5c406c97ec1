package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
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
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Aimatrix.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to shut down processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Aimatrix.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WorkflowExecute dispatches a workflow to its backend.
func (c *Client) WorkflowExecute(req WorkflowExecuteRequest) (*WorkflowExecuteResponse, error) {
	var resp WorkflowExecuteResponse
	if err := c.client.Call("Aimatrix.WorkflowExecute", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WorkflowStatus returns one job's snapshot.
func (c *Client) WorkflowStatus(jobID string) (*WorkflowStatusResponse, error) {
	var resp WorkflowStatusResponse
	req := WorkflowStatusRequest{JobID: jobID}
	if err := c.client.Call("Aimatrix.WorkflowStatus", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WorkflowCancel requests a best-effort stop of one job.
func (c *Client) WorkflowCancel(jobID string) (*WorkflowCancelResponse, error) {
	var resp WorkflowCancelResponse
	req := WorkflowCancelRequest{JobID: jobID}
	if err := c.client.Call("Aimatrix.WorkflowCancel", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WorkflowList returns snapshots of every tracked job.
func (c *Client) WorkflowList() (*WorkflowListResponse, error) {
	var resp WorkflowListResponse
	if err := c.client.Call("Aimatrix.WorkflowList", WorkflowListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WorkflowSave persists a workflow definition.
func (c *Client) WorkflowSave(req WorkflowSaveRequest) (*WorkflowSaveResponse, error) {
	var resp WorkflowSaveResponse
	if err := c.client.Call("Aimatrix.WorkflowSave", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WorkflowLoad fetches a saved workflow definition.
func (c *Client) WorkflowLoad(id string) (*WorkflowLoadResponse, error) {
	var resp WorkflowLoadResponse
	req := WorkflowLoadRequest{ID: id}
	if err := c.client.Call("Aimatrix.WorkflowLoad", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WorkflowDefinitions lists every saved workflow definition.
func (c *Client) WorkflowDefinitions() (*WorkflowDefinitionsResponse, error) {
	var resp WorkflowDefinitionsResponse
	if err := c.client.Call("Aimatrix.WorkflowDefinitions", WorkflowDefinitionsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Split divides novel text into scenes on the daemon.
func (c *Client) Split(req SplitRequest) (*SplitResponse, error) {
	var resp SplitResponse
	if err := c.client.Call("Aimatrix.Split", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail fetches daemon log lines.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Aimatrix.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Assets returns persisted assets matching the filter.
func (c *Client) Assets(req AssetsRequest) (*AssetsResponse, error) {
	var resp AssetsResponse
	if err := c.client.Call("Aimatrix.Assets", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
