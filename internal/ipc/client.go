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
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call("Reelpull."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Submit admits a job. In direct mode this blocks until processing ends.
func (c *Client) Submit(req SubmitRequest) (*SubmitResponse, error) {
	return call[SubmitResponse](c, "Submit", req)
}

// JobList lists jobs.
func (c *Client) JobList(req JobListRequest) (*JobListResponse, error) {
	return call[JobListResponse](c, "JobList", req)
}

// JobDescribe fetches one job.
func (c *Client) JobDescribe(id string) (*JobDescribeResponse, error) {
	return call[JobDescribeResponse](c, "JobDescribe", JobDescribeRequest{ID: id})
}

// Metadata fetches source metadata and quality options.
func (c *Client) Metadata(url string) (*MetadataResponse, error) {
	return call[MetadataResponse](c, "Metadata", MetadataRequest{URL: url})
}

// Subtitles lists subtitle tracks.
func (c *Client) Subtitles(url string) (*SubtitlesResponse, error) {
	return call[SubtitlesResponse](c, "Subtitles", SubtitlesRequest{URL: url})
}

// SubtitleDownload writes one subtitle track on the daemon host.
func (c *Client) SubtitleDownload(req SubtitleDownloadRequest) (*SubtitleDownloadResponse, error) {
	return call[SubtitleDownloadResponse](c, "SubtitleDownload", req)
}
