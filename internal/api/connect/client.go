package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"

	"github.com/osa030/flowbeat/internal/app/queue"
	"github.com/osa030/flowbeat/internal/domain/track"
)

// Client calls the player service.
type Client struct {
	httpClient connect.HTTPClient
	baseURL    string
	token      string
	opts       []connect.ClientOption
}

// NewClient creates a client for the server at baseURL. token is sent as
// the admin token when not empty.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		opts:       append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...),
	}
}

func call[Req, Res any](ctx context.Context, c *Client, procedure string, msg *Req) (*Res, error) {
	client := connect.NewClient[Req, Res](c.httpClient, c.baseURL+procedure, c.opts...)
	req := connect.NewRequest(msg)
	if c.token != "" {
		req.Header().Set(AdminTokenHeader, c.token)
	}
	res, err := client.CallUnary(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) GetStatus(ctx context.Context) (*StatusResponse, error) {
	return call[Empty, StatusResponse](ctx, c, ProcedureGetStatus, &Empty{})
}

func (c *Client) ListCatalogs(ctx context.Context) (*CatalogsResponse, error) {
	return call[Empty, CatalogsResponse](ctx, c, ProcedureListCatalogs, &Empty{})
}

func (c *Client) SetQueue(ctx context.Context, req *SetQueueRequest) (*QueueResponse, error) {
	return call[SetQueueRequest, QueueResponse](ctx, c, ProcedureSetQueue, req)
}

func (c *Client) LoadCatalog(ctx context.Context, req *LoadCatalogRequest) (*QueueResponse, error) {
	return call[LoadCatalogRequest, QueueResponse](ctx, c, ProcedureLoadCatalog, req)
}

func (c *Client) Append(ctx context.Context, t track.Track) (*AppendResponse, error) {
	return call[AppendRequest, AppendResponse](ctx, c, ProcedureAppend, &AppendRequest{Track: t})
}

func (c *Client) Remove(ctx context.Context, trackID string) (*StatusResponse, error) {
	return call[RemoveRequest, StatusResponse](ctx, c, ProcedureRemove, &RemoveRequest{TrackID: trackID})
}

func (c *Client) SelectAndPlay(ctx context.Context, t track.Track) (*StatusResponse, error) {
	return call[SelectAndPlayRequest, StatusResponse](ctx, c, ProcedureSelectAndPlay, &SelectAndPlayRequest{Track: t})
}

func (c *Client) JumpTo(ctx context.Context, index int) (*StatusResponse, error) {
	return call[JumpToRequest, StatusResponse](ctx, c, ProcedureJumpTo, &JumpToRequest{Index: index})
}

func (c *Client) SetMode(ctx context.Context, mode queue.PlayMode) (*StatusResponse, error) {
	return call[SetModeRequest, StatusResponse](ctx, c, ProcedureSetMode, &SetModeRequest{Mode: mode})
}

func (c *Client) Seek(ctx context.Context, seconds float64) (*StatusResponse, error) {
	return call[SeekRequest, StatusResponse](ctx, c, ProcedureSeek, &SeekRequest{Seconds: seconds})
}

func (c *Client) SetVolume(ctx context.Context, volume float64) (*StatusResponse, error) {
	return call[SetVolumeRequest, StatusResponse](ctx, c, ProcedureSetVolume, &SetVolumeRequest{Volume: volume})
}

// Do calls one of the parameterless procedures (Clear, Next, Previous,
// ToggleMode, Play, Pause, TogglePlay, Like).
func (c *Client) Do(ctx context.Context, procedure string) (*StatusResponse, error) {
	return call[Empty, StatusResponse](ctx, c, procedure, &Empty{})
}

// Subscribe streams notifications to fn until ctx ends, the server closes
// the stream or fn returns an error.
func (c *Client) Subscribe(ctx context.Context, fn func(*Event) error) error {
	client := connect.NewClient[Empty, Event](c.httpClient, c.baseURL+ProcedureSubscribe, c.opts...)
	stream, err := client.CallServerStream(ctx, connect.NewRequest(&Empty{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		if err := fn(stream.Msg()); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
