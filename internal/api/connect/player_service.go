package connect

import (
	"context"
	"net/http"
	"sort"
	"time"

	"connectrpc.com/connect"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/flowbeat/internal/app/catalog"
	"github.com/osa030/flowbeat/internal/app/filter"
	"github.com/osa030/flowbeat/internal/app/notification"
	"github.com/osa030/flowbeat/internal/app/player"
	"github.com/osa030/flowbeat/internal/app/queue"
	"github.com/osa030/flowbeat/internal/domain/track"
)

// Player is the playback API served over RPC.
type Player interface {
	Status(ctx context.Context) (player.Snapshot, error)
	SetQueue(ctx context.Context, tracks []track.Track, start int, autoplay bool) (map[string]filter.Result, error)
	Append(ctx context.Context, t track.Track) (bool, error)
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	SelectAndPlay(ctx context.Context, t track.Track) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	JumpTo(ctx context.Context, index int) error
	ToggleMode(ctx context.Context) (queue.PlayMode, error)
	SetMode(ctx context.Context, mode queue.PlayMode) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	TogglePlay(ctx context.Context) error
	Seek(ctx context.Context, position time.Duration) error
	SetVolume(ctx context.Context, volume float64) error
	Like(ctx context.Context) error
	Done() <-chan struct{}
}

// Catalogs resolves catalog sources into tracks.
type Catalogs interface {
	Load(ctx context.Context, name, ref string, limit int) ([]track.Track, error)
	List() []catalog.Info
}

// Notifier is the subscription side of the notification manager.
type Notifier interface {
	Subscribe(stream notification.Stream, initial ...*notification.Notification) string
	Unsubscribe(subscriptionID string)
	Done(subscriptionID string) <-chan struct{}
}

// PlayerService implements the PlayerService RPC.
type PlayerService struct {
	player   Player
	catalogs Catalogs
	notifier Notifier
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(p Player, catalogs Catalogs, notifier Notifier) *PlayerService {
	return &PlayerService{
		player:   p,
		catalogs: catalogs,
		notifier: notifier,
	}
}

// Handler returns the service path prefix and its HTTP handler.
func (s *PlayerService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	mux := http.NewServeMux()

	unary(mux, ProcedureGetStatus, s.GetStatus, opts)
	unary(mux, ProcedureListCatalogs, s.ListCatalogs, opts)
	unary(mux, ProcedureSetQueue, s.SetQueue, opts)
	unary(mux, ProcedureLoadCatalog, s.LoadCatalog, opts)
	unary(mux, ProcedureAppend, s.Append, opts)
	unary(mux, ProcedureRemove, s.Remove, opts)
	unary(mux, ProcedureClear, s.simple(s.player.Clear), opts)
	unary(mux, ProcedureSelectAndPlay, s.SelectAndPlay, opts)
	unary(mux, ProcedureNext, s.simple(s.player.Next), opts)
	unary(mux, ProcedurePrevious, s.simple(s.player.Previous), opts)
	unary(mux, ProcedureJumpTo, s.JumpTo, opts)
	unary(mux, ProcedureToggleMode, s.ToggleMode, opts)
	unary(mux, ProcedureSetMode, s.SetMode, opts)
	unary(mux, ProcedurePlay, s.simple(s.player.Play), opts)
	unary(mux, ProcedurePause, s.simple(s.player.Pause), opts)
	unary(mux, ProcedureTogglePlay, s.simple(s.player.TogglePlay), opts)
	unary(mux, ProcedureSeek, s.Seek, opts)
	unary(mux, ProcedureSetVolume, s.SetVolume, opts)
	unary(mux, ProcedureLike, s.simple(s.player.Like), opts)
	mux.Handle(ProcedureSubscribe, connect.NewServerStreamHandler(ProcedureSubscribe, s.Subscribe, opts...))

	return "/" + ServiceName + "/", mux
}

func unary[Req, Res any](mux *http.ServeMux, procedure string, fn func(context.Context, *Req) (*Res, error), opts []connect.HandlerOption) {
	mux.Handle(procedure, connect.NewUnaryHandler(procedure,
		func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
			res, err := fn(ctx, req.Msg)
			if err != nil {
				zlog.Debug().Msgf("rpc failed: procedure=%s err=%v", procedure, err)
				return nil, toConnectError(err)
			}
			return connect.NewResponse(res), nil
		},
		opts...,
	))
}

// simple adapts a parameterless player operation.
func (s *PlayerService) simple(op func(context.Context) error) func(context.Context, *Empty) (*StatusResponse, error) {
	return func(ctx context.Context, _ *Empty) (*StatusResponse, error) {
		if err := op(ctx); err != nil {
			return nil, err
		}
		return s.status(ctx)
	}
}

func (s *PlayerService) status(ctx context.Context) (*StatusResponse, error) {
	snap, err := s.player.Status(ctx)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{Status: snap}, nil
}

// GetStatus returns the current player state.
func (s *PlayerService) GetStatus(ctx context.Context, _ *Empty) (*StatusResponse, error) {
	return s.status(ctx)
}

// ListCatalogs lists the configured catalog sources.
func (s *PlayerService) ListCatalogs(ctx context.Context, _ *Empty) (*CatalogsResponse, error) {
	return &CatalogsResponse{Catalogs: s.catalogs.List()}, nil
}

// SetQueue replaces the queue with the given tracks.
func (s *PlayerService) SetQueue(ctx context.Context, req *SetQueueRequest) (*QueueResponse, error) {
	return s.setQueue(ctx, req.Tracks, req.Start, req.Autoplay)
}

// LoadCatalog replaces the queue with tracks fetched from a catalog.
func (s *PlayerService) LoadCatalog(ctx context.Context, req *LoadCatalogRequest) (*QueueResponse, error) {
	tracks, err := s.catalogs.Load(ctx, req.Catalog, req.Ref, req.Limit)
	if err != nil {
		return nil, err
	}
	return s.setQueue(ctx, tracks, req.Start, req.Autoplay)
}

func (s *PlayerService) setQueue(ctx context.Context, tracks []track.Track, start int, autoplay bool) (*QueueResponse, error) {
	rejected, err := s.player.SetQueue(ctx, tracks, start, autoplay)
	if err != nil {
		return nil, err
	}

	resp := &QueueResponse{}
	for id, result := range rejected {
		resp.Rejected = append(resp.Rejected, Rejection{TrackID: id, Code: result.Code})
	}
	sort.Slice(resp.Rejected, func(i, j int) bool {
		return resp.Rejected[i].TrackID < resp.Rejected[j].TrackID
	})

	if resp.Status, err = s.player.Status(ctx); err != nil {
		return nil, err
	}
	return resp, nil
}

// Append adds a track to the end of the queue.
func (s *PlayerService) Append(ctx context.Context, req *AppendRequest) (*AppendResponse, error) {
	added, err := s.player.Append(ctx, req.Track)
	if err != nil {
		return nil, err
	}
	snap, err := s.player.Status(ctx)
	if err != nil {
		return nil, err
	}
	return &AppendResponse{Added: added, Status: snap}, nil
}

// Remove deletes a track from the queue.
func (s *PlayerService) Remove(ctx context.Context, req *RemoveRequest) (*StatusResponse, error) {
	if err := s.player.Remove(ctx, req.TrackID); err != nil {
		return nil, err
	}
	return s.status(ctx)
}

// SelectAndPlay plays a track, queueing it first when needed.
func (s *PlayerService) SelectAndPlay(ctx context.Context, req *SelectAndPlayRequest) (*StatusResponse, error) {
	if err := s.player.SelectAndPlay(ctx, req.Track); err != nil {
		return nil, err
	}
	return s.status(ctx)
}

// JumpTo plays the track at an index.
func (s *PlayerService) JumpTo(ctx context.Context, req *JumpToRequest) (*StatusResponse, error) {
	if err := s.player.JumpTo(ctx, req.Index); err != nil {
		return nil, err
	}
	return s.status(ctx)
}

// ToggleMode cycles the play mode.
func (s *PlayerService) ToggleMode(ctx context.Context, _ *Empty) (*StatusResponse, error) {
	if _, err := s.player.ToggleMode(ctx); err != nil {
		return nil, err
	}
	return s.status(ctx)
}

// SetMode sets the play mode.
func (s *PlayerService) SetMode(ctx context.Context, req *SetModeRequest) (*StatusResponse, error) {
	if err := s.player.SetMode(ctx, req.Mode); err != nil {
		return nil, err
	}
	return s.status(ctx)
}

// Seek moves the playback position.
func (s *PlayerService) Seek(ctx context.Context, req *SeekRequest) (*StatusResponse, error) {
	if err := s.player.Seek(ctx, req.Position()); err != nil {
		return nil, err
	}
	return s.status(ctx)
}

// SetVolume sets the playback volume.
func (s *PlayerService) SetVolume(ctx context.Context, req *SetVolumeRequest) (*StatusResponse, error) {
	if err := s.player.SetVolume(ctx, req.Volume); err != nil {
		return nil, err
	}
	return s.status(ctx)
}

// Subscribe streams the current state followed by every notification until
// the client goes away or the player stops.
func (s *PlayerService) Subscribe(
	ctx context.Context,
	req *connect.Request[Empty],
	stream *connect.ServerStream[notification.Notification],
) error {
	snap, err := s.player.Status(ctx)
	if err != nil {
		return toConnectError(err)
	}

	adapter := &notificationStreamAdapter{stream: stream}
	subscriptionID := s.notifier.Subscribe(adapter, notification.New(notification.KindStatus, snap))
	zlog.Info().Msgf("rpc subscriber joined: id=%s peer=%s", subscriptionID, req.Peer().Addr)

	select {
	case <-ctx.Done():
	case <-s.notifier.Done(subscriptionID):
	case <-s.player.Done():
	}

	s.notifier.Unsubscribe(subscriptionID)
	zlog.Info().Msgf("rpc subscriber left: id=%s", subscriptionID)
	return nil
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
type notificationStreamAdapter struct {
	stream *connect.ServerStream[notification.Notification]
}

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	return a.stream.Send(n)
}
