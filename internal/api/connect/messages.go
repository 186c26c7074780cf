package connect

import (
	"encoding/json"
	"time"

	"github.com/osa030/flowbeat/internal/app/catalog"
	"github.com/osa030/flowbeat/internal/app/player"
	"github.com/osa030/flowbeat/internal/app/queue"
	"github.com/osa030/flowbeat/internal/domain/track"
)

// ServiceName is the fully-qualified name of the player service.
const ServiceName = "flowbeat.player.v1.PlayerService"

// Procedure names.
const (
	ProcedureGetStatus     = "/" + ServiceName + "/GetStatus"
	ProcedureListCatalogs  = "/" + ServiceName + "/ListCatalogs"
	ProcedureSubscribe     = "/" + ServiceName + "/Subscribe"
	ProcedureSetQueue      = "/" + ServiceName + "/SetQueue"
	ProcedureLoadCatalog   = "/" + ServiceName + "/LoadCatalog"
	ProcedureAppend        = "/" + ServiceName + "/Append"
	ProcedureRemove        = "/" + ServiceName + "/Remove"
	ProcedureClear         = "/" + ServiceName + "/Clear"
	ProcedureSelectAndPlay = "/" + ServiceName + "/SelectAndPlay"
	ProcedureNext          = "/" + ServiceName + "/Next"
	ProcedurePrevious      = "/" + ServiceName + "/Previous"
	ProcedureJumpTo        = "/" + ServiceName + "/JumpTo"
	ProcedureToggleMode    = "/" + ServiceName + "/ToggleMode"
	ProcedureSetMode       = "/" + ServiceName + "/SetMode"
	ProcedurePlay          = "/" + ServiceName + "/Play"
	ProcedurePause         = "/" + ServiceName + "/Pause"
	ProcedureTogglePlay    = "/" + ServiceName + "/TogglePlay"
	ProcedureSeek          = "/" + ServiceName + "/Seek"
	ProcedureSetVolume     = "/" + ServiceName + "/SetVolume"
	ProcedureLike          = "/" + ServiceName + "/Like"
)

// Empty is the request of procedures without parameters.
type Empty struct{}

// StatusResponse carries the player state after a call.
type StatusResponse struct {
	Status player.Snapshot `json:"status"`
}

// Rejection describes a track refused by an admission filter.
type Rejection struct {
	TrackID string `json:"track_id"`
	Code    string `json:"code"`
}

type SetQueueRequest struct {
	Tracks   []track.Track `json:"tracks"`
	Start    int           `json:"start"`
	Autoplay bool          `json:"autoplay"`
}

type LoadCatalogRequest struct {
	Catalog  string `json:"catalog,omitempty"` // "" tries every catalog in order
	Ref      string `json:"ref,omitempty"`     // Source-specific, e.g. a playlist URL
	Limit    int    `json:"limit,omitempty"`
	Start    int    `json:"start"`
	Autoplay bool   `json:"autoplay"`
}

type QueueResponse struct {
	Status   player.Snapshot `json:"status"`
	Rejected []Rejection     `json:"rejected,omitempty"`
}

type CatalogsResponse struct {
	Catalogs []catalog.Info `json:"catalogs"`
}

type AppendRequest struct {
	Track track.Track `json:"track"`
}

type AppendResponse struct {
	Added  bool            `json:"added"`
	Status player.Snapshot `json:"status"`
}

type RemoveRequest struct {
	TrackID string `json:"track_id"`
}

type SelectAndPlayRequest struct {
	Track track.Track `json:"track"`
}

type JumpToRequest struct {
	Index int `json:"index"`
}

type SetModeRequest struct {
	Mode queue.PlayMode `json:"mode"`
}

type SeekRequest struct {
	Seconds float64 `json:"seconds"`
}

func (r *SeekRequest) Position() time.Duration {
	return time.Duration(r.Seconds * float64(time.Second))
}

type SetVolumeRequest struct {
	Volume float64 `json:"volume"`
}

// Event is a notification as decoded by clients. Payload holds a
// player.Snapshot for "status", a transport.Status for "time_update" and a
// player.ErrorPayload for "error".
type Event struct {
	SequenceNo uint64          `json:"sequence_no"`
	Kind       string          `json:"kind"`
	Time       time.Time       `json:"time"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
