// Package voicepb holds the request/response/event shapes of the control
// plane. No .proto file backs these: the wire encoding is JSON, carried over
// a real grpc.Server via a hand-rolled codec (see bridge/control/codec.go).
// The names and field shapes mirror what protoc-gen-go would have produced
// for this RPC surface.
package voicepb

// PlaybackState enumerates SharedStatus.state.
type PlaybackState int32

const (
	PlaybackStateUnspecified PlaybackState = 0
	PlaybackStateIdle        PlaybackState = 1
	PlaybackStatePlaying     PlaybackState = 2
	PlaybackStatePaused      PlaybackState = 3
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackStateIdle:
		return "IDLE"
	case PlaybackStatePlaying:
		return "PLAYING"
	case PlaybackStatePaused:
		return "PAUSED"
	default:
		return "UNSPECIFIED"
	}
}

// PlaybackEventType enumerates PlaybackEvent.Type.
type PlaybackEventType int32

const (
	PlaybackEventUnspecified PlaybackEventType = 0
	PlaybackEventStarted     PlaybackEventType = 1
	PlaybackEventFinished    PlaybackEventType = 2
	PlaybackEventError       PlaybackEventType = 3
)

// TargetMode enumerates ChatEvent/SendNotice target_mode.
type TargetMode int32

const (
	TargetModeUnspecified TargetMode = 0
	TargetModePrivate     TargetMode = 1
	TargetModeChannel     TargetMode = 2
	TargetModeServer      TargetMode = 3
)

// LogLevel enumerates LogEvent.level.
type LogLevel int32

const (
	LogLevelUnspecified LogLevel = 0
	LogLevelDebug       LogLevel = 1
	LogLevelInfo        LogLevel = 2
	LogLevelWarn        LogLevel = 3
	LogLevelError       LogLevel = 4
)

// -- Requests / responses --

type PingRequest struct{}

type PingResponse struct {
	Version string `json:"version"`
}

type PlayRequest struct {
	Title     string `json:"title"`
	SourceURL string `json:"source_url"`
	Notice    string `json:"notice"`
}

type OpResponse struct {
	Ok      bool   `json:"ok"`
	Message string `json:"message"`
}

type EmptyRequest struct{}

type SendNoticeRequest struct {
	Message    string     `json:"message"`
	TargetMode TargetMode `json:"target_mode"`
}

type SetVolumeRequest struct {
	VolumePercent int32 `json:"volume_percent"`
}

type GetStatusResponse struct {
	State               PlaybackState `json:"state"`
	NowPlayingTitle     string        `json:"now_playing_title"`
	NowPlayingSourceURL string        `json:"now_playing_source_url"`
	VolumePercent       int32         `json:"volume_percent"`
}

// SetAudioFxRequest fields are pointers: nil means "leave unchanged".
type SetAudioFxRequest struct {
	Pan       *float64 `json:"pan,omitempty"`
	Width     *float64 `json:"width,omitempty"`
	SwapLR    *bool    `json:"swap_lr,omitempty"`
	BassDb    *float64 `json:"bass_db,omitempty"`
	ReverbMix *float64 `json:"reverb_mix,omitempty"`
}

type GetAudioFxResponse struct {
	Pan       float64 `json:"pan"`
	Width     float64 `json:"width"`
	SwapLR    bool    `json:"swap_lr"`
	BassDb    float64 `json:"bass_db"`
	ReverbMix float64 `json:"reverb_mix"`
}

type SetClientDescriptionRequest struct {
	Description string `json:"description"`
}

type SubscribeEventsRequest struct {
	IncludeChat     bool `json:"include_chat"`
	IncludePlayback bool `json:"include_playback"`
	IncludeLog      bool `json:"include_log"`
}

// -- Events --

type ChatEvent struct {
	TargetMode  TargetMode `json:"target_mode"`
	InvokerID   string     `json:"invoker_id"`
	InvokerName string     `json:"invoker_name"`
	Message     string     `json:"message"`
	AvatarHash  string     `json:"avatar_hash,omitempty"`
	Description string     `json:"description,omitempty"`
}

type PlaybackEvent struct {
	Type    PlaybackEventType `json:"type"`
	Title   string            `json:"title"`
	Message string            `json:"message,omitempty"`
}

type LogEvent struct {
	Level   LogLevel `json:"level"`
	Message string   `json:"message"`
}

// Event is the tagged envelope broadcast on the event bus and streamed to
// subscribers. Exactly one of Chat, Playback, Log is set.
type Event struct {
	UnixMs   int64          `json:"unix_ms"`
	Chat     *ChatEvent     `json:"chat,omitempty"`
	Playback *PlaybackEvent `json:"playback,omitempty"`
	Log      *LogEvent      `json:"log,omitempty"`
}
