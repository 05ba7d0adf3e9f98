package ts3

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yichen11818/NeteaseTSBot/bridge/events"
	"github.com/yichen11818/NeteaseTSBot/bridge/voicepb"
)

const (
	eventTickInterval = 50 * time.Millisecond
	sendTickInterval  = 20 * time.Millisecond

	audioQueueCapacity   = 200
	noticeQueueCapacity  = 50
	rawCmdQueueCapacity  = 50
	sendQueueCapacity    = 800
	shutdownDrainTimeout = 2 * time.Second

	backoffInitial    = 1 * time.Second
	backoffCap        = 60 * time.Second
	backoffCloneFloor = 30 * time.Second

	sendGateWarnInterval = 3 * time.Second
)

// Config holds the connection parameters the actor needs; independent of
// bridge.Config so this package has no dependency on the outer config
// loader.
type Config struct {
	Host            string
	Port            int
	Nickname        string
	ServerPassword  string
	ChannelPassword string
	ChannelPath     string
	ChannelID       int
	Identity        string
	IdentityFile    string
	AvatarDir       string
}

// Notice is a chat message to send via sendtextmessage.
type Notice struct {
	TargetMode int // 2=channel, 3=server
	Message    string
}

// Actor is the single long-lived task owning the TS3 connection.
// All outbound work crosses into it via bounded channels; the connection
// object itself never leaves this task.
type Actor struct {
	cfg    Config
	logger *slog.Logger
	bus    *events.Bus

	audioCh  chan []byte // opus frames, produced by the playback pipeline
	noticeCh chan Notice
	rawCmdCh chan Command

	identity Identity
}

// NewActor constructs the actor. Identity resolution happens once here, at
// construction time.
func NewActor(cfg Config, bus *events.Bus, logger *slog.Logger) (*Actor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	id, err := ResolveIdentity(cfg.Identity, cfg.IdentityFile)
	if err != nil {
		return nil, err
	}
	return &Actor{
		cfg:      cfg,
		logger:   logger,
		bus:      bus,
		audioCh:  make(chan []byte, audioQueueCapacity),
		noticeCh: make(chan Notice, noticeQueueCapacity),
		rawCmdCh: make(chan Command, rawCmdQueueCapacity),
		identity: id,
	}, nil
}

// SubmitAudio pushes one encoded Opus frame toward TS3; on overflow the
// oldest queued frame is dropped.
func (a *Actor) SubmitAudio(frame []byte) {
	select {
	case a.audioCh <- frame:
	default:
		select {
		case <-a.audioCh:
		default:
		}
		select {
		case a.audioCh <- frame:
		default:
		}
	}
}

// SubmitNotice queues a chat notice; non-blocking, drop-oldest on overflow.
func (a *Actor) SubmitNotice(n Notice) {
	select {
	case a.noticeCh <- n:
	default:
		select {
		case <-a.noticeCh:
		default:
		}
		select {
		case a.noticeCh <- n:
		default:
		}
	}
}

// SubmitRawCommand forwards an externally constructed command (e.g.
// clientupdate for description/avatar).
func (a *Actor) SubmitRawCommand(c Command) {
	select {
	case a.rawCmdCh <- c:
	default:
		select {
		case <-a.rawCmdCh:
		default:
		}
		select {
		case a.rawCmdCh <- c:
		default:
		}
	}
}

// Run is the outer connect/backoff loop. It returns when ctx is cancelled.
func (a *Actor) Run(ctx context.Context) {
	backoff := backoffInitial
	for {
		if ctx.Err() != nil {
			return
		}
		transport, err := Dial(ctx, a.cfg.Host, a.cfg.Port)
		if err != nil {
			a.logger.Warn("ts3 connect failed", "error", err, "retry_in", backoff)
			a.bus.PublishLog(voicepb.LogEvent{Level: voicepb.LogLevelWarn, Message: "ts3 connect failed: " + err.Error()})
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, err)
			continue
		}

		if err := a.sendHandshake(transport); err != nil {
			a.logger.Warn("ts3 handshake failed", "error", err, "retry_in", backoff)
			a.bus.PublishLog(voicepb.LogEvent{Level: voicepb.LogLevelWarn, Message: "ts3 handshake failed: " + err.Error()})
			transport.Close()
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, err)
			continue
		}

		disconnectErr := a.runInner(ctx, transport)
		transport.Close()

		if ctx.Err() != nil {
			return
		}
		if disconnectErr == nil {
			backoff = backoffInitial
			continue
		}
		a.logger.Warn("ts3 inner loop exited, reconnecting", "error", disconnectErr, "retry_in", backoff)
		a.bus.PublishLog(voicepb.LogEvent{Level: voicepb.LogLevelWarn, Message: "ts3 disconnected: " + disconnectErr.Error()})
		if !sleepOrDone(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, disconnectErr)
	}
}

// sendHandshake issues the TS3Query-style login sequence after the UDP
// socket is up: client identification (nickname + identity-derived unique
// id, server password if one is configured), then a channel move to either
// the configured channel path or channel id (channel password included when
// set). Real TS3 also exchanges a binary Init1 cookie handshake before any
// of this; that low-level handshake isn't modeled here, only the
// application-level login a real client sends once it's past that point.
func (a *Actor) sendHandshake(transport *Transport) error {
	loginArgs := []Arg{
		{Key: "client_nickname", Value: a.cfg.Nickname},
		{Key: "client_unique_identifier", Value: a.identity.UniqueID()},
	}
	if a.cfg.ServerPassword != "" {
		loginArgs = append(loginArgs, Arg{Key: "server_password", Value: a.cfg.ServerPassword})
	}
	login := Command{Name: "clientinit", Args: loginArgs}
	if err := transport.Send(Packet{Payload: []byte(login.Encode())}); err != nil {
		return fmt.Errorf("send clientinit: %w", err)
	}

	if a.cfg.ChannelPath == "" && a.cfg.ChannelID == 0 {
		return nil
	}
	moveArgs := []Arg{}
	if a.cfg.ChannelPath != "" {
		moveArgs = append(moveArgs, Arg{Key: "channel_path", Value: a.cfg.ChannelPath})
	} else {
		moveArgs = append(moveArgs, Arg{Key: "cid", Value: fmt.Sprintf("%d", a.cfg.ChannelID)})
	}
	if a.cfg.ChannelPassword != "" {
		moveArgs = append(moveArgs, Arg{Key: "cpw", Value: a.cfg.ChannelPassword})
	}
	move := Command{Name: "clientmove", Args: moveArgs}
	if err := transport.Send(Packet{Payload: []byte(move.Encode())}); err != nil {
		return fmt.Errorf("send clientmove: %w", err)
	}
	return nil
}

func nextBackoff(cur time.Duration, err error) time.Duration {
	next := cur * 2
	if next > backoffCap {
		next = backoffCap
	}
	if err != nil && strings.Contains(err.Error(), "ClientTooManyClonesConnected") && next < backoffCloneFloor {
		next = backoffCloneFloor
	}
	return next
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// connState tracks per-connection transient state owned exclusively by this
// task: the avatar upload one-shot, the send-gate warning rate limit, and
// the enrichment table for chat events.
type connState struct {
	connectedAnnounced bool
	avatarDone         bool

	lastSendGateWarn time.Time

	clientAvatarHash map[string]string
	clientDesc       map[string]string

	cannotSend bool

	pendingAvatarPath string
	pendingAvatarMD5  string
}

func newConnState() *connState {
	return &connState{
		clientAvatarHash: make(map[string]string),
		clientDesc:       make(map[string]string),
	}
}

// runInner drives the five-way select for one connection lifetime. A
// non-nil return triggers outer-loop backoff/reconnect.
func (a *Actor) runInner(ctx context.Context, transport *Transport) error {
	st := newConnState()

	eventTicker := time.NewTicker(eventTickInterval)
	defer eventTicker.Stop()
	sendTicker := time.NewTicker(sendTickInterval)
	defer sendTicker.Stop()

	var sendQueue [][]byte

	for {
		select {
		case <-ctx.Done():
			a.drainOnShutdown(transport)
			return nil

		case <-eventTicker.C:
			for {
				raw, err := transport.TryReceive(0)
				if err != nil {
					return err
				}
				if raw == nil {
					break
				}
				ev, err := decodeEvent(raw)
				if err != nil {
					a.logger.Warn("ts3 event decode failed", "error", err)
					continue
				}
				if err := a.handleEvent(transport, st, ev); err != nil {
					return err
				}
			}

		case <-sendTicker.C:
			if len(sendQueue) == 0 {
				continue
			}
			frame := sendQueue[0]
			sendQueue = sendQueue[1:]
			if st.cannotSend {
				if time.Since(st.lastSendGateWarn) >= sendGateWarnInterval {
					a.logger.Warn("ts3 cannot send audio (muted/no talk power/away)")
					st.lastSendGateWarn = time.Now()
				}
				continue
			}
			if err := transport.Send(AudioPacket(frame)); err != nil {
				return err
			}

		case n := <-a.noticeCh:
			cmd := Sendtextmessage(n.TargetMode, n.Message)
			if err := transport.Send(Packet{Payload: []byte(cmd.Encode())}); err != nil {
				return err
			}

		case c := <-a.rawCmdCh:
			if err := transport.Send(Packet{Payload: []byte(c.Encode())}); err != nil {
				return err
			}

		case frame := <-a.audioCh:
			sendQueue = append(sendQueue, frame)
			if len(sendQueue) > sendQueueCapacity {
				drop := len(sendQueue) - sendQueueCapacity
				sendQueue = sendQueue[drop:]
			}
		}
	}
}

func (a *Actor) drainOnShutdown(transport *Transport) {
	deadline := time.Now().Add(shutdownDrainTimeout)
	for time.Now().Before(deadline) {
		raw, err := transport.TryReceive(50 * time.Millisecond)
		if err != nil || raw == nil {
			return
		}
	}
}

func (a *Actor) handleEvent(transport *Transport, st *connState, ev inboundEvent) error {
	if !st.connectedAnnounced {
		st.connectedAnnounced = true
		a.logger.Info("ts3 connected")
		a.bus.PublishLog(voicepb.LogEvent{Level: voicepb.LogLevelInfo, Message: "ts3 connected"})
		if a.cfg.AvatarDir != "" && !st.avatarDone {
			a.beginAvatarUpload(transport, st)
		}
	}

	switch e := ev.(type) {
	case messageEvent:
		avatarHash := st.clientAvatarHash[e.invokerUniqueID]
		desc := st.clientDesc[e.invokerUniqueID]
		a.bus.PublishChat(voicepb.ChatEvent{
			TargetMode:  voicepb.TargetMode(e.targetMode),
			InvokerID:   e.invokerUniqueID,
			InvokerName: e.invokerName,
			Message:     e.text,
			AvatarHash:  avatarHash,
			Description: desc,
		})
	case canSendEvent:
		st.cannotSend = !e.canSend
		if e.canSend {
			a.logger.Info("ts3 can send audio")
		} else {
			a.logger.Warn("ts3 cannot send audio")
		}
	case fileUploadEvent:
		if e.handle == avatarUploadHandle && !st.avatarDone {
			a.completeAvatarUpload(transport, st, e)
		}
	case filetransferFailedEvent:
		if e.handle == avatarUploadHandle {
			a.logger.Warn("ts3 avatar upload failed", "error", e.err)
			st.avatarDone = true // don't retry within this connection
		}
	case errorEvent:
		return e.err
	}
	return nil
}

const avatarUploadHandle = "avatar"

func (a *Actor) beginAvatarUpload(transport *Transport, st *connState) {
	path, err := PickAvatarFile(a.cfg.AvatarDir)
	if err != nil || path == "" {
		if err != nil {
			a.logger.Warn("ts3 avatar pick failed", "error", err)
		}
		return
	}
	md5hex, err := AvatarMD5(path)
	if err != nil {
		a.logger.Warn("ts3 avatar hash failed", "error", err)
		return
	}
	uploadPath := AvatarUploadPath(md5hex)
	cmd := Command{
		Name: "ftinitupload",
		Args: []Arg{
			{Key: "clientftfid", Value: avatarUploadHandle},
			{Key: "name", Value: uploadPath},
			{Key: "cid", Value: "0"},
		},
	}
	if err := transport.Send(Packet{Payload: []byte(cmd.Encode())}); err != nil {
		a.logger.Warn("ts3 avatar ftinitupload failed", "error", err)
		return
	}
	st.pendingAvatarPath = path
	st.pendingAvatarMD5 = md5hex
}

func (a *Actor) completeAvatarUpload(transport *Transport, st *connState, e fileUploadEvent) {
	session, err := DialUpload(e.host, e.port)
	if err != nil {
		a.logger.Warn("ts3 avatar filetransfer dial failed", "error", err)
		st.avatarDone = true
		return
	}
	defer session.Close()
	if err := session.SendFile(e.transferKey, st.pendingAvatarPath); err != nil {
		a.logger.Warn("ts3 avatar upload failed", "error", err)
		st.avatarDone = true
		return
	}
	cmd := ClientUpdateAvatar(st.pendingAvatarMD5)
	if err := transport.Send(Packet{Payload: []byte(cmd.Encode())}); err != nil {
		a.logger.Warn("ts3 clientupdate avatar failed", "error", err)
	}
	st.avatarDone = true
}
