package orch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/VoiceMesh/internal/app"
	"github.com/dkeye/VoiceMesh/internal/app/media"
	"github.com/dkeye/VoiceMesh/internal/app/peer"
	"github.com/dkeye/VoiceMesh/internal/app/voice"
	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrNotConnected = errors.New("session not connected")

type Config struct {
	Username           string
	Policy             peer.Policy
	NegotiationTimeout time.Duration
	Chat               app.ChatOptions
}

// Orchestrator is one client session: it owns the relay connection and
// wires the roster, voice tracker and peer manager around the id the relay
// assigned. Relay events are handled by Run on a single goroutine; the
// caller operations are safe to use concurrently with it.
type Orchestrator struct {
	Transport core.SignalingTransport
	Factory   core.MediaFactory
	Source    *media.Source
	cfg       Config

	mu        sync.RWMutex
	started   bool
	self      domain.ParticipantID
	username  string
	roster    *app.Roster
	directory *app.Directory
	chat      *app.Chat
	links     *peer.Manager
	voice     *voice.Tracker
}

func New(transport core.SignalingTransport, factory core.MediaFactory, source *media.Source, cfg Config) *Orchestrator {
	if cfg.Policy == nil {
		cfg.Policy = peer.LowerID{}
	}
	if source == nil {
		source = media.NewSource(nil, nil)
	}
	name, err := domain.ValidateUsername(cfg.Username)
	if err != nil {
		name = domain.DefaultUsername
	}
	return &Orchestrator{
		Transport: transport,
		Factory:   factory,
		Source:    source,
		cfg:       cfg,
		username:  name,
	}
}

// Start connects to the relay and brings the session up. Only a relay
// failure is fatal; without audio the session continues receive-only.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.Transport.Connect(ctx); err != nil {
		return err
	}
	self := o.Transport.ID()

	roster := app.NewRoster(self)
	directory := app.NewDirectory(o.Transport)
	links := peer.NewManager(peer.Options{
		Self:               self,
		Factory:            o.Factory,
		Signal:             o.Transport,
		Tracks:             o.Source,
		Inbound:            o.Source.Inbound(),
		Policy:             o.cfg.Policy,
		NegotiationTimeout: o.cfg.NegotiationTimeout,
	})
	tracker := voice.NewTracker(voice.Deps{
		Self:      self,
		Sender:    o.Transport,
		Roster:    roster,
		Directory: directory,
		Links:     links,
		Policy:    o.cfg.Policy,
	})

	o.mu.Lock()
	o.self = self
	o.roster = roster
	o.directory = directory
	o.chat = app.NewChat(self, o.Transport, o.cfg.Chat)
	o.links = links
	o.voice = tracker
	o.started = true
	username := o.username
	o.mu.Unlock()

	logger := log.With().Str("module", "orch").Str("self", string(self)).Logger()
	logger.Info().Str("username", username).Str("policy", o.cfg.Policy.Name()).Msg("session started")

	if err := o.Transport.Send(&core.SetUsername{ID: self, Name: username}); err != nil {
		return fmt.Errorf("announce username: %w", err)
	}
	if err := o.Source.Acquire(ctx); err != nil {
		logger.Warn().Err(err).Msg("no local audio, continuing receive-only")
	}
	if err := o.Transport.Send(&core.GetChannels{}); err != nil {
		return fmt.Errorf("request channels: %w", err)
	}
	return nil
}

// Run dispatches relay events until ctx ends or the relay connection drops.
// A dropped connection closes every link and returns ErrTransportClosed.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.isStarted() {
		return ErrNotConnected
	}
	events := o.Transport.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				o.onTransportLost()
				return domain.ErrTransportClosed
			}
			o.dispatch(ev)
		}
	}
}

func (o *Orchestrator) dispatch(ev core.Event) {
	logger := log.With().Str("module", "orch").Str("event", ev.EventName()).Logger()
	switch e := ev.(type) {
	case *core.UserJoined:
		o.voice.OnUserJoined(e.ID, e.Name)
	case *core.UserLeft:
		o.voice.OnUserLeft(e.ID)
	case *core.SetUsername:
		if e.ID != o.self {
			o.roster.Upsert(e.ID, e.Name)
		}
	case *core.UserJoinedVoice:
		o.voice.OnUserJoinedVoice(e.ID, e.Channel)
	case *core.UserLeftVoice:
		o.voice.OnUserLeftVoice(e.ID)
	case *core.ChannelCreated:
		o.directory.Add(e.Name, e.Kind)
	case *core.MessageReceived:
		o.chat.OnMessage(e)
	case *core.ReceiveOffer:
		o.onOffer(e)
	case *core.ReceiveAnswer:
		_ = o.links.HandleRemoteAnswer(e.Peer, e.SDP)
	case *core.ReceiveIceCandidate:
		_ = o.links.HandleRemoteICE(e.Peer, e.Candidate.Init())
	case *core.Welcome:
		logger.Debug().Str("id", string(e.ID)).Msg("late welcome ignored")
	default:
		logger.Debug().Msg("unhandled event")
	}
}

// onTransportLost tears every link down once and forgets the relay's view.
func (o *Orchestrator) onTransportLost() {
	log.Warn().Str("module", "orch").Msg("relay connection lost, closing all links")
	o.voice.Reset()
	o.roster.Reset()
}

// Close leaves voice, stops capture and closes the relay connection.
func (o *Orchestrator) Close() error {
	if o.isStarted() {
		if err := o.voice.Leave(); err != nil {
			log.Warn().Err(err).Str("module", "orch").Msg("leave on close")
		}
	}
	o.Source.Release()
	return o.Transport.Close()
}

func (o *Orchestrator) isStarted() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.started
}
