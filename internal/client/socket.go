package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/sketchwire/sketchwire-server/internal/proto"
)

// Socket maintains the client's relay connection for one room. On any
// transport loss it reconnects with exponential backoff and re-runs the
// full recovery sequence: bootstrap fetch, then rejoin. There is no
// incremental catch-up; the persisted log is the source of truth.
type Socket struct {
	baseURL string
	token   string
	rec     *Reconciler
	fetcher *Fetcher
	log     zerolog.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	cache *Cache
}

// NewSocket wires a reconciler to a relay endpoint. baseURL is the HTTP
// base, e.g. "http://localhost:8080"; the ws scheme is derived from it.
func NewSocket(baseURL, token string, rec *Reconciler, logger *zerolog.Logger) *Socket {
	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}
	return &Socket{
		baseURL: baseURL,
		token:   token,
		rec:     rec,
		fetcher: NewFetcher(baseURL),
		log:     lg,
	}
}

// SetCache installs a local snapshot cache. When present, the room snapshot
// is written after every bootstrap and applied mutation, so the next startup
// can render last-known state before the fetch completes.
func (s *Socket) SetCache(c *Cache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = c
}

// Send implements Sender. It fails when the socket is not currently
// connected; the caller's optimistic local apply has already happened.
func (s *Socket) Send(ctx context.Context, frame proto.Frame) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("socket not connected")
	}
	return wsjson.Write(ctx, conn, frame)
}

// Run connects and processes inbound frames until the context is canceled.
// Each (re)connection bootstraps from the persisted log before rejoining,
// so a client that lost frames while offline converges anyway.
func (s *Socket) Run(ctx context.Context) error {
	for {
		if err := s.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn().Err(err).Msg("recovery sequence failed, retrying")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		err := s.readLoop(ctx)
		s.teardown()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn().Err(err).Msg("relay connection lost, reconnecting")
	}
}

// connect dials with exponential backoff, then runs the recovery sequence.
func (s *Socket) connect(ctx context.Context) error {
	dial := func() error {
		conn, _, err := websocket.Dial(ctx, s.wsURL(), nil)
		if err != nil {
			s.log.Debug().Err(err).Msg("dial failed, will retry")
			return err
		}
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0
	policy.MaxInterval = 30 * time.Second
	if err := backoff.Retry(dial, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	entries, err := s.fetcher.RoomLog(ctx, s.rec.RoomID())
	if err != nil {
		s.teardown()
		return fmt.Errorf("bootstrap fetch: %w", err)
	}
	s.rec.Bootstrap(entries)
	s.saveSnapshot()

	if err := s.Send(ctx, proto.Frame{Type: proto.TypeJoinRoom, RoomID: s.rec.RoomID()}); err != nil {
		s.teardown()
		return fmt.Errorf("rejoin: %w", err)
	}

	s.log.Info().Int64("room_id", s.rec.RoomID()).Msg("connected to relay")
	return nil
}

func (s *Socket) readLoop(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	for {
		var frame proto.Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return err
		}
		s.rec.HandleFrame(frame)
		s.saveSnapshot()
	}
}

func (s *Socket) saveSnapshot() {
	s.mu.Lock()
	cache := s.cache
	s.mu.Unlock()
	if cache == nil {
		return
	}
	if err := cache.SaveRoom(s.rec.RoomID(), s.rec.Elements()); err != nil {
		s.log.Warn().Err(err).Msg("failed to cache room snapshot")
	}
}

func (s *Socket) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close(websocket.StatusNormalClosure, "")
		s.conn = nil
	}
}

func (s *Socket) wsURL() string {
	ws := strings.Replace(s.baseURL, "http", "ws", 1)
	return ws + "/ws?token=" + url.QueryEscape(s.token)
}
