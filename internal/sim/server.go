// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package sim

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/egg17/powerboxctl/internal/bridge"
	"github.com/egg17/powerboxctl/pkg/powerbox"
)

// Server exposes the engine over the bridge protocol on a websocket
// endpoint, the counterpart of the client's --url transport. Each
// connected client gets its own frame streams; the engine model is
// shared, so a command from one client is visible to all.
type Server struct {
	engine *Engine
	sc     *Scenario
	log    *zap.SugaredLogger

	upgrader websocket.Upgrader
}

// NewServer wraps an engine for serving.
func NewServer(engine *Engine, sc *Scenario, logger *zap.SugaredLogger) *Server {
	return &Server{
		engine: engine,
		sc:     sc,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Serve runs the websocket endpoint at addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	ticker := time.NewTicker(time.Duration(s.sc.Intervals.StateMs) * time.Millisecond)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.engine.Tick(uint32(s.sc.Intervals.StateMs / 1000))
			}
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// handleWS runs one client connection: a writer pumping periodic frames
// and a reader answering writes and read requests.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	s.log.Infow("client connected", "remote", conn.RemoteAddr().String())

	var writeMu sync.Mutex
	send := func(kind bridge.Kind, ch powerbox.Channel, payload []byte) error {
		wire, err := bridge.Encode(kind, ch, payload)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.BinaryMessage, wire)
	}

	done := make(chan struct{})
	go s.notifyLoop(conn, send, done)

	decoder := bridge.NewDecoder()
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		for _, b := range data {
			frame, err := decoder.DecodeByte(b)
			if err != nil {
				s.log.Debugw("bad frame from client", "error", err)
				continue
			}
			if frame == nil {
				continue
			}
			s.handleFrame(frame, send)
		}
	}

	close(done)
	s.log.Infow("client disconnected", "remote", conn.RemoteAddr().String())
}

type sendFunc func(bridge.Kind, powerbox.Channel, []byte) error

// handleFrame answers one client frame.
func (s *Server) handleFrame(frame *bridge.Frame, send sendFunc) {
	switch frame.Kind {
	case bridge.KindReadRequest:
		payload, ok := s.engine.ReadPayload(frame.Channel)
		if !ok {
			s.log.Debugw("read request for unreadable channel", "channel", uint8(frame.Channel))
			return
		}
		send(bridge.KindReadResponse, frame.Channel, payload)

	case bridge.KindWrite:
		if frame.Channel != powerbox.ChannelCommand {
			s.log.Debugw("write to non-command channel", "channel", uint8(frame.Channel))
			return
		}
		res, err := s.engine.HandleCommand(frame.Payload)
		if err != nil {
			s.log.Warnw("rejected command", "error", err)
			return
		}
		s.log.Infow("command", "op", powerbox.FormatOpcode(res.Command.Op))
		if res.PullHistory {
			for _, f := range s.engine.Backfill() {
				send(bridge.KindNotify, powerbox.ChannelHistory, f)
			}
		}

	default:
		s.log.Debugw("unexpected frame kind from client", "kind", uint8(frame.Kind))
	}
}

// notifyLoop pushes periodic state, history, and log notifications.
func (s *Server) notifyLoop(conn *websocket.Conn, send sendFunc, done chan struct{}) {
	stateTicker := time.NewTicker(time.Duration(s.sc.Intervals.StateMs) * time.Millisecond)
	sampleTicker := time.NewTicker(time.Duration(s.sc.Intervals.SampleMs) * time.Millisecond)
	logTicker := time.NewTicker(time.Duration(s.sc.Intervals.LogMs) * time.Millisecond)
	defer stateTicker.Stop()
	defer sampleTicker.Stop()
	defer logTicker.Stop()

	for {
		select {
		case <-done:
			return

		case <-stateTicker.C:
			for _, ch := range powerbox.StateChannels() {
				payload, ok := s.engine.StateFrame(ch)
				if !ok {
					continue
				}
				if err := send(bridge.KindNotify, ch, payload); err != nil {
					return
				}
			}

		case <-sampleTicker.C:
			for _, f := range s.engine.Sample() {
				if err := send(bridge.KindNotify, powerbox.ChannelHistory, f); err != nil {
					return
				}
			}

		case <-logTicker.C:
			for _, chunk := range s.engine.NextLog() {
				if err := send(bridge.KindNotify, powerbox.ChannelLog, chunk); err != nil {
					return
				}
			}
		}
	}
}
