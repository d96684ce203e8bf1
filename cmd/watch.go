// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/egg17/powerboxctl/internal/bridge"
	"github.com/egg17/powerboxctl/internal/log"
	"github.com/egg17/powerboxctl/internal/station"
	"github.com/egg17/powerboxctl/pkg/powerbox"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Interactive dashboard for a connected station",
	Long: `Live terminal dashboard for one power station.

Shows battery, charger, inverter and system panels, a charge level
sparkline built from the telemetry history, and the debug log tail.
Keybindings toggle subsystems and adjust the charge current limit.

The connection is re-established automatically with backoff when lost;
session state is discarded on disconnect and rebuilt from the next
notifications.

Supports both serial and WebSocket connections.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// watchConnManager handles connection lifecycle and reconnection for the
// dashboard. Inbound frames feed the pump; commands go out directly.
type watchConnManager struct {
	conn     Connection
	connInfo string
	mu       sync.RWMutex
	p        *tea.Program
	pump     *station.Pump
	sess     *station.Session
	done     chan struct{}
}

func (cm *watchConnManager) getConn() Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *watchConnManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.connInfo = connInfo
}

// send writes one command frame to the current connection.
func (cm *watchConnManager) send(payload []byte) error {
	conn := cm.getConn()
	if conn == nil {
		return fmt.Errorf("connection lost")
	}
	return sendCommand(conn, payload)
}

func runWatch(cmd *cobra.Command, args []string) error {
	// Open initial connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	session := station.NewSession(log.GetSugaredLogger())
	pump := station.NewPump(session, log.GetSugaredLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pump.Run(ctx)

	cm := &watchConnManager{
		conn:     conn,
		connInfo: connInfo,
		pump:     pump,
		sess:     session,
		done:     make(chan struct{}),
	}

	m := initialWatchModel(cm, session, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen())
	cm.p = p

	go cm.readerLoop()

	// Prime the session: identification reads plus a history backfill
	cm.requestStartupData()

	if _, err := p.Run(); err != nil {
		close(cm.done)
		cm.getConn().Close()
		return fmt.Errorf("TUI error: %v", err)
	}

	close(cm.done)
	cm.getConn().Close()
	return nil
}

// requestStartupData issues the device information reads and asks for a
// history backfill. Responses land through the normal pump path.
func (cm *watchConnManager) requestStartupData() {
	conn := cm.getConn()
	if conn == nil {
		return
	}
	for _, ch := range []powerbox.Channel{
		powerbox.ChannelManufacturerName,
		powerbox.ChannelModelNumber,
		powerbox.ChannelFirmwareRevision,
	} {
		writeFrame(conn, bridge.KindReadRequest, ch, nil)
	}
	sendCommand(conn, powerbox.NewPullHistoryCommand())
}

// readerLoop handles reading from the connection with automatic reconnection
func (cm *watchConnManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		connLost := cm.readFromConnection()

		if connLost {
			cm.p.Send(connectionLostMsg{})

			if !cm.reconnect() {
				return // Shutdown requested during reconnect
			}
		}
	}
}

// readFromConnection decodes frames off the connection and feeds the pump
// until the connection fails. Returns true if the connection was lost,
// false if shutdown was requested.
func (cm *watchConnManager) readFromConnection() bool {
	decoder := bridge.NewDecoder()
	buf := make([]byte, 128)

	for {
		select {
		case <-cm.done:
			return false
		default:
		}

		conn := cm.getConn()
		if conn == nil {
			return true
		}

		n, err := conn.Read(buf)
		if err != nil {
			select {
			case <-cm.done:
				return false
			default:
				if err == ErrConnectionClosed {
					return true
				}
				// Brief pause before retry on transient errors (e.g., serial)
				time.Sleep(10 * time.Millisecond)
				continue
			}
		}

		for i := 0; i < n; i++ {
			frame, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				cm.p.Send(watchEventMsg{text: fmt.Sprintf("Decode error: %v", decodeErr), isError: true})
				continue
			}
			if frame == nil || !frame.Kind.Inbound() {
				continue
			}
			cm.pump.Offer(frame.Channel, frame.Payload)
		}
	}
}

// reconnect attempts to reconnect with exponential backoff.
// Returns false if shutdown was requested during reconnection.
func (cm *watchConnManager) reconnect() bool {
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}

	// Session state belongs to the dead connection; the next one rebuilds
	// it from fresh notifications and the startup reads.
	cm.sess.Reset()

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := OpenConnection()
		if err == nil {
			cm.setConn(conn, connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			cm.requestStartupData()
			return true
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
