package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/dougsko/ddstune/pkg/protocol"
	"github.com/dougsko/ddstune/pkg/storage"
)

// SocketClient represents a client connection to the core engine
type SocketClient struct {
	socketPath string
	timeout    time.Duration
}

// DefaultTimeout outlasts the engine's wait for a front panel busy with a
// long press
const DefaultTimeout = 10 * time.Second

// NewSocketClient creates a new socket client
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{
		socketPath: socketPath,
		timeout:    DefaultTimeout,
	}
}

// SetTimeout changes the per-command timeout
func (c *SocketClient) SetTimeout(d time.Duration) {
	c.timeout = d
}

// SendCommand sends a command and returns the response
func (c *SocketClient) SendCommand(cmd string) (*protocol.Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return nil, fmt.Errorf("send error: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return nil, fmt.Errorf("no response received")
	}

	var response protocol.Response
	if err := json.Unmarshal(scanner.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return &response, nil
}

// statusCommand sends cmd and decodes the status it returns
func (c *SocketClient) statusCommand(what, cmd string) (*protocol.Status, error) {
	resp, err := c.SendCommand(cmd)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%s error: %s", what, resp.Error)
	}

	var status protocol.Status
	if err := resp.Decode("status", &status); err != nil {
		return nil, fmt.Errorf("failed to parse status: %w", err)
	}
	return &status, nil
}

// GetStatus gets the current tuner status
func (c *SocketClient) GetStatus() (*protocol.Status, error) {
	return c.statusCommand("status", protocol.CmdStatus)
}

// SetFrequency tunes the active VFO
func (c *SocketClient) SetFrequency(hz int64) (*protocol.Status, error) {
	return c.statusCommand("frequency", fmt.Sprintf("%s %d", protocol.CmdFrequency, hz))
}

// SelectVFO makes VFO "A" or "B" active
func (c *SocketClient) SelectVFO(vfo string) (*protocol.Status, error) {
	return c.statusCommand("vfo", fmt.Sprintf("%s %s", protocol.CmdVFO, strings.ToUpper(vfo)))
}

// SetSideband sets "LSB", "USB" or "TOGGLE" on the active VFO
func (c *SocketClient) SetSideband(sideband string) (*protocol.Status, error) {
	return c.statusCommand("sideband", fmt.Sprintf("%s %s", protocol.CmdSideband, strings.ToUpper(sideband)))
}

// SetStep selects a step-table entry for the active VFO
func (c *SocketClient) SetStep(step int) (*protocol.Status, error) {
	return c.statusCommand("step", fmt.Sprintf("%s %d", protocol.CmdStep, step))
}

// Save persists the current settings
func (c *SocketClient) Save() (*protocol.Status, error) {
	return c.statusCommand("save", protocol.CmdSave)
}

// Turn simulates encoder detents on a mock backend
func (c *SocketClient) Turn(steps int) (*protocol.Status, error) {
	return c.statusCommand("turn", fmt.Sprintf("%s %d", protocol.CmdTurn, steps))
}

// GetHistory gets recent journal entries
func (c *SocketClient) GetHistory(limit int) ([]storage.Entry, error) {
	cmd := protocol.CmdHistory
	if limit > 0 {
		cmd = fmt.Sprintf("%s %d", protocol.CmdHistory, limit)
	}

	resp, err := c.SendCommand(cmd)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("history error: %s", resp.Error)
	}

	if _, ok := resp.Data["entries"]; !ok {
		return []storage.Entry{}, nil
	}
	var entries []storage.Entry
	if err := resp.Decode("entries", &entries); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	return entries, nil
}

// Ping tests the connection
func (c *SocketClient) Ping() error {
	resp, err := c.SendCommand(protocol.CmdPing)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("ping error: %s", resp.Error)
	}
	return nil
}

// IsConnected tests if the daemon is reachable
func (c *SocketClient) IsConnected() bool {
	return c.Ping() == nil
}
