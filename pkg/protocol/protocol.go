package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/shlex"
)

// Command represents a command sent to the core engine
type Command struct {
	Type string                 `json:"type"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// Response represents a response from the core engine
type Response struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// VFO is the wire form of one VFO
type VFO struct {
	Name      string `json:"name"`
	Frequency int64  `json:"frequency"`
	Sideband  string `json:"sideband"`
	Step      int    `json:"step"`
	StepLabel string `json:"step_label"`
}

// Status represents the current tuner status
type Status struct {
	ActiveVFO  string    `json:"active_vfo"`
	Frequency  int64     `json:"frequency"`
	Sideband   string    `json:"sideband"`
	Step       int       `json:"step"`
	StepLabel  string    `json:"step_label"`
	Mode       string    `json:"mode"`
	Band       string    `json:"band"`
	Meter      int       `json:"meter"`
	TuningWord string    `json:"tuning_word"`
	VFOs       []VFO     `json:"vfos"`
	Backend    string    `json:"backend"`
	Uptime     string    `json:"uptime"`
	StartTime  time.Time `json:"start_time"`
	Version    string    `json:"version"`
}

// ErrEmptyCommand is returned for a blank line
var ErrEmptyCommand = errors.New("empty command")

// Protocol commands
const (
	CmdStatus    = "STATUS"
	CmdFrequency = "FREQUENCY"
	CmdVFO       = "VFO"
	CmdSideband  = "SIDEBAND"
	CmdStep      = "STEP"
	CmdSave      = "SAVE"
	CmdHistory   = "HISTORY"
	CmdTurn      = "TURN"
	CmdPing      = "PING"
	CmdQuit      = "QUIT"
)

// argument names per command
var argNames = map[string]string{
	CmdFrequency: "frequency",
	CmdVFO:       "vfo",
	CmdSideband:  "sideband",
	CmdStep:      "step",
	CmdHistory:   "limit",
	CmdTurn:      "steps",
}

// ParseCommand parses a text command into a Command struct. Arguments are
// separated by whitespace with shell quoting rules; the older TYPE:arg form
// is accepted as well, e.g. "FREQUENCY 7074000" and "FREQUENCY:7074000".
func ParseCommand(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyCommand
	}

	words, err := shlex.Split(text)
	if err != nil {
		return nil, fmt.Errorf("malformed command: %w", err)
	}
	if len(words) == 0 {
		return nil, ErrEmptyCommand
	}

	if head, arg, found := strings.Cut(words[0], ":"); found {
		words = append([]string{head, arg}, words[1:]...)
	}

	cmd := &Command{
		Type: strings.ToUpper(words[0]),
		Args: make(map[string]interface{}),
	}

	args := words[1:]
	if len(args) == 0 {
		return cmd, nil
	}

	name, ok := argNames[cmd.Type]
	if !ok {
		name = "arg"
	}
	cmd.Args[name] = args[0]
	if len(args) > 1 {
		cmd.Args["extra"] = args[1:]
	}
	return cmd, nil
}

// Arg returns the named argument as a string, or "" when absent
func (c *Command) Arg(name string) string {
	if v, ok := c.Args[name].(string); ok {
		return v
	}
	return ""
}

// String converts a Response to a JSON string
func (r *Response) String() string {
	data, _ := json.Marshal(r)
	return string(data)
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data map[string]interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

// Decode converts the value stored under key in the response data into v
func (r *Response) Decode(key string, v interface{}) error {
	value, ok := r.Data[key]
	if !ok {
		return fmt.Errorf("%s not found in response", key)
	}
	// round trip through JSON to get typed values back from the generic map
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
