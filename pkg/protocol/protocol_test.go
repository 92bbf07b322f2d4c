package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	t.Run("STATUS Command", func(t *testing.T) {
		cmd, err := ParseCommand("STATUS")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if cmd.Type != CmdStatus {
			t.Errorf("Expected type STATUS, got %s", cmd.Type)
		}
		if len(cmd.Args) != 0 {
			t.Errorf("Expected no args for STATUS, got %d", len(cmd.Args))
		}
	})

	t.Run("FREQUENCY Command", func(t *testing.T) {
		for _, text := range []string{"FREQUENCY 7074000", "FREQUENCY:7074000", "frequency  '7074000'"} {
			cmd, err := ParseCommand(text)
			if err != nil {
				t.Fatalf("Expected no error for %q, got: %v", text, err)
			}
			if cmd.Type != CmdFrequency {
				t.Errorf("Expected type FREQUENCY, got %s", cmd.Type)
			}
			if cmd.Arg("frequency") != "7074000" {
				t.Errorf("Expected frequency 7074000 from %q, got %v", text, cmd.Args["frequency"])
			}
		}
	})

	t.Run("Named Arguments", func(t *testing.T) {
		cases := []struct {
			text, name, value string
		}{
			{"VFO B", "vfo", "B"},
			{"SIDEBAND toggle", "sideband", "toggle"},
			{"STEP 3", "step", "3"},
			{"HISTORY 20", "limit", "20"},
			{"TURN -5", "steps", "-5"},
		}
		for _, c := range cases {
			t.Run(c.text, func(t *testing.T) {
				cmd, err := ParseCommand(c.text)
				if err != nil {
					t.Fatalf("Expected no error, got: %v", err)
				}
				if got := cmd.Arg(c.name); got != c.value {
					t.Errorf("Expected %s=%s, got %q", c.name, c.value, got)
				}
			})
		}
	})

	t.Run("Extra Arguments Kept", func(t *testing.T) {
		cmd, err := ParseCommand("STEP 3 4")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		extra, ok := cmd.Args["extra"].([]string)
		if !ok || len(extra) != 1 || extra[0] != "4" {
			t.Errorf("Expected extra [4], got %v", cmd.Args["extra"])
		}
	})

	t.Run("Simple Commands", func(t *testing.T) {
		for _, cmdText := range []string{"QUIT", "PING", "SAVE", "STATUS"} {
			t.Run(cmdText, func(t *testing.T) {
				cmd, err := ParseCommand(cmdText)
				if err != nil {
					t.Fatalf("Expected no error for %s, got: %v", cmdText, err)
				}
				if cmd.Type != cmdText {
					t.Errorf("Expected type %s, got %s", cmdText, cmd.Type)
				}
				if len(cmd.Args) != 0 {
					t.Errorf("Expected no args for %s, got %d", cmdText, len(cmd.Args))
				}
			})
		}
	})

	t.Run("Case Insensitive", func(t *testing.T) {
		cmd, err := ParseCommand("ping")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if cmd.Type != CmdPing {
			t.Errorf("Expected uppercase PING, got %s", cmd.Type)
		}
	})

	t.Run("Unknown Command", func(t *testing.T) {
		cmd, err := ParseCommand("UNKNOWN test")
		if err != nil {
			t.Fatalf("Expected no error for unknown command, got: %v", err)
		}
		if cmd.Type != "UNKNOWN" || cmd.Arg("arg") != "test" {
			t.Errorf("Unexpected parse: %+v", cmd)
		}
	})

	t.Run("Empty Command", func(t *testing.T) {
		for _, text := range []string{"", "   "} {
			if _, err := ParseCommand(text); !errors.Is(err, ErrEmptyCommand) {
				t.Errorf("Expected ErrEmptyCommand for %q, got %v", text, err)
			}
		}
	})

	t.Run("Unterminated Quote", func(t *testing.T) {
		if _, err := ParseCommand(`FREQUENCY "7074000`); err == nil {
			t.Error("Expected error for unterminated quote, got nil")
		}
	})
}

func TestResponse(t *testing.T) {
	t.Run("Success Response", func(t *testing.T) {
		resp := NewSuccessResponse(map[string]interface{}{"pong": true})
		text := resp.String()
		if strings.Contains(text, "\n") {
			t.Errorf("Response must be a single line, got %q", text)
		}

		var back Response
		if err := json.Unmarshal([]byte(text), &back); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if !back.Success || back.Data["pong"] != true {
			t.Errorf("Unexpected response: %+v", back)
		}
		if strings.Contains(text, "error") {
			t.Errorf("Expected error field to be omitted, got %s", text)
		}
	})

	t.Run("Error Response", func(t *testing.T) {
		resp := NewErrorResponse("invalid step: 9")
		if resp.Success {
			t.Error("Expected Success false")
		}
		if !strings.Contains(resp.String(), `"error":"invalid step: 9"`) {
			t.Errorf("Unexpected JSON: %s", resp.String())
		}
	})

	t.Run("Decode Status", func(t *testing.T) {
		status := Status{
			ActiveVFO: "B",
			Frequency: 14267000,
			Sideband:  "USB",
			VFOs:      []VFO{{Name: "A", Frequency: 3699000}, {Name: "B", Frequency: 14267000}},
		}
		resp := NewSuccessResponse(map[string]interface{}{"status": status})

		// what a client sees after the wire
		var wire Response
		if err := json.Unmarshal([]byte(resp.String()), &wire); err != nil {
			t.Fatal(err)
		}

		var got Status
		if err := wire.Decode("status", &got); err != nil {
			t.Fatalf("Failed to decode status: %v", err)
		}
		if got.ActiveVFO != "B" || got.Frequency != 14267000 || len(got.VFOs) != 2 {
			t.Errorf("Unexpected status: %+v", got)
		}

		if err := wire.Decode("missing", &got); err == nil {
			t.Error("Expected error for missing key")
		}
	})
}
