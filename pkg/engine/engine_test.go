package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/ddstune/pkg/client"
	"github.com/dougsko/ddstune/pkg/config"
	"github.com/dougsko/ddstune/pkg/input"
	"github.com/dougsko/ddstune/pkg/protocol"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Hardware.Backend = "mock"
	cfg.Hardware.Display = "buffer"
	cfg.Hardware.DDSBitDelayUs = 1
	cfg.Hardware.EEPROMPath = filepath.Join(dir, "settings.eeprom")
	cfg.Storage.DatabasePath = filepath.Join(dir, "journal.db")
	cfg.Tuner.PollInterval = 5
	return cfg
}

// socketPath keeps unix socket paths short
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "ddst")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "e.sock")
}

func startEngine(t *testing.T, cfg *config.Config) (*CoreEngine, *client.SocketClient) {
	t.Helper()
	path := socketPath(t)
	e := NewCoreEngine(cfg, path)
	require.NoError(t, e.Start())
	t.Cleanup(func() { e.Stop() })
	return e, client.NewSocketClient(path)
}

func TestNewCoreEngine(t *testing.T) {
	cfg := testConfig(t)
	e := NewCoreEngine(cfg, "/tmp/unused.sock")

	assert.Equal(t, cfg, e.config)
	assert.NotNil(t, e.hardwareManager)
	assert.Equal(t, "mock", e.hardwareManager.GetConfig().Backend)
	assert.Equal(t, 22, e.hardwareManager.GetConfig().Pins.Button)

	resp := e.HandleCommand(&protocol.Command{Type: protocol.CmdStatus})
	assert.False(t, resp.Success)
	assert.Equal(t, ErrNotRunning.Error(), resp.Error)
}

func TestEngineCommands(t *testing.T) {
	cfg := testConfig(t)
	e, c := startEngine(t, cfg)

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, c.Ping())
		assert.True(t, c.IsConnected())
	})

	t.Run("Startup Status", func(t *testing.T) {
		status, err := c.GetStatus()
		require.NoError(t, err)
		assert.Equal(t, "A", status.ActiveVFO)
		assert.Equal(t, int64(3699000), status.Frequency)
		assert.Equal(t, "LSB", status.Sideband)
		assert.Equal(t, "100 Hz", status.StepLabel)
		assert.Equal(t, "normal", status.Mode)
		assert.Equal(t, "low", status.Band)
		assert.Equal(t, "mock", status.Backend)
		assert.Len(t, status.VFOs, 2)
		assert.Equal(t, " 3.699.00 L VFOA", e.Screen()[0])
	})

	t.Run("Frequency", func(t *testing.T) {
		status, err := c.SetFrequency(14074000)
		require.NoError(t, err)
		assert.Equal(t, int64(14074000), status.Frequency)
		assert.Equal(t, "high", status.Band)

		status, err = c.SetFrequency(50000000)
		require.NoError(t, err)
		assert.Equal(t, int64(20000000), status.Frequency, "clamped to the receive range")

		for _, hz := range []int64{-5, 0, 99999} {
			status, err = c.SetFrequency(hz)
			require.NoError(t, err, "frequency %d", hz)
			assert.Equal(t, int64(100000), status.Frequency)
		}
		for _, hz := range []int64{20000001, 99999999999, 1 << 40} {
			status, err = c.SetFrequency(hz)
			require.NoError(t, err, "frequency %d", hz)
			assert.Equal(t, int64(20000000), status.Frequency)
		}

		resp, err := c.SendCommand("FREQUENCY abc")
		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "invalid argument")
	})

	t.Run("VFO And Sideband", func(t *testing.T) {
		status, err := c.SelectVFO("b")
		require.NoError(t, err)
		assert.Equal(t, "B", status.ActiveVFO)
		assert.Equal(t, int64(14267000), status.Frequency)
		assert.Equal(t, "14.267.00 U VFOB", e.Screen()[0])

		status, err = c.SetSideband("toggle")
		require.NoError(t, err)
		assert.Equal(t, "LSB", status.Sideband)

		status, err = c.SetSideband("USB")
		require.NoError(t, err)
		assert.Equal(t, "USB", status.Sideband)

		_, err = c.SelectVFO("C")
		assert.Error(t, err)
		_, err = c.SetSideband("AM")
		assert.Error(t, err)
	})

	t.Run("Step", func(t *testing.T) {
		status, err := c.SetStep(4)
		require.NoError(t, err)
		assert.Equal(t, 4, status.Step)
		assert.Equal(t, "10 kHz", status.StepLabel)

		_, err = c.SetStep(7)
		assert.Error(t, err)
	})

	t.Run("Turn", func(t *testing.T) {
		before, err := c.GetStatus()
		require.NoError(t, err)

		status, err := c.Turn(1)
		require.NoError(t, err)
		assert.Equal(t, before.Frequency+10000, status.Frequency)

		status, err = c.Turn(-1)
		require.NoError(t, err)
		assert.Equal(t, before.Frequency, status.Frequency)
	})

	t.Run("Save", func(t *testing.T) {
		_, err := c.Save()
		require.NoError(t, err)
	})

	t.Run("History", func(t *testing.T) {
		var entries []protocolEntry
		require.Eventually(t, func() bool {
			got, err := c.GetHistory(100)
			if err != nil {
				return false
			}
			entries = entries[:0]
			for _, en := range got {
				entries = append(entries, protocolEntry{en.Kind, en.Source})
			}
			return len(got) > 0 && got[0].Kind == "save"
		}, 2*time.Second, 20*time.Millisecond)

		assert.Contains(t, entries, protocolEntry{"tune", "startup"})
		assert.Contains(t, entries, protocolEntry{"tune", SourceSocket})
		assert.Contains(t, entries, protocolEntry{"tune", "encoder"})
		assert.Contains(t, entries, protocolEntry{"vfo", SourceSocket})

		resp, err := c.SendCommand("HISTORY zero")
		require.NoError(t, err)
		assert.False(t, resp.Success)
	})

	t.Run("Unknown And Quit", func(t *testing.T) {
		resp, err := c.SendCommand("TRANSMIT")
		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "unknown command")

		resp, err = c.SendCommand("QUIT")
		require.NoError(t, err)
		assert.True(t, resp.Success)
	})
}

type protocolEntry struct {
	kind, source string
}

func TestEngineRestoresSavedSettings(t *testing.T) {
	cfg := testConfig(t)

	e, c := startEngine(t, cfg)
	_, err := c.SelectVFO("B")
	require.NoError(t, err)
	_, err = c.SetFrequency(7074000)
	require.NoError(t, err)
	_, err = c.Save()
	require.NoError(t, err)
	// unsaved change is lost
	_, err = c.SetFrequency(7100000)
	require.NoError(t, err)
	require.NoError(t, e.Stop())

	_, c = startEngine(t, cfg)
	status, err := c.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "B", status.ActiveVFO)
	assert.Equal(t, int64(7074000), status.Frequency)
}

func TestEngineWithoutJournal(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	cfg.Storage.DatabasePath = filepath.Join(blocker, "journal.db")

	e, c := startEngine(t, cfg)
	assert.Nil(t, e.Journal())

	_, err := c.GetHistory(5)
	assert.Error(t, err)

	// tuning still works
	status, err := c.SetFrequency(3573000)
	require.NoError(t, err)
	assert.Equal(t, int64(3573000), status.Frequency)
}

func TestEngineSubscribe(t *testing.T) {
	e, c := startEngine(t, testConfig(t))

	events, unsubscribe := e.Subscribe()
	defer unsubscribe()

	_, err := c.SetStep(3)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, "step", string(ev.Kind))
		assert.Equal(t, SourceSocket, ev.Source)
		assert.Equal(t, 3, ev.Status.Active().Step)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestRequestTimeoutCoversLongPress(t *testing.T) {
	cfg := testConfig(t)
	e := NewCoreEngine(cfg, "/tmp/unused.sock")

	longPress := time.Duration(cfg.Tuner.LongPressTicks) * input.ButtonTick
	assert.Greater(t, e.requestTimeout(), longPress)
	assert.Less(t, e.requestTimeout(), client.DefaultTimeout)

	cfg.Tuner.LongPressTicks = 100
	assert.Greater(t, e.requestTimeout(), 10*time.Second)
}
