package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dougsko/ddstune/pkg/config"
	"github.com/dougsko/ddstune/pkg/dds"
	"github.com/dougsko/ddstune/pkg/freq"
	"github.com/dougsko/ddstune/pkg/hardware"
	"github.com/dougsko/ddstune/pkg/input"
	"github.com/dougsko/ddstune/pkg/lcd"
	"github.com/dougsko/ddstune/pkg/logging"
	"github.com/dougsko/ddstune/pkg/protocol"
	"github.com/dougsko/ddstune/pkg/radio"
	"github.com/dougsko/ddstune/pkg/settings"
	"github.com/dougsko/ddstune/pkg/storage"
	"github.com/dougsko/ddstune/pkg/ui"
)

// Version is reported in the status
const Version = "0.1.0-dev"

// SourceSocket marks changes requested through the control socket
const SourceSocket = "socket"

var (
	ErrNotRunning  = errors.New("engine not running")
	ErrNoJournal   = errors.New("tuning journal unavailable")
	ErrInvalidArgs = errors.New("invalid argument")
)

// requestSlack is how long a command waits for the front panel beyond the
// longest button gesture, which blocks the panel loop
const requestSlack = 3 * time.Second

// CoreEngine owns the tuner hardware, the front panel loop and the control
// socket
type CoreEngine struct {
	config     *config.Config
	socketPath string
	listener   net.Listener
	running    bool
	mutex      sync.RWMutex
	startTime  time.Time

	hardwareManager *hardware.HardwareManager
	tuner           *radio.Tuner
	encoder         *input.Encoder
	screen          *lcd.Buffer
	device          *settings.FileDevice
	journal         *storage.Journal
	panel           *ui.UI

	cancel    context.CancelFunc
	panelDone chan struct{}
	wg        sync.WaitGroup

	// journal writes happen off the panel goroutine
	entries chan storage.Entry

	subMutex    sync.RWMutex
	subscribers map[chan ui.Event]struct{}
}

// NewCoreEngine creates a new core engine
func NewCoreEngine(cfg *config.Config, socketPath string) *CoreEngine {
	pins := cfg.Hardware.Pins
	hardwareConfig := hardware.HardwareConfig{
		Backend: cfg.Hardware.Backend,
		Pins: hardware.PinMap{
			DDSClock:          pins.DDSClock,
			DDSData:           pins.DDSData,
			DDSFsync:          pins.DDSFsync,
			LCDRegisterSelect: pins.LCDRegisterSelect,
			LCDEnable:         pins.LCDEnable,
			LCDData:           pins.LCDData,
			EncoderPrimary:    pins.EncoderPrimary,
			EncoderSecondary:  pins.EncoderSecondary,
			Button:            pins.Button,
			BandRelay:         pins.BandRelay,
		},
		ADCPath: cfg.Hardware.ADCPath,
		ADCBits: cfg.Hardware.ADCBits,
	}

	return &CoreEngine{
		config:          cfg,
		socketPath:      socketPath,
		startTime:       time.Now(),
		hardwareManager: hardware.NewHardwareManager(hardwareConfig),
		screen:          lcd.NewBuffer(),
		subscribers:     make(map[chan ui.Event]struct{}),
	}
}

// Start brings up the hardware, restores the saved settings, starts the
// front panel and listens on the control socket
func (e *CoreEngine) Start() error {
	if err := e.hardwareManager.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize hardware manager: %w", err)
	}

	if err := e.startPanel(); err != nil {
		e.shutdown()
		return err
	}

	os.Remove(e.socketPath)
	listener, err := net.Listen("unix", e.socketPath)
	if err != nil {
		e.shutdown()
		return fmt.Errorf("failed to create Unix socket: %w", err)
	}
	if err := os.Chmod(e.socketPath, 0660); err != nil {
		logging.Warnf("engine", "Failed to set socket permissions: %v", err)
	}

	e.mutex.Lock()
	e.listener = listener
	e.running = true
	e.mutex.Unlock()

	logging.Infof("engine", "Core engine listening on %s", e.socketPath)

	e.wg.Add(1)
	go e.acceptConnections()
	return nil
}

// startPanel builds the tuning chain and runs the front panel loop
func (e *CoreEngine) startPanel() error {
	cfg := e.config
	hw := e.hardwareManager
	gpio := hw.GPIO()
	pins := hw.GetConfig().Pins

	minHz, maxHz := freq.Hz(cfg.Tuner.MinHz), freq.Hz(cfg.Tuner.MaxHz)
	model := freq.NewModelWithRange(cfg.Tuner.ReferenceClockHz, freq.Hz(cfg.Tuner.IntermediateHz), minHz, maxHz)

	bus := dds.NewBus(gpio, hw.Gate(), pins.DDSClock, pins.DDSData, pins.DDSFsync)
	bus.SetBitDelay(time.Duration(cfg.Hardware.DDSBitDelayUs) * time.Microsecond)
	e.tuner = radio.NewTuner(model, dds.NewDriver(bus), gpio, pins.BandRelay, freq.Hz(cfg.Tuner.BandThresholdHz))
	if err := e.tuner.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize DDS: %w", err)
	}

	e.encoder = input.NewEncoder(gpio, hw.Gate(), pins.EncoderPrimary, pins.EncoderSecondary)
	if err := e.encoder.Attach(); err != nil {
		return fmt.Errorf("failed to attach encoder: %w", err)
	}
	button := input.NewButton(gpio, pins.Button, e.encoder)

	var display lcd.Display = e.screen
	if cfg.Hardware.Display == "hd44780" {
		panel := lcd.NewHD44780(gpio, pins.LCDRegisterSelect, pins.LCDEnable, pins.LCDData)
		if err := panel.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize LCD: %w", err)
		}
		display = lcd.Tee(panel, e.screen)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Hardware.EEPROMPath), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	device, err := settings.OpenFileDevice(cfg.Hardware.EEPROMPath, 0)
	if err != nil {
		return err
	}
	e.device = device
	store := settings.NewStore(device, minHz, maxHz)
	initial, err := store.Load()
	if err != nil {
		logging.Warnf("engine", "Using default settings: %v", err)
	}

	journal, err := storage.NewJournal(cfg.Storage.DatabasePath, cfg.Storage.MaxEvents)
	if err != nil {
		logging.Warnf("engine", "Tuning journal disabled: %v", err)
	} else {
		e.journal = journal
		e.entries = make(chan storage.Entry, 256)
		e.wg.Add(1)
		go e.recordEntries()
	}

	e.panel = ui.New(ui.Components{
		Display: display,
		Tuner:   e.tuner,
		Encoder: e.encoder,
		Button:  button,
		Meter:   hw.ADC(),
		Store:   store,
	}, ui.Config{
		StepThreshold:  cfg.Tuner.StepThreshold,
		LongPressTicks: cfg.Tuner.LongPressTicks,
		PollInterval:   time.Duration(cfg.Tuner.PollInterval) * time.Millisecond,
		FloorHz:        minHz,
	}, initial)
	e.panel.SetObserver(e.observe)

	if err := e.panel.Setup(); err != nil {
		return fmt.Errorf("failed to set up front panel: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.panelDone = make(chan struct{})
	go func() {
		defer close(e.panelDone)
		if err := e.panel.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Errorf("engine", "Front panel stopped: %v", err)
		}
	}()

	active := initial.VFOs[initial.ActiveVFO]
	logging.Info("engine", "Front panel running", map[string]interface{}{
		"vfo":       vfoName(initial.ActiveVFO),
		"frequency": int32(active.Frequency),
		"sideband":  active.Sideband.String(),
		"display":   cfg.Hardware.Display,
	})
	return nil
}

// Stop stops the core engine
func (e *CoreEngine) Stop() error {
	e.mutex.Lock()
	e.running = false
	if e.listener != nil {
		e.listener.Close()
	}
	e.mutex.Unlock()

	e.shutdown()
	os.Remove(e.socketPath)
	return nil
}

// shutdown stops the panel and releases everything Start acquired
func (e *CoreEngine) shutdown() {
	if e.cancel != nil {
		e.cancel()
	}
	if e.panelDone != nil {
		<-e.panelDone
	}
	if e.entries != nil {
		// the panel is the only producer
		close(e.entries)
		e.entries = nil
	}
	e.wg.Wait()

	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			logging.Warnf("engine", "Error closing journal: %v", err)
		}
		e.journal = nil
	}
	if e.device != nil {
		if err := e.device.Close(); err != nil {
			logging.Warnf("engine", "Error closing settings device: %v", err)
		}
		e.device = nil
	}
	e.hardwareManager.Close()
}

func (e *CoreEngine) isRunning() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.running
}

// observe runs on the panel goroutine for every change
func (e *CoreEngine) observe(ev ui.Event) {
	if ev.Kind != ui.EventMode && e.entries != nil {
		active := ev.Status.Active()
		entry := storage.Entry{
			Timestamp: time.Now(),
			Kind:      string(ev.Kind),
			Source:    ev.Source,
			VFO:       vfoName(ev.Status.ActiveVFO),
			Frequency: int64(active.Frequency),
			Sideband:  active.Sideband.String(),
			Step:      active.Step,
			Band:      e.tuner.Band().String(),
		}
		select {
		case e.entries <- entry:
		default:
			logging.Warn("engine", "Journal queue full, dropping entry", map[string]interface{}{
				"kind": entry.Kind,
			})
		}
	}

	e.subMutex.RLock()
	for ch := range e.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
	e.subMutex.RUnlock()
}

// recordEntries writes queued journal entries until the queue is closed
func (e *CoreEngine) recordEntries() {
	defer e.wg.Done()
	for entry := range e.entries {
		if err := e.journal.Record(entry); err != nil {
			logging.Errorf("engine", "Failed to record %s: %v", entry.Kind, err)
		}
	}
}

// Subscribe returns a channel receiving every panel change and a function
// that cancels the subscription. Slow receivers miss events.
func (e *CoreEngine) Subscribe() (<-chan ui.Event, func()) {
	ch := make(chan ui.Event, 16)
	e.subMutex.Lock()
	e.subscribers[ch] = struct{}{}
	e.subMutex.Unlock()

	return ch, func() {
		e.subMutex.Lock()
		delete(e.subscribers, ch)
		e.subMutex.Unlock()
	}
}

// Screen returns the two display rows with meter glyphs made printable
func (e *CoreEngine) Screen() [lcd.Rows]string {
	return e.screen.Text()
}

// Status returns the current tuner status
func (e *CoreEngine) Status() protocol.Status {
	if e.panel == nil {
		return protocol.Status{Version: Version, StartTime: e.startTime}
	}
	return e.buildStatus(e.panel.Status())
}

func (e *CoreEngine) buildStatus(st ui.Status) protocol.Status {
	active := st.Active()
	status := protocol.Status{
		ActiveVFO:  vfoName(st.ActiveVFO),
		Frequency:  int64(active.Frequency),
		Sideband:   active.Sideband.String(),
		Step:       active.Step,
		StepLabel:  strings.TrimSpace(st.StepLabel()),
		Mode:       st.Mode.String(),
		Band:       e.tuner.Band().String(),
		Meter:      int(st.Meter),
		TuningWord: fmt.Sprintf("0x%08x", e.tuner.LastWord()),
		Backend:    e.hardwareManager.GetConfig().Backend,
		Uptime:     time.Since(e.startTime).Round(time.Second).String(),
		StartTime:  e.startTime,
		Version:    Version,
	}
	for i, v := range st.VFOs {
		status.VFOs = append(status.VFOs, protocol.VFO{
			Name:      vfoName(i),
			Frequency: int64(v.Frequency),
			Sideband:  v.Sideband.String(),
			Step:      v.Step,
			StepLabel: strings.TrimSpace(ui.Steps[v.Step].Label),
		})
	}
	return status
}

// acceptConnections accepts and handles socket connections
func (e *CoreEngine) acceptConnections() {
	defer e.wg.Done()
	for e.isRunning() {
		conn, err := e.listener.Accept()
		if err != nil {
			if e.isRunning() {
				logging.Warnf("engine", "Socket accept error: %v", err)
				continue
			}
			return
		}
		go e.handleConnection(conn)
	}
}

// handleConnection handles a single socket connection
func (e *CoreEngine) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			response := protocol.NewErrorResponse(fmt.Sprintf("parse error: %v", err))
			conn.Write([]byte(response.String() + "\n"))
			continue
		}

		response := e.HandleCommand(cmd)
		conn.Write([]byte(response.String() + "\n"))

		if cmd.Type == protocol.CmdQuit {
			break
		}
	}
}

// HandleCommand executes one parsed command
func (e *CoreEngine) HandleCommand(cmd *protocol.Command) *protocol.Response {
	logging.Debugf("engine", "Command %s %v", cmd.Type, cmd.Args)

	if e.panel == nil {
		return protocol.NewErrorResponse(ErrNotRunning.Error())
	}

	switch cmd.Type {
	case protocol.CmdStatus:
		return e.statusResponse(e.panel.Status(), nil)

	case protocol.CmdFrequency:
		return e.handleFrequency(cmd)

	case protocol.CmdVFO:
		return e.handleVFO(cmd)

	case protocol.CmdSideband:
		return e.handleSideband(cmd)

	case protocol.CmdStep:
		return e.handleStep(cmd)

	case protocol.CmdSave:
		ctx, cancel := context.WithTimeout(context.Background(), e.requestTimeout())
		defer cancel()
		return e.statusResponse(e.panel.Save(ctx, SourceSocket))

	case protocol.CmdHistory:
		return e.handleHistory(cmd)

	case protocol.CmdTurn:
		return e.handleTurn(cmd)

	case protocol.CmdPing:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"pong": time.Now().Unix(),
		})

	case protocol.CmdQuit:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"message": "goodbye",
		})

	default:
		return protocol.NewErrorResponse(fmt.Sprintf("unknown command: %s", cmd.Type))
	}
}

func (e *CoreEngine) statusResponse(st ui.Status, err error) *protocol.Response {
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"status": e.buildStatus(st),
		"screen": e.Screen(),
	})
}

func (e *CoreEngine) intArg(cmd *protocol.Command, name string) (int64, error) {
	raw := cmd.Arg(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s required", ErrInvalidArgs, name)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidArgs, name, raw)
	}
	return n, nil
}

func (e *CoreEngine) handleFrequency(cmd *protocol.Command) *protocol.Response {
	hz, err := e.intArg(cmd, "frequency")
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.requestTimeout())
	defer cancel()
	return e.statusResponse(e.panel.SetFrequency(ctx, SourceSocket, e.saturate(hz)))
}

// saturate limits hz to the receive range before it narrows to freq.Hz
func (e *CoreEngine) saturate(hz int64) freq.Hz {
	lo, hi := int64(e.config.Tuner.MinHz), int64(e.config.Tuner.MaxHz)
	if hz < lo {
		return freq.Hz(lo)
	}
	if hz > hi {
		return freq.Hz(hi)
	}
	return freq.Hz(hz)
}

func (e *CoreEngine) handleVFO(cmd *protocol.Command) *protocol.Response {
	vfo, err := parseVFO(cmd.Arg("vfo"))
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.requestTimeout())
	defer cancel()
	return e.statusResponse(e.panel.SelectVFO(ctx, SourceSocket, vfo))
}

func (e *CoreEngine) handleSideband(cmd *protocol.Command) *protocol.Response {
	arg := strings.ToUpper(cmd.Arg("sideband"))

	ctx, cancel := context.WithTimeout(context.Background(), e.requestTimeout())
	defer cancel()

	if arg == "TOGGLE" {
		return e.statusResponse(e.panel.ToggleSideband(ctx, SourceSocket))
	}
	sb, err := freq.ParseSideband(arg)
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	return e.statusResponse(e.panel.SetSideband(ctx, SourceSocket, sb))
}

func (e *CoreEngine) handleStep(cmd *protocol.Command) *protocol.Response {
	step, err := e.intArg(cmd, "step")
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.requestTimeout())
	defer cancel()
	return e.statusResponse(e.panel.SetStep(ctx, SourceSocket, int(step)))
}

func (e *CoreEngine) handleHistory(cmd *protocol.Command) *protocol.Response {
	if e.journal == nil {
		return protocol.NewErrorResponse(ErrNoJournal.Error())
	}

	limit := int64(20)
	if cmd.Arg("limit") != "" {
		n, err := e.intArg(cmd, "limit")
		if err != nil || n < 1 {
			return protocol.NewErrorResponse(fmt.Sprintf("%v: limit %q", ErrInvalidArgs, cmd.Arg("limit")))
		}
		limit = n
	}

	entries, err := e.journal.Recent(int(limit))
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	if entries == nil {
		entries = []storage.Entry{}
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleTurn drives the mock encoder and waits for the panel to react
func (e *CoreEngine) handleTurn(cmd *protocol.Command) *protocol.Response {
	steps, err := e.intArg(cmd, "steps")
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}

	events, unsubscribe := e.Subscribe()
	defer unsubscribe()

	if err := e.hardwareManager.SimulateTurn(int(steps)); err != nil {
		return protocol.NewErrorResponse(err.Error())
	}

	if steps != 0 {
		timeout := time.After(time.Second)
	wait:
		for {
			select {
			case ev := <-events:
				if ev.Source == ui.SourceEncoder {
					break wait
				}
			case <-timeout:
				break wait
			}
		}
	}
	return e.statusResponse(e.panel.Status(), nil)
}

// requestTimeout covers a full long press on the front panel plus slack
func (e *CoreEngine) requestTimeout() time.Duration {
	return time.Duration(e.config.Tuner.LongPressTicks)*input.ButtonTick + requestSlack
}

// Journal returns the tuning journal, or nil when it is disabled
func (e *CoreEngine) Journal() *storage.Journal {
	return e.journal
}

// GetHardwareManager returns the hardware manager
func (e *CoreEngine) GetHardwareManager() *hardware.HardwareManager {
	return e.hardwareManager
}

func vfoName(i int) string {
	return string(rune('A' + i))
}

func parseVFO(s string) (int, error) {
	switch strings.ToUpper(s) {
	case "A", "0":
		return 0, nil
	case "B", "1":
		return 1, nil
	}
	return 0, fmt.Errorf("%w: %q", ui.ErrInvalidVFO, s)
}
