// Package ui implements the front panel: one rotary encoder with a push
// button, a 16x2 display and the signal meter.
//
// All tuning state is owned by the goroutine that calls Tick (normally
// through Run). Remote changes are queued to that goroutine.
package ui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dougsko/ddstune/pkg/freq"
	"github.com/dougsko/ddstune/pkg/input"
	"github.com/dougsko/ddstune/pkg/lcd"
	"github.com/dougsko/ddstune/pkg/logging"
	"github.com/dougsko/ddstune/pkg/settings"
)

// Mode is the front panel state
type Mode int

const (
	// Normal: turning tunes, pressing selects VFO or saves
	Normal Mode = iota
	// Held: the button is down and turning selects the step
	Held
)

// String returns string representation of the mode
func (m Mode) String() string {
	if m == Held {
		return "held"
	}
	return "normal"
}

var (
	ErrInvalidVFO  = errors.New("invalid VFO")
	ErrInvalidStep = errors.New("invalid step")
)

// Tuner applies a receive frequency and returns the value actually used
type Tuner interface {
	SetFrequency(rx freq.Hz, sb freq.Sideband) (freq.Hz, error)
}

// Encoder yields net rotation since the last poll
type Encoder interface {
	Poll() int
}

// Button classifies presses
type Button interface {
	Down() bool
	Classify(budget int) input.ButtonResult
	WaitRelease()
}

// Meter reads the signal strength
type Meter interface {
	Read() (uint8, error)
}

// Store persists settings
type Store interface {
	Save(s settings.Settings) error
}

// Config holds the front panel tunables
type Config struct {
	// StepThreshold is the net rotation needed in Held mode to move one
	// step-table entry
	StepThreshold int
	// LongPressTicks is the long press budget in button ticks
	LongPressTicks int
	PollInterval   time.Duration
	// FloorHz is the lowest frequency a downward step may reach
	FloorHz freq.Hz
}

// DefaultConfig returns the stock front panel tuning
func DefaultConfig() Config {
	return Config{
		StepThreshold:  5,
		LongPressTicks: 50,
		PollInterval:   10 * time.Millisecond,
		FloorHz:        freq.MinHz,
	}
}

// Components are the collaborators of the front panel
type Components struct {
	Display lcd.Display
	Tuner   Tuner
	Encoder Encoder
	Button  Button
	Meter   Meter
	Store   Store
}

// EventKind names what changed
type EventKind string

const (
	EventTune     EventKind = "tune"
	EventVFO      EventKind = "vfo"
	EventSideband EventKind = "sideband"
	EventStep     EventKind = "step"
	EventSave     EventKind = "save"
	EventMode     EventKind = "mode"
)

// Sources of changes
const (
	SourceEncoder = "encoder"
	SourceButton  = "button"
	SourceStartup = "startup"
)

// Status is a snapshot of the front panel
type Status struct {
	Mode       Mode
	ActiveVFO  int
	GlobalStep int
	VFOs       [settings.NumVFOs]settings.VFO
	Meter      uint8
}

// Active returns the selected VFO
func (s Status) Active() settings.VFO {
	return s.VFOs[s.ActiveVFO]
}

// StepLabel returns the label of the active step
func (s Status) StepLabel() string {
	return Steps[s.Active().Step].Label
}

// Event reports a change made through the panel or a remote request
type Event struct {
	Kind   EventKind
	Source string
	Status Status
}

type request struct {
	apply func() error
	reply chan error
}

// UI is the front panel state machine
type UI struct {
	display lcd.Display
	tuner   Tuner
	encoder Encoder
	button  Button
	meter   Meter
	store   Store
	config  Config

	state       settings.Settings
	mode        Mode
	rotation    int
	smeter      uint8
	meterFailed bool

	requests chan request
	observer func(Event)

	mutex    sync.RWMutex
	snapshot Status
}

// New creates the front panel with the given initial settings
func New(c Components, config Config, initial settings.Settings) *UI {
	if config.StepThreshold < 1 {
		config.StepThreshold = DefaultConfig().StepThreshold
	}
	if config.LongPressTicks < 1 {
		config.LongPressTicks = DefaultConfig().LongPressTicks
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.FloorHz == 0 {
		config.FloorHz = freq.MinHz
	}

	u := &UI{
		display:  c.Display,
		tuner:    c.Tuner,
		encoder:  c.Encoder,
		button:   c.Button,
		meter:    c.Meter,
		store:    c.Store,
		config:   config,
		state:    initial,
		requests: make(chan request),
	}
	u.publish()
	return u
}

// SetObserver registers fn to receive every change. fn runs on the UI
// goroutine and must not block.
func (u *UI) SetObserver(fn func(Event)) {
	u.observer = fn
}

// Setup loads the meter glyphs, tunes the active VFO and draws both rows
func (u *UI) Setup() error {
	for slot, glyph := range MeterGlyphs {
		if err := u.display.UploadGlyph(glyph, slot); err != nil {
			return fmt.Errorf("failed to upload glyph %d: %w", slot, err)
		}
	}
	if err := u.display.DataMode(); err != nil {
		return fmt.Errorf("failed to select display data mode: %w", err)
	}

	u.apply(EventTune, SourceStartup)
	u.drawFrequency()
	u.drawMeter()
	return nil
}

// Run polls the panel until ctx is done. Remote requests are served
// between polls.
func (u *UI) Run(ctx context.Context) error {
	ticker := time.NewTicker(u.config.PollInterval)
	defer ticker.Stop()

	for {
		u.Tick()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-u.requests:
			req.reply <- req.apply()
		case <-ticker.C:
		}
	}
}

// Tick runs one iteration of the panel loop
func (u *UI) Tick() {
	u.drainRequests()

	switch u.mode {
	case Normal:
		u.tickNormal()
	case Held:
		u.tickHeld()
	}

	u.updateMeter()
}

func (u *UI) drainRequests() {
	for {
		select {
		case req := <-u.requests:
			req.reply <- req.apply()
		default:
			return
		}
	}
}

func (u *UI) tickNormal() {
	u.rotation += u.encoder.Poll()
	if u.rotation != 0 {
		if u.button.Down() {
			// turned while pressed: rotation carries into step selection
			u.setMode(Held)
			return
		}
		u.turned(u.rotation)
		u.rotation = 0
	}

	switch u.button.Classify(u.config.LongPressTicks) {
	case input.ShortPress:
		u.nextVFO()
	case input.LongPress:
		u.longPress()
	case input.InterruptedByEncoder:
		u.setMode(Held)
	}
}

func (u *UI) tickHeld() {
	u.rotation += u.encoder.Poll()
	if u.rotation <= -u.config.StepThreshold || u.rotation >= u.config.StepThreshold {
		v := u.state.Active()
		if u.rotation < 0 {
			v.Step--
			if v.Step < 0 {
				v.Step = settings.NumSteps - 1
			}
		} else {
			v.Step++
			if v.Step >= settings.NumSteps {
				v.Step = 0
			}
		}
		u.rotation = 0
		u.drawMeter()
		u.changed(EventStep, SourceEncoder)
	}

	if !u.button.Down() {
		u.setMode(Normal)
		u.rotation = 0
	}
}

// turned moves the active VFO one step in the direction of rotation, or
// toggles the sideband when the zero step is selected
func (u *UI) turned(rotation int) {
	v := u.state.Active()
	step := Steps[v.Step].Hz

	kind := EventTune
	switch {
	case step == 0:
		v.Sideband = v.Sideband.Toggle()
		kind = EventSideband
	case rotation < 0:
		v.Frequency -= step
		if v.Frequency < u.config.FloorHz {
			v.Frequency = u.config.FloorHz
		}
	default:
		v.Frequency += step
	}

	u.apply(kind, SourceEncoder)
	u.drawFrequency()
}

func (u *UI) nextVFO() {
	u.state.ActiveVFO = (u.state.ActiveVFO + 1) % settings.NumVFOs
	u.apply(EventVFO, SourceButton)
	u.drawFrequency()
	u.drawMeter()
}

func (u *UI) longPress() {
	u.save(SourceButton)
	u.draw(func() error {
		if err := u.display.Row2(); err != nil {
			return err
		}
		return u.display.PutString(SavedMessage)
	})
	u.button.WaitRelease()
	u.drawMeter()
}

func (u *UI) save(source string) error {
	if err := u.store.Save(u.state); err != nil {
		logging.Errorf("ui", "Failed to save settings: %v", err)
		return err
	}
	u.changed(EventSave, source)
	return nil
}

// apply tunes the active VFO and stores the frequency actually applied
func (u *UI) apply(kind EventKind, source string) {
	v := u.state.Active()
	applied, err := u.tuner.SetFrequency(v.Frequency, v.Sideband)
	if err != nil {
		logging.Errorf("ui", "Tuning failed: %v", err)
	}
	v.Frequency = applied
	u.changed(kind, source)
}

func (u *UI) setMode(m Mode) {
	if u.mode == m {
		return
	}
	u.mode = m
	u.changed(EventMode, SourceButton)
}

func (u *UI) updateMeter() {
	if u.meter == nil {
		return
	}
	reading, err := u.meter.Read()
	if err != nil {
		if !u.meterFailed {
			logging.Warnf("ui", "Signal meter unavailable: %v", err)
			u.meterFailed = true
		}
		return
	}
	u.meterFailed = false

	if reading != u.smeter {
		u.smeter = reading
		u.drawMeter()
		u.publish()
	}
}

func (u *UI) draw(fn func() error) {
	if err := fn(); err != nil {
		logging.Errorf("ui", "Display error: %v", err)
	}
}

func (u *UI) drawFrequency() {
	v := u.state.Active()
	line := FrequencyLine(v.Frequency, v.Sideband, u.state.ActiveVFO)
	u.draw(func() error {
		if err := u.display.Home(); err != nil {
			return err
		}
		return u.display.PutString(line)
	})
}

func (u *UI) drawMeter() {
	line := MeterLine(u.smeter, u.state.Active().Step)
	u.draw(func() error {
		if err := u.display.Row2(); err != nil {
			return err
		}
		return u.display.PutString(line)
	})
}

func (u *UI) publish() {
	u.mutex.Lock()
	u.snapshot = Status{
		Mode:       u.mode,
		ActiveVFO:  u.state.ActiveVFO,
		GlobalStep: u.state.GlobalStep,
		VFOs:       u.state.VFOs,
		Meter:      u.smeter,
	}
	u.mutex.Unlock()
}

func (u *UI) changed(kind EventKind, source string) {
	u.publish()
	if u.observer != nil {
		u.observer(Event{Kind: kind, Source: source, Status: u.Status()})
	}
}

// Status returns the latest snapshot. Safe from any goroutine.
func (u *UI) Status() Status {
	u.mutex.RLock()
	defer u.mutex.RUnlock()
	return u.snapshot
}

// Settings returns a copy of the persisted part of the state. Safe from
// any goroutine.
func (u *UI) Settings() settings.Settings {
	st := u.Status()
	return settings.Settings{
		ActiveVFO:  st.ActiveVFO,
		GlobalStep: st.GlobalStep,
		VFOs:       st.VFOs,
	}
}

// submit runs fn on the UI goroutine and waits for it
func (u *UI) submit(ctx context.Context, fn func() error) error {
	req := request{apply: fn, reply: make(chan error, 1)}
	select {
	case u.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetFrequency tunes the active VFO to rx
func (u *UI) SetFrequency(ctx context.Context, source string, rx freq.Hz) (Status, error) {
	err := u.submit(ctx, func() error {
		u.state.Active().Frequency = rx
		u.apply(EventTune, source)
		u.drawFrequency()
		return nil
	})
	return u.Status(), err
}

// SelectVFO makes vfo (0 or 1) active and tunes it
func (u *UI) SelectVFO(ctx context.Context, source string, vfo int) (Status, error) {
	if vfo < 0 || vfo >= settings.NumVFOs {
		return u.Status(), fmt.Errorf("%w: %d", ErrInvalidVFO, vfo)
	}
	err := u.submit(ctx, func() error {
		u.state.ActiveVFO = vfo
		u.apply(EventVFO, source)
		u.drawFrequency()
		u.drawMeter()
		return nil
	})
	return u.Status(), err
}

// SetSideband changes the sideband of the active VFO
func (u *UI) SetSideband(ctx context.Context, source string, sb freq.Sideband) (Status, error) {
	err := u.submit(ctx, func() error {
		u.state.Active().Sideband = sb
		u.apply(EventSideband, source)
		u.drawFrequency()
		return nil
	})
	return u.Status(), err
}

// ToggleSideband flips the sideband of the active VFO
func (u *UI) ToggleSideband(ctx context.Context, source string) (Status, error) {
	err := u.submit(ctx, func() error {
		v := u.state.Active()
		v.Sideband = v.Sideband.Toggle()
		u.apply(EventSideband, source)
		u.drawFrequency()
		return nil
	})
	return u.Status(), err
}

// SetStep selects step-table entry step for the active VFO
func (u *UI) SetStep(ctx context.Context, source string, step int) (Status, error) {
	if step < 0 || step >= settings.NumSteps {
		return u.Status(), fmt.Errorf("%w: %d", ErrInvalidStep, step)
	}
	err := u.submit(ctx, func() error {
		u.state.Active().Step = step
		u.drawMeter()
		u.changed(EventStep, source)
		return nil
	})
	return u.Status(), err
}

// Save persists the current settings
func (u *UI) Save(ctx context.Context, source string) (Status, error) {
	err := u.submit(ctx, func() error {
		return u.save(source)
	})
	return u.Status(), err
}
