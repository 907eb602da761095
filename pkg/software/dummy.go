package software

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pion/logging"
)

// DummyConfig configures a Dummy.
type DummyConfig struct {
	// Config is reported by Configuration and announced through OnInitialized.
	Config Config

	// Outputs is the initial output set. Ids must be unique.
	Outputs []Output

	// LoggerFactory for creating loggers.
	LoggerFactory logging.LoggerFactory
}

// Dummy is an in-memory Software. Starting an output moves it through
// starting to active, stopping moves it through stopping to stopped, and each
// step is reported to subscribers.
type Dummy struct {
	Notifier

	mu      sync.Mutex
	config  Config
	outputs map[string]Output
	log     logging.LeveledLogger

	// stateMu is held across a state update and its notification so
	// subscribers see transitions in the order they were stored.
	stateMu sync.Mutex
}

// NewDummy creates a Dummy and announces its configuration.
func NewDummy(config DummyConfig) (*Dummy, error) {
	d := &Dummy{
		config:  config.Config,
		outputs: make(map[string]Output, len(config.Outputs)),
	}
	for _, o := range config.Outputs {
		if _, exists := d.outputs[o.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateOutput, o.ID)
		}
		d.outputs[o.ID] = o
	}

	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("software")
	}

	d.NotifyInitialized(d.config)
	return d, nil
}

// Configuration implements Software.
func (d *Dummy) Configuration() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config
}

// SetConfiguration replaces the configuration and announces it again, the way
// a settings dialog does when accepted.
func (d *Dummy) SetConfiguration(config Config) {
	d.mu.Lock()
	d.config = config
	d.mu.Unlock()

	d.NotifyInitialized(config)
}

// Outputs implements Software. The result is sorted by id.
func (d *Dummy) Outputs() []Output {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Output, 0, len(d.outputs))
	for _, o := range d.outputs {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Output returns a single output.
func (d *Dummy) Output(id string) (Output, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.outputs[id]
	return o, ok
}

// StartOutput implements Software. Unknown ids are ignored.
func (d *Dummy) StartOutput(id string) {
	if d.log != nil {
		d.log.Infof("Starting output %s", id)
	}
	d.setOutputState(id, OutputStateStarting)
	d.setOutputState(id, OutputStateActive)
}

// StopOutput implements Software. Unknown ids are ignored.
func (d *Dummy) StopOutput(id string) {
	if d.log != nil {
		d.log.Infof("Stopping output %s", id)
	}
	d.setOutputState(id, OutputStateStopping)
	d.setOutputState(id, OutputStateStopped)
}

// SetOutputDelay implements Software. It fails for unknown ids and negative
// delays.
func (d *Dummy) SetOutputDelay(id string, seconds int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	o, ok := d.outputs[id]
	if !ok || seconds < 0 {
		if d.log != nil {
			d.log.Warnf("Cannot set delay of output %s to %d", id, seconds)
		}
		return false
	}
	o.DelaySeconds = seconds
	d.outputs[id] = o
	return true
}

// setOutputState stores and reports a transition. Subscribers must not call
// StartOutput or StopOutput from their callback.
func (d *Dummy) setOutputState(id string, state OutputState) {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	d.mu.Lock()
	o, ok := d.outputs[id]
	if ok {
		o.State = state
		d.outputs[id] = o
	}
	d.mu.Unlock()

	if !ok {
		if d.log != nil {
			d.log.Warnf("Ignoring state change for unknown output %s", id)
		}
		return
	}
	d.NotifyOutputStateChanged(id, state)
}

var _ Software = (*Dummy)(nil)
