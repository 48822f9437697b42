package model

import (
	"log/slog"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/ruteri/tee-model-workload/envelope"
)

// State is the lifecycle state of the decrypted model.
type State int

const (
	Empty State = iota
	Loaded
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Loaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// Observer is notified of manager outcomes. Implementations must not block.
// OnState is called with the manager lock held, in the order state changes
// happen, and must not call back into the manager.
type Observer interface {
	OnDecrypt(err error)
	OnPredict(p Prediction, err error)
	OnReset()
	OnState(s State)
}

type nopObserver struct{}

func (nopObserver) OnDecrypt(error)             {}
func (nopObserver) OnPredict(Prediction, error) {}
func (nopObserver) OnReset()                    {}
func (nopObserver) OnState(State)               {}

// Manager owns the single decrypted model buffer of the workload.
type Manager struct {
	mu  sync.RWMutex
	buf *memguard.LockedBuffer

	unwrapper *envelope.Unwrapper
	observer  Observer
	log       *slog.Logger
}

// NewManager creates an empty Manager decrypting models with unwrapper.
func NewManager(unwrapper *envelope.Unwrapper, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		unwrapper: unwrapper,
		observer:  nopObserver{},
		log:       log,
	}
}

// WithObserver sets the observer and returns the manager. It must be called
// before the manager is shared.
func (m *Manager) WithObserver(o Observer) *Manager {
	if o == nil {
		o = nopObserver{}
	}
	m.observer = o
	return m
}

// Decrypt recovers the model from its envelopes and loads it. On failure the
// manager keeps whatever it held before.
func (m *Manager) Decrypt(wrappedModel, wrappedDEK, swk []byte) error {
	buf, err := m.unwrapper.RecoverModel(wrappedModel, wrappedDEK, swk)
	if err == nil {
		err = m.Load(buf)
	}
	m.observer.OnDecrypt(err)
	if err != nil {
		m.log.Warn("Model decryption failed", "err", err, slog.String("code", Code(err)))
		return err
	}
	return nil
}

// Load takes ownership of buf and makes it the current model, destroying any
// previous one. The buffer is frozen read-only.
func (m *Manager) Load(buf *memguard.LockedBuffer) error {
	if buf == nil || !buf.IsAlive() || buf.Size() == 0 {
		if buf != nil && buf.IsAlive() {
			buf.Destroy()
		}
		return ErrEmptyModel
	}
	buf.Freeze()
	size := buf.Size()

	// buf may be destroyed by a concurrent Reset or Load once the lock is
	// released, so it is not touched after the swap.
	m.mu.Lock()
	previous := m.buf
	m.buf = buf
	m.observer.OnState(Loaded)
	m.mu.Unlock()

	if previous != nil {
		previous.Destroy()
		m.log.Info("Replaced loaded model", slog.Int("size", size))
	} else {
		m.log.Info("Loaded model", slog.Int("size", size))
	}
	return nil
}

// Reset destroys the loaded model. Resetting an empty manager succeeds.
func (m *Manager) Reset() error {
	m.mu.Lock()
	buf := m.buf
	m.buf = nil
	m.observer.OnState(Empty)
	m.mu.Unlock()

	if buf != nil {
		buf.Destroy()
		m.log.Info("Model reset")
	}
	m.observer.OnReset()
	return nil
}

// IsLoaded reports whether a model is loaded.
func (m *Manager) IsLoaded() bool {
	return m.State() == Loaded
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.buf == nil {
		return Empty
	}
	return Loaded
}

// Predict parses the loaded model and classifies input with it. The model is
// parsed on every call and the buffer stays read-locked until parsing ends.
func (m *Manager) Predict(input FeatureVector) (Prediction, error) {
	p, err := m.predict(input)
	m.observer.OnPredict(p, err)
	return p, err
}

func (m *Manager) predict(input FeatureVector) (Prediction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.buf == nil {
		return Negative, ErrModelNotLoaded
	}

	weights, threshold, err := Parse(m.buf.Bytes())
	if err != nil {
		return Negative, err
	}
	return Classify(input, weights, threshold), nil
}
