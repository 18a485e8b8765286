// Package session keeps the registry of live widget instances hosted by the
// server. Each instance pairs a widget controller with the event hub it
// renders into.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/imagedrop/backend/internal/events"
	"github.com/imagedrop/backend/internal/logging"
	"github.com/imagedrop/backend/internal/models"
	"github.com/imagedrop/backend/internal/widget"
)

// DefaultMaxSessions limits concurrent widget instances when Options leaves
// it unset.
const DefaultMaxSessions = 100

// SessionKeepAliveWindow protects instances with a live websocket from idle
// cleanup for this long after their last access.
const SessionKeepAliveWindow = 5 * time.Minute

// ErrTooManySessions is returned by Create when the registry is full and no
// idle instance can be evicted.
var ErrTooManySessions = errors.New("too many widget sessions")

// UploadFactory returns the upload hook for a new widget instance.
type UploadFactory func(widgetID string) widget.UploadFunc

// Options configures a Manager.
type Options struct {
	MaxSessions int
	// Upload builds the upload hook of each instance. Nil leaves instances
	// without an upload hook, which makes Upload a no-op.
	Upload UploadFactory
	Logger logging.Logger
}

// Instance is one live widget.
type Instance struct {
	ID         string
	Preset     string
	CreatedAt  time.Time
	Controller *widget.Controller
	Hub        *events.Hub

	lastAccessed time.Time
}

// Manager handles live widget instances.
type Manager struct {
	sessions map[string]*Instance
	mu       sync.RWMutex
	opts     Options
	log      logging.Logger
	now      func() time.Time
	// reserved counts slots claimed by Create calls still building their
	// instance.
	reserved int
}

// NewManager creates a widget session manager.
func NewManager(opts Options) *Manager {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Manager{
		sessions: make(map[string]*Instance),
		opts:     opts,
		log:      opts.Logger.With("component", "session"),
		now:      time.Now,
	}
}

// Create builds a new widget instance from cfg. Hooks in cfg are replaced by
// hub-publishing hooks around the manager's upload factory.
func (m *Manager) Create(preset string, cfg widget.Config) (*Instance, error) {
	if !m.reserveSlot() {
		return nil, ErrTooManySessions
	}

	id := uuid.New().String()
	hub := events.NewHub(id, m.opts.Logger)

	var upload widget.UploadFunc
	if m.opts.Upload != nil {
		upload = m.opts.Upload(id)
	}
	cfg.Hooks = hub.Hooks(upload)
	cfg.Logger = m.opts.Logger.With("component", "widget", "widget", id)

	ctrl, err := widget.New(hub, cfg)
	if err != nil {
		m.mu.Lock()
		m.reserved--
		m.mu.Unlock()
		return nil, err
	}

	now := m.now()
	inst := &Instance{
		ID:           id,
		Preset:       preset,
		CreatedAt:    now,
		Controller:   ctrl,
		Hub:          hub,
		lastAccessed: now,
	}

	m.mu.Lock()
	m.reserved--
	m.sessions[id] = inst
	m.mu.Unlock()

	m.log.Info(context.Background(), "widget created", "widget", id, "preset", preset)
	return inst, nil
}

// Get returns an instance by ID and marks it as accessed.
func (m *Manager) Get(id string) (*Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	inst.lastAccessed = m.now()
	return inst, true
}

// Touch updates the LastAccessed timestamp of an instance.
func (m *Manager) Touch(id string) bool {
	_, ok := m.Get(id)
	return ok
}

// Describe returns the metadata of an instance.
func (m *Manager) Describe(id string) (models.WidgetSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.sessions[id]
	if !ok {
		return models.WidgetSession{}, false
	}
	return describe(inst), true
}

// List returns the metadata of every instance, newest first.
func (m *Manager) List() []models.WidgetSession {
	m.mu.RLock()
	list := make([]models.WidgetSession, 0, len(m.sessions))
	for _, inst := range m.sessions {
		list = append(list, describe(inst))
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}

// Len returns the number of live instances.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Destroy tears an instance down and forgets it.
func (m *Manager) Destroy(id string) bool {
	m.mu.Lock()
	inst, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	inst.Controller.Destroy()
	m.log.Info(context.Background(), "widget destroyed", "widget", id)
	return true
}

// CleanupOldSessions destroys instances not accessed within maxAge. Instances
// that are uploading, or that have a subscriber and were accessed within
// SessionKeepAliveWindow, are kept.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	now := m.now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-SessionKeepAliveWindow)

	m.mu.Lock()
	var expired []*Instance
	for id, inst := range m.sessions {
		if !inst.lastAccessed.Before(cutoff) {
			continue
		}
		if inst.Controller.State() == models.UploadStateUploading {
			continue
		}
		if inst.Hub.Subscribers() > 0 && inst.lastAccessed.After(keepAliveCutoff) {
			continue
		}
		delete(m.sessions, id)
		expired = append(expired, inst)
	}
	m.mu.Unlock()

	for _, inst := range expired {
		inst.Controller.Destroy()
		m.log.Info(context.Background(), "cleaned up idle widget", "widget", inst.ID,
			"idle", now.Sub(inst.lastAccessed).Round(time.Second))
	}
	return len(expired)
}

// Close destroys every instance.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*Instance, 0, len(m.sessions))
	for _, inst := range m.sessions {
		all = append(all, inst)
	}
	m.sessions = make(map[string]*Instance)
	m.mu.Unlock()

	for _, inst := range all {
		inst.Controller.Destroy()
	}
}

// reserveSlot claims room for one instance, destroying the least recently
// used idle one when the registry is full. It reports whether a slot was
// claimed; the caller must release it by inserting or decrementing reserved.
func (m *Manager) reserveSlot() bool {
	m.mu.Lock()
	if len(m.sessions)+m.reserved < m.opts.MaxSessions {
		m.reserved++
		m.mu.Unlock()
		return true
	}

	var victim *Instance
	for _, inst := range m.sessions {
		if inst.Controller.State() == models.UploadStateUploading {
			continue
		}
		if victim == nil || inst.lastAccessed.Before(victim.lastAccessed) {
			victim = inst
		}
	}
	if victim == nil {
		m.mu.Unlock()
		return false
	}
	delete(m.sessions, victim.ID)
	m.reserved++
	m.mu.Unlock()

	victim.Controller.Destroy()
	m.log.Info(context.Background(), "evicted widget to free capacity", "widget", victim.ID)
	return true
}

func describe(inst *Instance) models.WidgetSession {
	return models.WidgetSession{
		ID:           inst.ID,
		Preset:       inst.Preset,
		CreatedAt:    inst.CreatedAt,
		LastAccessed: inst.lastAccessed,
		Settings:     inst.Controller.Config().Settings(),
	}
}
