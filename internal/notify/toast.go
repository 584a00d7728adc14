package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/stayops/console/internal/alerts"
)

// Style is the visual treatment of a toast
type Style string

const (
	StyleError   Style = "error"
	StyleSuccess Style = "success"
)

// Display durations by urgency tier.
const (
	DurationImmediate = 10 * time.Second
	DurationUrgent    = 6 * time.Second
	DurationDefault   = 4 * time.Second
)

// dedupWindow is how long an alert identifier suppresses repeat toasts for
// the same underlying event delivered through a second path.
const dedupWindow = 5 * time.Minute

// Toast is a transient, non-blocking notification handed to the UI shell
type Toast struct {
	ID        string        `json:"id"`
	AlertID   string        `json:"alert_id,omitempty"`
	Title     string        `json:"title"`
	Message   string        `json:"message"`
	Style     Style         `json:"style"`
	Duration  time.Duration `json:"duration_ms"`
	Immediate bool          `json:"immediate"`
	CreatedAt time.Time     `json:"created_at"`
}

// Sink receives dispatched toasts
type Sink interface {
	Deliver(Toast)
}

// RequiresImmediate reports whether an alert demands the long-duration
// immediate treatment: critical priority, or a type flagged for it.
func RequiresImmediate(alert alerts.Alert) bool {
	if alert.Priority == alerts.PriorityCritical {
		return true
	}
	switch alert.Type {
	case alerts.TypeSecurityAlert, alerts.TypeInventoryCritical:
		return true
	}
	return false
}

// IsUrgent reports whether an alert gets the urgent (error-styled) treatment.
func IsUrgent(alert alerts.Alert) bool {
	return alert.Priority == alerts.PriorityHigh
}

// Dispatcher centralizes the decision of whether a newly observed alert
// surfaces a toast and at what urgency. Several listeners can react to the
// same event; a single dedup window guarantees at most one toast per alert
// identifier.
type Dispatcher struct {
	mu      sync.RWMutex
	sinks   []Sink
	recent  *gocache.Cache
	logger  *zap.Logger
}

// NewDispatcher creates a toast dispatcher.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		recent: gocache.New(dedupWindow, 2*dedupWindow),
		logger: logger,
	}
}

// AddSink registers a delivery target for every dispatched toast.
func (d *Dispatcher) AddSink(sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, sink)
}

// AlertInserted produces the toast for an alert that was genuinely new to the
// store. Replays and stale updates never reach this method; the dedup window
// additionally absorbs the same alert arriving through a second delivery
// path. Returns the toast that was dispatched, if any.
func (d *Dispatcher) AlertInserted(alert alerts.Alert) (Toast, bool) {
	if _, seen := d.recent.Get(alert.ID); seen {
		d.logger.Debug("Suppressed duplicate toast", zap.String("alert_id", alert.ID))
		return Toast{}, false
	}
	d.recent.SetDefault(alert.ID, struct{}{})

	toast := Toast{
		ID:        uuid.NewString(),
		AlertID:   alert.ID,
		Title:     alert.Title,
		Message:   alert.Message,
		CreatedAt: time.Now().UTC(),
	}

	switch {
	case RequiresImmediate(alert):
		toast.Style = StyleError
		toast.Duration = DurationImmediate
		toast.Immediate = true
	case IsUrgent(alert):
		toast.Style = StyleError
		toast.Duration = DurationUrgent
	default:
		toast.Style = StyleSuccess
		toast.Duration = DurationDefault
	}

	d.deliver(toast)
	return toast, true
}

// ActionFailed surfaces a REST action failure as a transient error toast.
// Local state stays untouched; the server remains the source of truth.
func (d *Dispatcher) ActionFailed(alertID string, action alerts.Action, err error) {
	toast := Toast{
		ID:        uuid.NewString(),
		AlertID:   alertID,
		Title:     "Action failed",
		Message:   string(action) + ": " + err.Error(),
		Style:     StyleError,
		Duration:  DurationUrgent,
		CreatedAt: time.Now().UTC(),
	}
	d.deliver(toast)
}

func (d *Dispatcher) deliver(toast Toast) {
	d.mu.RLock()
	sinks := make([]Sink, len(d.sinks))
	copy(sinks, d.sinks)
	d.mu.RUnlock()

	for _, sink := range sinks {
		sink.Deliver(toast)
	}
}

// LogSink writes toasts to the structured log
type LogSink struct {
	Logger *zap.Logger
}

// Deliver implements Sink.
func (s LogSink) Deliver(toast Toast) {
	s.Logger.Info("Toast dispatched",
		zap.String("toast_id", toast.ID),
		zap.String("alert_id", toast.AlertID),
		zap.String("style", string(toast.Style)),
		zap.Bool("immediate", toast.Immediate),
		zap.String("title", toast.Title))
}

// RingSink keeps the most recent toasts for the console surface to serve
type RingSink struct {
	mu     sync.Mutex
	toasts []Toast
	size   int
}

// NewRingSink creates a ring sink holding up to size toasts.
func NewRingSink(size int) *RingSink {
	if size <= 0 {
		size = 50
	}
	return &RingSink{size: size}
}

// Deliver implements Sink.
func (s *RingSink) Deliver(toast Toast) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toasts = append(s.toasts, toast)
	if len(s.toasts) > s.size {
		s.toasts = s.toasts[len(s.toasts)-s.size:]
	}
}

// Recent returns the held toasts, newest last.
func (s *RingSink) Recent() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Toast, len(s.toasts))
	copy(out, s.toasts)
	return out
}
