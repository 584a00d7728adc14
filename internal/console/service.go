package console

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/stayops/console/internal/alerts"
	"github.com/stayops/console/internal/api"
	"github.com/stayops/console/internal/metrics"
	"github.com/stayops/console/internal/notify"
	"github.com/stayops/console/internal/poller"
	"github.com/stayops/console/internal/realtime"
	"github.com/stayops/console/internal/session"
)

// Schedules for the periodic refreshes.
const (
	summarySchedule = "@every 30s"
	sessionSchedule = "@every 5m"
)

// Console binds the alert subsystem together: real-time events flow through
// boundary validation into the store, genuine inserts surface as toasts, and
// periodic polls reconcile against the REST backend. It owns one reference on
// the shared connection for as long as it is started.
type Console struct {
	client     *api.Client
	store      *alerts.Store
	dispatcher *notify.Dispatcher
	manager    *realtime.Manager
	sessions   *session.Manager
	poller     *poller.Poller
	collector  *metrics.Collector
	logger     *zap.Logger
	pageLimit  int

	mu          sync.Mutex
	started     bool
	wired       bool
	registered  map[alerts.EventName]realtime.HandlerID
	lastSummary *alerts.Summary
}

// Options configures the console service
type Options struct {
	PageLimit int
}

// New creates the console service. Call Start to begin consuming events.
func New(
	client *api.Client,
	store *alerts.Store,
	dispatcher *notify.Dispatcher,
	manager *realtime.Manager,
	sessions *session.Manager,
	refresher *poller.Poller,
	collector *metrics.Collector,
	logger *zap.Logger,
	opts Options,
) *Console {
	if opts.PageLimit <= 0 {
		opts.PageLimit = 50
	}
	return &Console{
		client:     client,
		store:      store,
		dispatcher: dispatcher,
		manager:    manager,
		sessions:   sessions,
		poller:     refresher,
		collector:  collector,
		logger:     logger,
		pageLimit:  opts.PageLimit,
		registered: make(map[alerts.EventName]realtime.HandlerID),
	}
}

// Start registers the event handlers, acquires the shared connection and
// begins the periodic refreshes. The service can be started again after
// Close; the state hook and the cron jobs are wired exactly once so restart
// cycles never accumulate duplicates.
func (c *Console) Start() error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	wired := c.wired
	c.wired = true
	c.mu.Unlock()

	if !wired {
		c.manager.OnStateChange(func(state realtime.ConnState) {
			if state == realtime.StateConnected {
				c.collector.Connected.Set(1)
				return
			}
			c.collector.Connected.Set(0)
			if state == realtime.StateDisconnected && c.manager.ReconnectAttempts() > 0 {
				c.collector.Reconnects.Inc()
			}
		})

		if err := c.poller.Add(poller.Job{Name: "alert_refresh", Schedule: summarySchedule, Run: c.refreshAlerts}); err != nil {
			return err
		}
		if err := c.poller.Add(poller.Job{Name: "session_refresh", Schedule: sessionSchedule, Run: c.sessions.Refresh}); err != nil {
			return err
		}
	}

	for _, name := range alerts.EventNames() {
		event := name
		id := c.manager.On(string(event), func(envelope realtime.Envelope) {
			c.handleEnvelope(event, envelope)
		})
		c.mu.Lock()
		c.registered[event] = id
		c.mu.Unlock()
	}

	c.manager.Acquire()
	c.poller.Start()
	c.logger.Info("Console service started")
	return nil
}

// Close detaches every event handler, stops the polls and releases the shared
// connection. After Close no further fetches or dispatches occur.
func (c *Console) Close() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	registered := c.registered
	c.registered = make(map[alerts.EventName]realtime.HandlerID)
	c.mu.Unlock()

	c.poller.Stop()
	for event, id := range registered {
		c.manager.Off(string(event), id)
	}
	c.manager.Release()
	c.logger.Info("Console service closed")
}

// handleEnvelope validates a pushed event at the boundary and merges it. A
// malformed payload is dropped and counted; it never reaches the store or the
// other handlers.
func (c *Console) handleEnvelope(name alerts.EventName, envelope realtime.Envelope) {
	c.collector.EventsReceived.WithLabelValues(string(name)).Inc()

	event, err := alerts.DecodeEvent(name, envelope.Payload)
	if err != nil {
		c.collector.EventsDropped.Inc()
		c.logger.Warn("Dropped malformed push event",
			zap.String("event", string(name)),
			zap.Error(err))
		return
	}

	c.merge(event.Alert)
}

// merge routes an alert through the store and surfaces a toast when the
// store reports a genuine insert.
func (c *Console) merge(alert alerts.Alert) {
	outcome := c.store.ApplyIncoming(alert)
	switch outcome {
	case alerts.OutcomeInserted:
		c.collector.MergeOutcomes.WithLabelValues("inserted").Inc()
		if toast, ok := c.dispatcher.AlertInserted(alert); ok {
			c.collector.ToastsDispatched.WithLabelValues(string(toast.Style)).Inc()
		}
	case alerts.OutcomeReplaced:
		c.collector.MergeOutcomes.WithLabelValues("replaced").Inc()
	default:
		c.collector.MergeOutcomes.WithLabelValues("discarded").Inc()
	}
	c.collector.ActiveAlerts.Set(float64(c.store.Summary().TotalActive))
}

// refreshAlerts reconciles the store against the REST backend: the summary
// for the badge counts and the recent page for the list. Alerts the poll sees
// before the push channel does still toast exactly once; the snapshot merge
// reports only genuine inserts.
func (c *Console) refreshAlerts(ctx context.Context) error {
	summary, err := c.client.AlertSummary(ctx)
	if err != nil {
		return err
	}

	page, err := c.client.RecentAlerts(ctx, c.pageLimit)
	if err != nil {
		return err
	}
	for _, alert := range c.store.ApplySnapshot(page) {
		c.collector.MergeOutcomes.WithLabelValues("inserted").Inc()
		if toast, ok := c.dispatcher.AlertInserted(alert); ok {
			c.collector.ToastsDispatched.WithLabelValues(string(toast.Style)).Inc()
		}
	}
	c.collector.ActiveAlerts.Set(float64(c.store.Summary().TotalActive))

	c.mu.Lock()
	c.lastSummary = &summary
	c.mu.Unlock()
	return nil
}

// Summary returns the badge counts: the last server-fetched summary when one
// exists, otherwise counts derived from the local store.
func (c *Console) Summary() alerts.Summary {
	c.mu.Lock()
	last := c.lastSummary
	c.mu.Unlock()
	if last != nil {
		return *last
	}
	return c.store.Summary()
}

// Act executes a staff action on an alert. There is no optimistic local
// mutation: the server response is merged back on success, and on failure the
// store is untouched and an error toast is surfaced.
func (c *Console) Act(ctx context.Context, alertID string, action alerts.Action, notes string) (alerts.Alert, error) {
	held, ok := c.store.Get(alertID)
	if ok {
		if !actionAllowed(held.Status, action) {
			return alerts.Alert{}, fmt.Errorf("action %s not allowed for status %s", action, held.Status)
		}
	}

	updated, err := c.client.AlertAction(ctx, alertID, action, notes)
	if err != nil {
		c.dispatcher.ActionFailed(alertID, action, err)
		return alerts.Alert{}, err
	}

	c.merge(updated)
	return updated, nil
}

func actionAllowed(status alerts.Status, action alerts.Action) bool {
	switch status {
	case alerts.StatusActive:
		return true
	case alerts.StatusAcknowledged, alerts.StatusInProgress:
		return action == alerts.ActionResolve || action == alerts.ActionDismiss
	default:
		return false
	}
}

// Attach takes an additional reference on the shared connection for a shell
// component (status widget, dropdown) that needs it beyond the service's own
// lifetime. Each Attach must be balanced by a Detach.
func (c *Console) Attach() {
	c.manager.Acquire()
}

// Detach releases a reference taken via Attach. One component detaching never
// severs the connection for the others.
func (c *Console) Detach() {
	c.manager.Release()
}

// Store exposes the alert store for the read-side handlers.
func (c *Console) Store() *alerts.Store {
	return c.store
}

// Sessions exposes the session manager for the security screen handlers.
func (c *Console) Sessions() *session.Manager {
	return c.sessions
}

// ConnectionStatus reports the shared connection's reactive state.
func (c *Console) ConnectionStatus() realtime.Status {
	return c.manager.Statusz()
}
