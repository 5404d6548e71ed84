package console

import (
	"context"
	"sync"

	"flowgate/internal/domain/models"
	"flowgate/internal/upstream"
	"flowgate/pkg/httpx"
	applogger "flowgate/pkg/logger"
	"flowgate/pkg/metrics"
)

// ErrResyncNotConfirmed is returned when a resync is requested without the
// explicit confirmation step. No backend request is sent in that case.
var ErrResyncNotConfirmed = httpx.BadRequestError("Resync not confirmed")

// AdminAPI is the slice of the backend the console needs. Implemented by the
// upstream client.
type AdminAPI interface {
	AdminListExchanges(ctx context.Context, sess upstream.Session) ([]models.Exchange, error)
	AdminCreateExchange(ctx context.Context, sess upstream.Session, form models.ExchangeForm) (*models.Exchange, error)
	AdminListAddresses(ctx context.Context, sess upstream.Session, filter models.AddressFilter) ([]models.Address, error)
	AdminCreateAddress(ctx context.Context, sess upstream.Session, form models.AddressForm) (*models.Address, error)
	AdminSyncState(ctx context.Context, sess upstream.Session) ([]models.SyncState, error)
	AdminTriggerResync(ctx context.Context, sess upstream.Session) error
}

// Controller owns the view state for one admin session. All transitions run
// under one lock, so observers always see a complete state, never a partial
// update.
type Controller struct {
	api AdminAPI
	log *applogger.Logger
	rec *metrics.Recorder

	mu    sync.Mutex
	sess  upstream.Session
	state State

	startOnce sync.Once
	loads     sync.WaitGroup
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithMetrics attaches a metrics recorder.
func WithMetrics(rec *metrics.Recorder) ControllerOption {
	return func(c *Controller) { c.rec = rec }
}

// NewController creates a controller with the exchanges tab active.
func NewController(api AdminAPI, sess upstream.Session, log *applogger.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		api:   api,
		log:   log,
		sess:  sess,
		state: State{ActiveTab: TabExchanges},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start runs the mount sequence once: an eager exchange fetch (the address
// form needs the selection list no matter which tab is active) followed by
// the initial load of the active tab.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		exchanges, err := c.api.AdminListExchanges(ctx, c.session())
		if err != nil {
			c.log.Warn("eager exchange load failed", applogger.Error(err))
		} else {
			c.mu.Lock()
			c.state.Exchanges = exchanges
			c.mu.Unlock()
		}
		c.SelectTab(ctx, c.Snapshot().ActiveTab)
	})
}

// UpdateSession swaps in a fresh session token for subsequent fetches.
func (c *Controller) UpdateSession(sess upstream.Session) {
	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()
}

func (c *Controller) session() upstream.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// Snapshot returns a copy of the current view state. The contained slices
// are shared and must be treated as read-only render input.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SelectTab activates a tab and kicks off its load in the background. The
// returned snapshot has the loading flag already raised. In-flight loads for
// previously active tabs are not cancelled; their completions are discarded
// by the generation check when they land late.
func (c *Controller) SelectTab(ctx context.Context, tab Tab) State {
	c.mu.Lock()
	c.state = c.state.selectTab(tab)
	gen := c.state.Generation
	snap := c.state
	c.mu.Unlock()

	c.rec.RecordConsoleEvent("select_tab")

	// The load must outlive the navigation request that triggered it.
	bg := context.WithoutCancel(ctx)
	c.loads.Add(1)
	go func() {
		defer c.loads.Done()
		c.load(bg, tab, gen)
	}()

	return snap
}

// CreateExchange submits the exchange form. Invalid input is rejected before
// any request is sent. On success the active tab reloads before the call
// returns; on failure the error carries the server's message and the
// displayed collections stay untouched.
func (c *Controller) CreateExchange(ctx context.Context, form models.ExchangeForm) (*models.Exchange, error) {
	c.rec.RecordConsoleEvent("create_exchange")
	if err := models.Validate(&form); err != nil {
		return nil, httpx.FieldValidationError("slug", "Name is required and slug must match [a-z0-9-]+").WithError(err)
	}

	created, err := c.api.AdminCreateExchange(ctx, c.session(), form)
	if err != nil {
		return nil, err
	}

	c.reload(ctx)
	return created, nil
}

// CreateAddress submits the address form. The exchange selection must be
// non-empty and must come from the currently loaded exchange list.
func (c *Controller) CreateAddress(ctx context.Context, form models.AddressForm) (*models.Address, error) {
	c.rec.RecordConsoleEvent("create_address")
	if err := models.Validate(&form); err != nil {
		return nil, httpx.ValidationFailedError("Address form is incomplete").WithError(err)
	}
	if !c.knownExchange(form.ExchangeID) {
		return nil, httpx.FieldValidationError("exchange_id", "Select an exchange from the list")
	}

	created, err := c.api.AdminCreateAddress(ctx, c.session(), form)
	if err != nil {
		return nil, err
	}

	c.reload(ctx)
	return created, nil
}

// Refresh synchronously re-fetches the active tab and returns the resulting
// state. Used after mutations that bypass the console forms.
func (c *Controller) Refresh(ctx context.Context) State {
	c.reload(ctx)
	return c.Snapshot()
}

// TriggerResync enqueues backend re-ingestion jobs. Without confirmation it
// sends nothing; with confirmation it sends exactly one POST. SyncState is
// deliberately not refreshed: the job is asynchronous and the table would
// not show new data yet. Completion is observed later through the sync tab.
func (c *Controller) TriggerResync(ctx context.Context, confirmed bool) error {
	if !confirmed {
		c.rec.RecordConsoleEvent("resync_declined")
		return ErrResyncNotConfirmed
	}

	c.rec.RecordConsoleEvent("resync_triggered")
	return c.api.AdminTriggerResync(ctx, c.session())
}

func (c *Controller) knownExchange(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ex := range c.state.Exchanges {
		if ex.ID == id {
			return true
		}
	}
	return false
}

// reload re-fetches the active tab synchronously, in program order with the
// mutation that triggered it.
func (c *Controller) reload(ctx context.Context) {
	c.mu.Lock()
	c.state = c.state.selectTab(c.state.ActiveTab)
	gen := c.state.Generation
	tab := c.state.ActiveTab
	c.mu.Unlock()

	c.load(ctx, tab, gen)
}

// load fetches a tab's collections and folds the completion into the state.
// The addresses tab also re-fetches exchanges so the form's selection list
// tracks the latest exchange collection.
func (c *Controller) load(ctx context.Context, tab Tab, gen uint64) {
	sess := c.session()
	ev := completion{tab: tab, gen: gen}

	switch tab {
	case TabExchanges:
		exchanges, err := c.api.AdminListExchanges(ctx, sess)
		if err != nil {
			ev.err = err
		} else {
			ev.exchanges, ev.exchangesOK = exchanges, true
		}
	case TabAddresses:
		addresses, err := c.api.AdminListAddresses(ctx, sess, models.AddressFilter{})
		if err != nil {
			ev.err = err
		} else {
			ev.addresses, ev.addressesOK = addresses, true
			exchanges, exErr := c.api.AdminListExchanges(ctx, sess)
			if exErr != nil {
				ev.err = exErr
			} else {
				ev.exchanges, ev.exchangesOK = exchanges, true
			}
		}
	case TabSync:
		syncStates, err := c.api.AdminSyncState(ctx, sess)
		if err != nil {
			ev.err = err
		} else {
			ev.syncStates, ev.syncStatesOK = syncStates, true
		}
	}

	c.apply(ev)
}

// apply is the reducer entry point. Background load failures are logged and
// swallowed here; the console keeps showing the last good data rather than
// interrupting the operator with error banners.
func (c *Controller) apply(ev completion) {
	c.mu.Lock()
	next, discarded := c.state.reduce(ev)
	c.state = next
	c.mu.Unlock()

	if discarded {
		c.rec.RecordStaleLoad()
		c.log.Debug("stale tab load discarded",
			applogger.String("tab", string(ev.tab)),
			applogger.Uint64("generation", ev.gen),
		)
		return
	}
	if ev.err != nil {
		c.log.Warn("tab load failed",
			applogger.String("tab", string(ev.tab)),
			applogger.Error(ev.err),
		)
	}
}
