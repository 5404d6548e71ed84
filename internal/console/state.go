// Package console hosts the admin console's view-state machine: one
// controller per admin session keeps the exchanges, addresses, and sync-state
// collections consistent while tabs switch and forms are submitted. The
// state is a single structure transitioned atomically per event, and every
// tab switch mints a new generation so late-arriving fetches for a
// superseded tab are discarded instead of overwriting newer data.
package console

import "flowgate/internal/domain/models"

// Tab identifies one of the three console tabs.
type Tab string

const (
	TabExchanges Tab = "exchanges"
	TabAddresses Tab = "addresses"
	TabSync      Tab = "sync"
)

// ParseTab maps user input to a Tab.
func ParseTab(s string) (Tab, bool) {
	switch Tab(s) {
	case TabExchanges, TabAddresses, TabSync:
		return Tab(s), true
	}
	return "", false
}

// State is the console's entire view state. Displayed collections are always
// the result of the last successful fetch, never of an unconfirmed mutation.
type State struct {
	ActiveTab  Tab                `json:"active_tab"`
	Loading    bool               `json:"loading"`
	Generation uint64             `json:"generation"`
	Exchanges  []models.Exchange  `json:"exchanges"`
	Addresses  []models.Address   `json:"addresses"`
	SyncStates []models.SyncState `json:"sync_states"`
}

// completion is the terminal event of one tab load. It carries whichever
// collections that load fetched; ok flags distinguish "fetched empty" from
// "not fetched".
type completion struct {
	tab Tab
	gen uint64
	err error

	exchanges    []models.Exchange
	exchangesOK  bool
	addresses    []models.Address
	addressesOK  bool
	syncStates   []models.SyncState
	syncStatesOK bool
}

// selectTab transitions the state for a tab switch: the new tab becomes
// active, the generation advances, and the loading flag rises until the
// matching completion lands.
func (s State) selectTab(tab Tab) State {
	s.ActiveTab = tab
	s.Generation++
	s.Loading = true
	return s
}

// reduce folds a load completion into the state. A completion from a stale
// generation leaves the state untouched (the discarded return is true); the
// loading flag then belongs to the newer load. For the current generation,
// loading always clears, fetched collections are applied in one transition,
// and a fetch error keeps the last successfully loaded data visible.
func (s State) reduce(ev completion) (next State, discarded bool) {
	if ev.gen != s.Generation {
		return s, true
	}

	s.Loading = false
	if ev.exchangesOK {
		s.Exchanges = ev.exchanges
	}
	if ev.addressesOK {
		s.Addresses = ev.addresses
	}
	if ev.syncStatesOK {
		s.SyncStates = ev.syncStates
	}
	return s, false
}
