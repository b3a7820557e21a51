// Package orderbook is the concurrency-critical mirror of the remote CLOB
// book for a single condition id. A background refresher periodically
// samples remote orders and balances; synchronous calls to PlaceOrders and
// CancelOrders mask their own in-flight state on top of the refresher's last
// sample so callers always see a locally-consistent view, even while the
// remote side is still converging.
package orderbook

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ctfmm/internal/model"
)

// Adapter is the capability the manager needs from the outside world: order
// and balance reads, and the three mutating calls. Injected at construction
// rather than as function-valued struct fields, and never spins up its own
// scheduler/runtime — every call runs on the caller's goroutine.
type Adapter interface {
	GetOrders(ctx context.Context) ([]model.Order, error)
	GetBalances(ctx context.Context) (model.Balances, error)
	PlaceOrder(ctx context.Context, intent model.Order) (id string, err error)
	CancelOrder(ctx context.Context, id string) error
	CancelAllOrders(ctx context.Context) error
}

// Snapshot is the self-consistent view returned by GetOrderBook.
type Snapshot struct {
	Orders                []model.Order
	Balances              model.Balances
	OrdersBeingPlaced     bool
	OrdersBeingCancelled  bool
}

type remoteSnapshot struct {
	orders   []model.Order
	balances model.Balances
	ready    bool
}

// Manager is the order-book manager described in §4.1.
type Manager struct {
	adapter         Adapter
	refreshInterval time.Duration
	logger          *slog.Logger

	remoteMu sync.RWMutex
	remote   remoteSnapshot

	stateMu             sync.Mutex
	ordersPlaced        []model.Order
	cancellingIDs       map[string]struct{}
	cancelledIDs        map[string]struct{}
	inFlightPlacements  int

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New constructs a Manager. Call Start to launch the refresher.
func New(adapter Adapter, refreshInterval time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		adapter:         adapter,
		refreshInterval: refreshInterval,
		logger:          logger,
		cancellingIDs:   make(map[string]struct{}),
		cancelledIDs:    make(map[string]struct{}),
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
}

// Start launches the background refresher. It runs until Stop is called.
func (m *Manager) Start(ctx context.Context) {
	go m.refreshLoop(ctx)
}

// Stop halts the refresher and waits for it to exit.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.doneCh
}

func (m *Manager) refreshLoop(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()

	m.refreshOnce(ctx)
	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refreshOnce(ctx)
		}
	}
}

func (m *Manager) refreshOnce(ctx context.Context) {
	orders, err := m.adapter.GetOrders(ctx)
	if err != nil {
		m.logger.Warn("refresh: get orders failed, retaining previous snapshot", "error", err)
		return
	}
	balances, err := m.adapter.GetBalances(ctx)
	if err != nil {
		m.logger.Warn("refresh: get balances failed, retaining previous snapshot", "error", err)
		return
	}

	m.remoteMu.Lock()
	m.remote = remoteSnapshot{orders: orders, balances: balances, ready: true}
	m.remoteMu.Unlock()
}

// GetOrderBook blocks until the refresher has published at least once, then
// returns the masked, self-consistent snapshot.
func (m *Manager) GetOrderBook(ctx context.Context) (Snapshot, error) {
	for {
		m.remoteMu.RLock()
		ready := m.remote.ready
		m.remoteMu.RUnlock()
		if ready {
			break
		}
		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	m.remoteMu.RLock()
	orders := append([]model.Order{}, m.remote.orders...)
	balances := m.remote.balances
	m.remoteMu.RUnlock()

	m.stateMu.Lock()
	placed := append([]model.Order{}, m.ordersPlaced...)
	cancelling := len(m.cancellingIDs) > 0
	masked := make(map[string]struct{}, len(m.cancellingIDs)+len(m.cancelledIDs))
	for id := range m.cancellingIDs {
		masked[id] = struct{}{}
	}
	for id := range m.cancelledIDs {
		masked[id] = struct{}{}
	}
	inFlight := m.inFlightPlacements
	m.stateMu.Unlock()

	seen := make(map[string]struct{}, len(orders)+len(placed))
	result := make([]model.Order, 0, len(orders)+len(placed))
	for _, o := range orders {
		if o.ID == "" {
			continue
		}
		if _, skip := masked[o.ID]; skip {
			continue
		}
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}
		result = append(result, o)
	}
	for _, o := range placed {
		if _, skip := masked[o.ID]; skip {
			continue
		}
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}
		result = append(result, o)
	}

	return Snapshot{
		Orders:               result,
		Balances:             balances,
		OrdersBeingPlaced:    inFlight > 0,
		OrdersBeingCancelled: cancelling,
	}, nil
}

// PlaceOrders fires off one placement per intent. Each runs on the calling
// goroutine's child goroutine; failures are logged and dropped, the intent
// simply never appears in the book.
func (m *Manager) PlaceOrders(ctx context.Context, intents []model.Order) {
	var wg sync.WaitGroup
	for _, intent := range intents {
		intent := intent
		m.stateMu.Lock()
		m.inFlightPlacements++
		m.stateMu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				m.stateMu.Lock()
				m.inFlightPlacements--
				m.stateMu.Unlock()
			}()

			id, err := m.adapter.PlaceOrder(ctx, intent)
			if err != nil {
				m.logger.Warn("place order failed", "side", intent.Side, "token", intent.Token, "error", err)
				return
			}
			placed := intent
			placed.ID = id
			m.stateMu.Lock()
			m.ordersPlaced = append(m.ordersPlaced, placed)
			m.stateMu.Unlock()
		}()
	}
	wg.Wait()
}

// CancelOrders issues a cancel per target with a non-empty id. Targets
// without ids are no-ops.
func (m *Manager) CancelOrders(ctx context.Context, targets []model.Order) {
	var wg sync.WaitGroup
	for _, target := range targets {
		if target.ID == "" {
			continue
		}
		id := target.ID

		m.stateMu.Lock()
		m.cancellingIDs[id] = struct{}{}
		m.stateMu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.adapter.CancelOrder(ctx, id)
			m.stateMu.Lock()
			if err != nil {
				delete(m.cancellingIDs, id)
			} else {
				delete(m.cancellingIDs, id)
				m.cancelledIDs[id] = struct{}{}
			}
			m.stateMu.Unlock()
			if err != nil {
				m.logger.Warn("cancel order failed, will retry next tick", "id", id, "error", err)
			}
		}()
	}
	wg.Wait()
}

// CancelAllOrders is the bounded shutdown loop: cancel everything currently
// visible, wait for the book to settle, and repeat until empty.
func (m *Manager) CancelAllOrders(ctx context.Context) error {
	for {
		snap, err := m.GetOrderBook(ctx)
		if err != nil {
			return err
		}
		if len(snap.Orders) == 0 {
			return nil
		}

		m.stateMu.Lock()
		for _, o := range snap.Orders {
			if o.ID != "" {
				m.cancellingIDs[o.ID] = struct{}{}
			}
		}
		m.stateMu.Unlock()

		if err := m.adapter.CancelAllOrders(ctx); err != nil {
			m.stateMu.Lock()
			for _, o := range snap.Orders {
				if o.ID != "" {
					delete(m.cancellingIDs, o.ID)
				}
			}
			m.stateMu.Unlock()
			m.logger.Warn("bulk cancel failed, retrying", "error", err)
		} else {
			m.stateMu.Lock()
			for _, o := range snap.Orders {
				if o.ID == "" {
					continue
				}
				delete(m.cancellingIDs, o.ID)
				m.cancelledIDs[o.ID] = struct{}{}
			}
			m.stateMu.Unlock()
		}

		if err := m.WaitForStableOrderBook(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

// WaitForStableOrderBook polls GetOrderBook until neither placement nor
// cancellation is in flight.
func (m *Manager) WaitForStableOrderBook(ctx context.Context) error {
	for {
		snap, err := m.GetOrderBook(ctx)
		if err != nil {
			return err
		}
		if !snap.OrdersBeingPlaced && !snap.OrdersBeingCancelled {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
