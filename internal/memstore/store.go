// Package memstore is an in-memory stand-in for the Postgres repositories.
// Transactions snapshot the whole store and restore it when fn fails, which
// is enough to observe rollback behaviour in service and handler tests.
package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	catalog "github.com/dmehra2102/checkout-service/internal/catalog/domain"
	order "github.com/dmehra2102/checkout-service/internal/order/domain"
	payment "github.com/dmehra2102/checkout-service/internal/payment/domain"
	"github.com/dmehra2102/checkout-service/pkg/outbox"
)

type state struct {
	items       map[int64]catalog.Item
	orders      map[int64]order.Order
	payments    map[int64]payment.Payment
	events      []outbox.Event
	nextOrder   int64
	nextLine    int64
	nextPayment int64
}

func (s state) clone() state {
	c := s
	c.items = make(map[int64]catalog.Item, len(s.items))
	for k, v := range s.items {
		c.items[k] = v
	}
	c.orders = make(map[int64]order.Order, len(s.orders))
	for k, v := range s.orders {
		v.Items = append([]order.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	c.payments = make(map[int64]payment.Payment, len(s.payments))
	for k, v := range s.payments {
		c.payments[k] = v
	}
	c.events = append([]outbox.Event(nil), s.events...)
	return c
}

type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   state
	fail map[string]error
}

func New() *Store {
	return &Store{
		st: state{
			items:    map[int64]catalog.Item{},
			orders:   map[int64]order.Order{},
			payments: map[int64]payment.Payment{},
		},
		fail: map[string]error{},
	}
}

// FailOn makes the named operation ("orders.create", "payments.update", ...)
// return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

func (s *Store) failure(op string) error {
	return s.fail[op]
}

type txKey struct{}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
	}()
	if err = fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snapshot)
	}
	return err
}

func (s *Store) restore(snapshot state) {
	s.mu.Lock()
	s.st = snapshot
	s.mu.Unlock()
}

func (s *Store) AddItem(it catalog.Item) catalog.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it.ID == 0 {
		it.ID = int64(len(s.st.items) + 1)
	}
	s.st.items[it.ID] = it
	return it
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

func (s *Store) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.payments)
}

func (s *Store) Events() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Event(nil), s.st.events...)
}

func (s *Store) EventTypes() []string {
	events := s.Events()
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func (s *Store) Items() *Items       { return &Items{s} }
func (s *Store) Orders() *Orders     { return &Orders{s} }
func (s *Store) Payments() *Payments { return &Payments{s} }
func (s *Store) Outbox() *Outbox     { return &Outbox{s} }

type Items struct{ s *Store }

func (r *Items) FindActive(ctx context.Context, ids []int64) (map[int64]catalog.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("items.find"); err != nil {
		return nil, err
	}
	out := make(map[int64]catalog.Item, len(ids))
	for _, id := range ids {
		if it, ok := r.s.st.items[id]; ok && it.IsActive {
			out[id] = it
		}
	}
	return out, nil
}

func (r *Items) List(ctx context.Context, search string, limit, offset int) ([]catalog.Item, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matched []catalog.Item
	for _, it := range r.s.st.items {
		if !it.IsActive {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(it.Name), strings.ToLower(search)) {
			continue
		}
		matched = append(matched, it)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

type Orders struct{ s *Store }

func (r *Orders) Create(ctx context.Context, o *order.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("orders.create"); err != nil {
		return err
	}
	r.s.st.nextOrder++
	o.ID = r.s.st.nextOrder
	for i := range o.Items {
		r.s.st.nextLine++
		o.Items[i].ID = r.s.st.nextLine
		o.Items[i].OrderID = o.ID
	}
	stored := *o
	stored.Payment = nil
	stored.Items = append([]order.OrderItem(nil), o.Items...)
	r.s.st.orders[o.ID] = stored
	return nil
}

func (r *Orders) Get(ctx context.Context, id int64) (order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.st.orders[id]
	if !ok {
		return order.Order{}, order.ErrOrderNotFound
	}
	o.Items = append([]order.OrderItem(nil), o.Items...)
	if p, ok := r.s.st.payments[id]; ok {
		o.Payment = &p
	}
	return o, nil
}

func (r *Orders) GetForUpdate(ctx context.Context, id int64) (order.Order, error) {
	o, err := r.Get(ctx, id)
	o.Payment = nil
	return o, err
}

func (r *Orders) UpdateStatus(ctx context.Context, id int64, status order.OrderStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("orders.update"); err != nil {
		return err
	}
	o, ok := r.s.st.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = at
	r.s.st.orders[id] = o
	return nil
}

type Payments struct{ s *Store }

func (r *Payments) Create(ctx context.Context, p *payment.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("payments.create"); err != nil {
		return err
	}
	if _, exists := r.s.st.payments[p.OrderID]; exists {
		return errors.New("duplicate payment for order")
	}
	r.s.st.nextPayment++
	p.ID = r.s.st.nextPayment
	r.s.st.payments[p.OrderID] = *p
	return nil
}

func (r *Payments) GetByOrderForUpdate(ctx context.Context, orderID int64) (payment.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.payments[orderID]
	if !ok {
		return payment.Payment{}, payment.ErrPaymentNotFound
	}
	return p, nil
}

func (r *Payments) Update(ctx context.Context, p payment.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("payments.update"); err != nil {
		return err
	}
	if _, ok := r.s.st.payments[p.OrderID]; !ok {
		return payment.ErrPaymentNotFound
	}
	r.s.st.payments[p.OrderID] = p
	return nil
}

type Outbox struct{ s *Store }

func (r *Outbox) Append(ctx context.Context, aggregateType, aggregateID, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("outbox.append"); err != nil {
		return err
	}
	r.s.st.events = append(r.s.st.events, outbox.Event{
		ID:            int64(len(r.s.st.events) + 1),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Payload:       body,
		Status:        outbox.StatusPending,
		CreatedAt:     time.Now().UTC(),
	})
	return nil
}
