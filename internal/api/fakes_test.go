package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/threadline/checkout/internal/domain/address"
	"github.com/threadline/checkout/internal/domain/catalog"
	"github.com/threadline/checkout/internal/domain/checkout"
	"github.com/threadline/checkout/internal/domain/discount"
	"github.com/threadline/checkout/internal/domain/order"
	"github.com/threadline/checkout/internal/domain/payment"
	"github.com/threadline/checkout/internal/domain/pricing"
	"github.com/threadline/checkout/internal/domain/request"
	"github.com/threadline/checkout/internal/repository"
)

type memCatalog struct {
	products []catalog.Product
}

func (m *memCatalog) List(context.Context) ([]catalog.Product, error) {
	return m.products, nil
}

func (m *memCatalog) GetByHandle(_ context.Context, handle string) (*catalog.Product, error) {
	for i := range m.products {
		if m.products[i].Handle == handle {
			return &m.products[i], nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (m *memCatalog) GetByIDs(_ context.Context, ids []string) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range m.products {
		for _, id := range ids {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

type memDrafts struct {
	mu sync.Mutex
	m  map[string]checkout.Draft
}

func newMemDrafts() *memDrafts { return &memDrafts{m: map[string]checkout.Draft{}} }

func (d *memDrafts) Get(_ context.Context, customerID string) (*checkout.Draft, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	draft, ok := d.m[customerID]
	if !ok {
		return nil, checkout.ErrNoDraft
	}
	return &draft, nil
}

func (d *memDrafts) Put(_ context.Context, draft *checkout.Draft) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.m[draft.CustomerID] = *draft
	return nil
}

func (d *memDrafts) Delete(_ context.Context, customerID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.m, customerID)
	return nil
}

type stubDiscounts struct {
	codes map[string]pricing.AppliedDiscount
}

func (s *stubDiscounts) Validate(_ context.Context, code string) (*pricing.AppliedDiscount, error) {
	d, ok := s.codes[code]
	if !ok {
		return nil, discount.ErrInvalidCode
	}
	return &d, nil
}

type memOrders struct {
	mu    sync.Mutex
	byKey map[string]*order.Order
	byID  map[string]*order.Order
	seq   int
}

func newMemOrders() *memOrders {
	return &memOrders{byKey: map[string]*order.Order{}, byID: map[string]*order.Order{}}
}

func (m *memOrders) InsertIfAbsent(_ context.Context, key string, o *order.Order) (*order.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byKey[key]; ok {
		cp := *existing
		return &cp, false, nil
	}
	m.seq++
	stored := *o
	stored.Number = fmt.Sprintf("TL-%04d", m.seq)
	m.byKey[key] = &stored
	m.byID[stored.ID] = &stored
	cp := stored
	return &cp, true, nil
}

func (m *memOrders) GetByIdempotencyKey(_ context.Context, key string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byKey[key]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id string, expected, next order.Status) (*order.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, false, order.ErrNotFound
	}
	if o.Status != expected {
		return nil, false, nil
	}
	o.Status = next
	cp := *o
	return &cp, true, nil
}

func (m *memOrders) UpdateShipment(_ context.Context, id string, sh order.Shipment) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o.Shipment = sh
	cp := *o
	return &cp, nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) ListByCustomer(_ context.Context, customerID string) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, o := range m.byID {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

type memCarts struct{}

func (memCarts) RemoveItems(context.Context, string, []string) error { return nil }

type memCodeUses struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *memCodeUses) IncrementUses(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[code]++
	return nil
}

type memIntents struct {
	mu sync.Mutex
	m  map[string]payment.Intent
}

func newMemIntents() *memIntents { return &memIntents{m: map[string]payment.Intent{}} }

func (m *memIntents) Put(_ context.Context, intent *payment.Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[intent.CustomerID] = *intent
	return nil
}

func (m *memIntents) GetByCustomer(_ context.Context, customerID string) (*payment.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.m[customerID]
	if !ok {
		return nil, payment.ErrNoIntent
	}
	return &in, nil
}

func (m *memIntents) Delete(_ context.Context, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.m, customerID)
	return nil
}

type stubGateway struct {
	seq int
}

func (g *stubGateway) CreateOrder(context.Context, int64, string, string) (string, error) {
	g.seq++
	return fmt.Sprintf("gw_order_%d", g.seq), nil
}

type memRequests struct {
	mu sync.Mutex
	m  map[string]*request.Request
}

func newMemRequests() *memRequests { return &memRequests{m: map[string]*request.Request{}} }

func (m *memRequests) Create(_ context.Context, r *request.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.m[r.ID] = &cp
	return nil
}

func (m *memRequests) GetByID(_ context.Context, id string) (*request.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.m[id]
	if !ok {
		return nil, request.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRequests) ListByOrder(_ context.Context, orderID string) ([]request.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []request.Request
	for _, r := range m.m {
		if r.OrderID == orderID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRequests) UpdateStatus(_ context.Context, id string, expected, next request.Status) (*request.Request, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.m[id]
	if !ok {
		return nil, false, request.ErrNotFound
	}
	if r.Status != expected {
		return nil, false, nil
	}
	r.Status = next
	cp := *r
	return &cp, true, nil
}

type memAddresses struct {
	mu        sync.Mutex
	upsertErr error
	m         map[string]map[string]address.Address
}

func newMemAddresses() *memAddresses {
	return &memAddresses{m: map[string]map[string]address.Address{}}
}

func (m *memAddresses) Upsert(_ context.Context, customerID, fingerprint string, addr address.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if m.m[customerID] == nil {
		m.m[customerID] = map[string]address.Address{}
	}
	m.m[customerID][fingerprint] = addr
	return nil
}

func (m *memAddresses) SetDefault(_ context.Context, customerID, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for fp, a := range m.m[customerID] {
		a.IsDefault = fp == fingerprint
		m.m[customerID][fp] = a
	}
	return nil
}

func (m *memAddresses) List(_ context.Context, customerID string) ([]address.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []address.Address
	for _, a := range m.m[customerID] {
		out = append(out, a)
	}
	return out, nil
}

type stubKeys struct {
	byHash map[string]*repository.APIKeyRecord
}

func (s *stubKeys) FindByHash(_ context.Context, hash string) (*repository.APIKeyRecord, error) {
	rec, ok := s.byHash[hash]
	if !ok {
		return nil, fmt.Errorf("api key not found")
	}
	return rec, nil
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func testProducts() []catalog.Product {
	return []catalog.Product{
		{
			ID:     "p1",
			Handle: "slim-fit-jeans",
			Title:  "Slim Fit Jeans",
			Variants: []catalog.Variant{
				{
					ID:    "v1",
					Title: "30/32",
					SKU:   "JEANS-30",
					Price: decimal.NewFromInt(1700),
					OptionValues: map[string]string{
						"Waist": "30",
					},
					TrackInventory:    true,
					InventoryPolicy:   catalog.PolicyDeny,
					QuantityAvailable: 10,
				},
				{
					ID:    "v2",
					Title: "32/32",
					SKU:   "JEANS-32",
					Price: decimal.NewFromInt(1700),
					OptionValues: map[string]string{
						"Waist": "32",
					},
					TrackInventory:    true,
					InventoryPolicy:   catalog.PolicyDeny,
					QuantityAvailable: 0,
				},
			},
		},
		{
			ID:     "p2",
			Handle: "linen-shirt",
			Title:  "Linen Shirt",
			Variants: []catalog.Variant{
				{
					ID:    "v3",
					Title: "M",
					SKU:   "SHIRT-M",
					Price: decimal.NewFromInt(2500),
					OptionValues: map[string]string{
						"Size": "M",
					},
				},
			},
		},
	}
}
