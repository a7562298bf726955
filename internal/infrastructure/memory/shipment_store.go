package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/shipment"
)

type pkgKey struct {
	order domain.Key
	id    int
}

type storedShipment struct {
	s   *domain.Shipment
	seq uint64
}

// ShipmentStore keeps shipments and packages in memory. Age ties on RequestDate are broken
// by insertion order.
type ShipmentStore struct {
	mu        sync.RWMutex
	shipments map[domain.Key]storedShipment
	packages  map[pkgKey]*domain.Package
	seq       uint64
}

func NewShipmentStore() *ShipmentStore {
	return &ShipmentStore{
		shipments: make(map[domain.Key]storedShipment),
		packages:  make(map[pkgKey]*domain.Package),
	}
}

func (s *ShipmentStore) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &shipmentTx{
		store:     s,
		shipments: make(map[domain.Key]*domain.Shipment),
		packages:  make(map[pkgKey]domain.Package),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for k, sh := range tx.shipments {
		cur := s.shipments[k]
		cur.s = sh
		s.shipments[k] = cur
	}
	for k, p := range tx.packages {
		p := p
		s.packages[k] = &p
	}
	return nil
}

func (s *ShipmentStore) Insert(ctx context.Context, sh *domain.Shipment, pkgs []domain.Package) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	k := sh.Key()
	s.seq++
	s.shipments[k] = storedShipment{s: sh.Clone(), seq: s.seq}
	for _, p := range pkgs {
		p := p
		s.packages[pkgKey{k, p.PackageID}] = &p
	}
	return nil
}

func (s *ShipmentStore) PendingSellers(ctx context.Context) ([]string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, p := range s.packages {
		if p.Status == domain.PackageShipped {
			seen[p.SellerID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *ShipmentStore) Get(ctx context.Context, key domain.Key) (*domain.Shipment, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.shipments[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return st.s.Clone(), nil
}

func (s *ShipmentStore) Packages(ctx context.Context, key domain.Key) ([]domain.Package, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Package, 0)
	for k, p := range s.packages {
		if k.order == key {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PackageID < out[j].PackageID })
	return out, nil
}

func (s *ShipmentStore) Cleanup(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shipments = make(map[domain.Key]storedShipment)
	s.packages = make(map[pkgKey]*domain.Package)
	return nil
}

type shipmentTx struct {
	store     *ShipmentStore
	shipments map[domain.Key]*domain.Shipment
	packages  map[pkgKey]domain.Package
}

func (tx *shipmentTx) pkg(k pkgKey) domain.Package {
	if p, ok := tx.packages[k]; ok {
		return p
	}
	return *tx.store.packages[k]
}

func (tx *shipmentTx) OldestOpen(ctx context.Context, sellerID string) (domain.Key, bool, error) {
	_ = ctx
	var (
		best  domain.Key
		found bool
	)
	for k := range tx.store.packages {
		p := tx.pkg(k)
		if p.SellerID != sellerID || p.Status != domain.PackageShipped {
			continue
		}
		if !found || tx.older(k.order, best) {
			best, found = k.order, true
		}
	}
	return best, found, nil
}

func (tx *shipmentTx) older(a, b domain.Key) bool {
	sa, sb := tx.store.shipments[a], tx.store.shipments[b]
	if sa.s == nil || sb.s == nil {
		return sa.s != nil
	}
	if !sa.s.RequestDate.Equal(sb.s.RequestDate) {
		return sa.s.RequestDate.Before(sb.s.RequestDate)
	}
	return sa.seq < sb.seq
}

func (tx *shipmentTx) Get(ctx context.Context, key domain.Key) (*domain.Shipment, error) {
	_ = ctx
	if sh, ok := tx.shipments[key]; ok {
		return sh.Clone(), nil
	}
	st, ok := tx.store.shipments[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return st.s.Clone(), nil
}

func (tx *shipmentTx) ShippedPackages(ctx context.Context, key domain.Key, sellerID string) ([]domain.Package, error) {
	_ = ctx
	out := make([]domain.Package, 0)
	for k := range tx.store.packages {
		if k.order != key {
			continue
		}
		p := tx.pkg(k)
		if p.SellerID == sellerID && p.Status == domain.PackageShipped {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PackageID < out[j].PackageID })
	return out, nil
}

func (tx *shipmentTx) CountDelivered(ctx context.Context, key domain.Key) (int, error) {
	_ = ctx
	n := 0
	for k := range tx.store.packages {
		if k.order == key && tx.pkg(k).Status == domain.PackageDelivered {
			n++
		}
	}
	return n, nil
}

func (tx *shipmentTx) UpdateShipment(ctx context.Context, sh *domain.Shipment) error {
	_ = ctx
	if _, ok := tx.store.shipments[sh.Key()]; !ok {
		return domain.ErrNotFound
	}
	tx.shipments[sh.Key()] = sh.Clone()
	return nil
}

func (tx *shipmentTx) UpdatePackages(ctx context.Context, pkgs []domain.Package) error {
	_ = ctx
	for _, p := range pkgs {
		k := pkgKey{p.Key(), p.PackageID}
		if _, ok := tx.store.packages[k]; !ok {
			return domain.ErrNotFound
		}
		tx.packages[k] = p
	}
	return nil
}
