package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/chain"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/event"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/profile"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/ticket"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/transaction"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/infrastructure/memory"
	redisinfra "github.com/sanosuguru/go-nft-ticket-issuance/internal/infrastructure/redis"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/clock"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/metrics"
)

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type testSigner string

func (s testSigner) Address() string { return string(s) }

const relayer = testSigner("0x00000000000000000000000000000000000000ff")

// fakeMinter はミント呼び出しを記録するテスト用のコントラクト
type fakeMinter struct {
	mu           sync.Mutex
	mintCalls    int64
	createCalls  int64
	mints        []chain.MintRequest
	mintFn       func(ctx context.Context, req chain.MintRequest) (*chain.Receipt, error)
	createFn     func(ctx context.Context, eventID int64, ref string, max int) (*chain.Receipt, error)
	lastCreateID int64
}

func (m *fakeMinter) CreateEvent(ctx context.Context, signer chain.Signer, eventID int64, metadataRef string, maxTickets int) (*chain.Receipt, error) {
	n := atomic.AddInt64(&m.createCalls, 1)
	m.mu.Lock()
	m.lastCreateID = eventID
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(ctx, eventID, metadataRef, maxTickets)
	}
	return &chain.Receipt{TxHash: fmt.Sprintf("0xcreate%d", n)}, nil
}

func (m *fakeMinter) MintTicket(ctx context.Context, signer chain.Signer, req chain.MintRequest) (*chain.Receipt, error) {
	n := atomic.AddInt64(&m.mintCalls, 1)
	m.mu.Lock()
	m.mints = append(m.mints, req)
	m.mu.Unlock()
	if m.mintFn != nil {
		return m.mintFn(ctx, req)
	}
	return &chain.Receipt{TxHash: fmt.Sprintf("0xmint%d", n)}, nil
}

func (m *fakeMinter) MintCalls() int {
	return int(atomic.LoadInt64(&m.mintCalls))
}

// flakyTxManager は指定回数だけトランザクション開始を失敗させる
type flakyTxManager struct {
	inner    transaction.Manager
	failures int64
}

func (m *flakyTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	if atomic.AddInt64(&m.failures, -1) >= 0 {
		return nil, errors.New("connection reset")
	}
	return m.inner.Begin(ctx)
}

type fixture struct {
	store       *memory.Store
	events      *memory.EventRepository
	tickets     *memory.TicketRepository
	profiles    *memory.ProfileRepository
	listings    *memory.ResaleRepository
	recon       *memory.ReconciliationRepository
	bus         *memory.Bus
	clock       *clock.Fixed
	minter      *fakeMinter
	metrics     *metrics.Metrics
	txManager   transaction.Manager
	ledger      *ReputationLedger
	monitor     *LifecycleMonitor
	issuance    *IssuanceService
	eventSvc    *EventService
	ticketSvc   *TicketService
	resale      *ResaleMarket
	profileSvc  *ProfileService
	reconSvc    *ReconciliationService
	lockManager redisinfra.LockManagerInterface
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	issuance    IssuanceConfig
	txManager   func(*memory.Store) transaction.Manager
	lockManager redisinfra.LockManagerInterface
	cache       ProfileCache
}

func withOrdering(ordering string) fixtureOption {
	return func(c *fixtureConfig) { c.issuance.Ordering = ordering }
}

func withMintTimeout(d time.Duration) fixtureOption {
	return func(c *fixtureConfig) { c.issuance.MintTimeout = d }
}

func withCommitFailures(n int64) fixtureOption {
	return func(c *fixtureConfig) {
		c.txManager = func(s *memory.Store) transaction.Manager {
			return &flakyTxManager{inner: s, failures: n}
		}
	}
}

func withLockTTL(d time.Duration) fixtureOption {
	return func(c *fixtureConfig) { c.issuance.LockTTL = d }
}

func withLockManager(lm redisinfra.LockManagerInterface) fixtureOption {
	return func(c *fixtureConfig) { c.lockManager = lm }
}

func withCache(cache ProfileCache) fixtureOption {
	return func(c *fixtureConfig) { c.cache = cache }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := fixtureConfig{issuance: DefaultIssuanceConfig()}
	cfg.issuance.CommitBackoff = time.Millisecond
	for _, opt := range opts {
		opt(&cfg)
	}

	store := memory.NewStore()
	f := &fixture{
		store:    store,
		events:   memory.NewEventRepository(store),
		tickets:  memory.NewTicketRepository(store),
		profiles: memory.NewProfileRepository(store),
		listings: memory.NewResaleRepository(store),
		recon:    memory.NewReconciliationRepository(store),
		bus:      memory.NewBus(),
		clock:    clock.NewFixed(baseTime),
		minter:   &fakeMinter{},
		metrics:  metrics.NewWithRegistry(prometheus.NewRegistry()),
	}
	f.txManager = store
	if cfg.txManager != nil {
		f.txManager = cfg.txManager(store)
	}
	f.lockManager = cfg.lockManager

	f.ledger = NewReputationLedger(f.profiles, cfg.cache, f.bus, f.clock)
	f.monitor = NewLifecycleMonitor(f.txManager, f.events, f.tickets, f.ledger, f.clock, f.metrics)
	f.issuance = NewIssuanceService(IssuanceDeps{
		TxManager:       f.txManager,
		Events:          f.events,
		Tickets:         f.tickets,
		Profiles:        f.profiles,
		Reconciliations: f.recon,
		Minter:          f.minter,
		LockManager:     cfg.lockManager,
		Ledger:          f.ledger,
		Publisher:       f.bus,
		Clock:           f.clock,
		Metrics:         f.metrics,
	}, cfg.issuance)
	f.eventSvc = NewEventService(f.txManager, f.events, f.profiles, f.recon, f.minter, f.ledger, f.bus, f.clock, f.metrics, time.Second)
	f.ticketSvc = NewTicketService(f.tickets, f.events, f.listings, f.monitor)
	f.resale = NewResaleMarket(f.listings, f.tickets, f.events, f.bus, f.clock, f.metrics)
	f.profileSvc = NewProfileService(f.profiles, cfg.cache, f.clock)
	f.reconSvc = NewReconciliationService(f.recon, f.issuance, f.clock, f.metrics)
	return f
}

func (f *fixture) addProfile(t *testing.T, id string, reputation int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.profiles.CreateIfNotExists(ctx, profile.NewProfile(id, id+"@example.com", f.clock.Now())))
	if reputation > 0 {
		_, err := f.profiles.AddReputation(ctx, nil, id, reputation)
		require.NoError(t, err)
	}
}

type eventOpts struct {
	id         int64
	max        int
	sold       int
	reputation int
	price      int64
	date       time.Time
	cancelled  bool
}

func (f *fixture) addEvent(t *testing.T, opts eventOpts) *event.Event {
	t.Helper()
	if opts.id == 0 {
		opts.id = 1700000000000
	}
	if opts.max == 0 {
		opts.max = 10
	}
	if opts.date.IsZero() {
		opts.date = f.clock.Now().Add(7 * 24 * time.Hour)
	}
	e := &event.Event{
		ID:                 opts.id,
		Name:               "Blockchain Summit",
		Location:           "Tokyo",
		Date:               opts.date,
		PriceWei:           opts.price,
		MaxTickets:         opts.max,
		TicketsSold:        opts.sold,
		ReputationRequired: opts.reputation,
		IsCancelled:        opts.cancelled,
		OrganizerID:        "organizer",
		OrganizerAddress:   "0xOrganizerAAAA",
		MetadataHash:       event.MetadataHashFor(opts.id),
		CreatedAt:          f.clock.Now(),
	}
	require.NoError(t, f.events.Create(context.Background(), nil, e))
	return e
}

func (f *fixture) sold(t *testing.T, id int64) int {
	t.Helper()
	e, err := f.events.GetByID(context.Background(), id)
	require.NoError(t, err)
	return e.TicketsSold
}

func (f *fixture) reputation(t *testing.T, id string) int {
	t.Helper()
	p, err := f.profiles.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Reputation
}

func buyer(id string, eventID int64) PurchaseInput {
	return PurchaseInput{EventID: eventID, BuyerID: id, BuyerAddress: "0xwallet-" + id}
}

// MockLockManager implements redisinfra.LockManagerInterface
type MockLockManager struct {
	mock.Mock
}

func (m *MockLockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (redisinfra.Lock, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(redisinfra.Lock), args.Error(1)
}

// MockLock implements redisinfra.Lock
type MockLock struct {
	mock.Mock
}

func (m *MockLock) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLock) Extend(ctx context.Context, ttl time.Duration) error {
	args := m.Called(ctx, ttl)
	return args.Error(0)
}

// MockProfileCache implements ProfileCache
type MockProfileCache struct {
	mock.Mock
}

func (m *MockProfileCache) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*profile.Profile), args.Error(1)
}

func (m *MockProfileCache) Set(ctx context.Context, p *profile.Profile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProfileCache) Invalidate(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (f *fixture) addTicket(t *testing.T, eventID int64, ownerID string) *ticket.Ticket {
	t.Helper()
	tk := ticket.NewTicket(eventID, ownerID, "0xwallet-"+ownerID, ticket.DefaultTokenURI, "0xhash-"+ownerID, fmt.Sprintf("nonce-%d-%s", eventID, ownerID), f.clock.Now())
	require.NoError(t, f.tickets.Create(context.Background(), nil, tk))
	return tk
}
