package core_test

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"sales-ledger/internal/core"
	"sales-ledger/internal/db"
)

var (
	ownerID       = uuid.MustParse(db.SeedOwnerID)
	adminID       = uuid.MustParse(db.SeedAdminID)
	sellerID      = uuid.MustParse(db.SeedSellerID)
	sellerTwinID  = uuid.MustParse(db.SeedSellerTwinID)
	otherSellerID = uuid.MustParse(db.SeedOtherSellerID)
	customerID    = uuid.MustParse(db.SeedCustomerID)
	shampooID     = uuid.MustParse(db.SeedShampooID)
	conditionerID = uuid.MustParse(db.SeedConditionerID)
	maskID        = uuid.MustParse(db.SeedMaskID)
	maskRefillID  = uuid.MustParse(db.SeedMaskRefillID)
	serviceKitID  = uuid.MustParse(db.SeedServiceKitID)
	packPromoID   = uuid.MustParse(db.SeedPackPromoID)
	giftPromoID   = uuid.MustParse(db.SeedGiftPromoID)
)

// recordingNotifier keeps every event it is handed.
type recordingNotifier struct {
	mu     sync.Mutex
	events []core.Event
}

func (n *recordingNotifier) Notify(_ context.Context, evt core.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return nil
}

func (n *recordingNotifier) ofType(t core.EventType) []core.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []core.Event
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	ctx        context.Context
	pool       *pgxpool.Pool
	notifier   *recordingNotifier
	orders     core.OrderService
	discounts  core.DiscountService
	payments   core.PaymentService
	transfers  core.TransferService
	promotions core.PromotionService
	stock      core.StockLedger
	catalog    core.Catalog
	agents     core.AgentDirectory
}

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err, "connect to test database")
	t.Cleanup(pool.Close)

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	_, err = db.Migrate(ctx, pool, "../../migrations", quiet)
	require.NoError(t, err, "migrate test database")

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE payment_transfers, payments, order_discounts, order_items, orders,
			stock_movements, promotion_gift_items, promotions, products, tags, customers,
			sale_goals, invoice_sequences, agents CASCADE;
	`)
	require.NoError(t, err, "truncate test database")
	require.NoError(t, db.Seed(ctx, pool), "seed test database")

	now := time.Now()
	_, err = pool.Exec(ctx, `
		INSERT INTO sale_goals (agent_id, month, year, target_amount) VALUES ($1, $2, $3, 5000)
	`, sellerID, int(now.Month()), now.Year())
	require.NoError(t, err, "seed sale goal")

	return pool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	pool := setupTestDB(t)

	log := logrus.New()
	log.SetOutput(io.Discard)
	aliases := core.AgentAliases{sellerTwinID: sellerID}
	canonicalize := core.CanonicalizerFromAliases(aliases)
	notifier := &recordingNotifier{}
	stock := core.NewStockLedger(pool)
	catalog := core.NewCatalog(pool)

	return &testEnv{
		ctx:      context.Background(),
		pool:     pool,
		notifier: notifier,
		orders: core.NewOrderService(pool, core.OrderDeps{
			Stock:        stock,
			Catalog:      catalog,
			Tags:         core.NewTagResolver(db.SeedSystemTagName),
			Customers:    core.NewCustomerDirectory(),
			Invoices:     core.NewInvoiceSequencer(1),
			Goals:        core.NewGoalTracker(log),
			Notifier:     notifier,
			Canonicalize: canonicalize,
			Log:          log,
		}),
		discounts:  core.NewDiscountService(pool, log, nil),
		payments:   core.NewPaymentService(pool, log, nil),
		transfers:  core.NewTransferService(pool, aliases, log, nil),
		promotions: core.NewPromotionService(pool, nil),
		stock:      stock,
		catalog:    catalog,
		agents:     core.NewAgentDirectory(pool),
	}
}

func (e *testEnv) stockOf(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var n int
	require.NoError(t, e.pool.QueryRow(e.ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&n))
	return n
}

// createOrder places a single-order sale of shampoo for the seller.
func (e *testEnv) createOrder(t *testing.T, qty int) *core.Order {
	t.Helper()
	orders, err := e.orders.CreateOrder(e.ctx, core.CreateOrderInput{
		ActorID: sellerID,
		Items:   []core.OrderItemInput{{ProductID: shampooID, Quantity: qty}},
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	return orders[0]
}

// completedOrder places and completes a shampoo order worth qty * 100.
func (e *testEnv) completedOrder(t *testing.T, qty int) *core.Order {
	t.Helper()
	o := e.createOrder(t, qty)
	o, err := e.orders.ChangeStatus(e.ctx, o.ID, core.OrderStatusCompleted)
	require.NoError(t, err)
	return o
}
