//go:build integration

package integration

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogapp "github.com/dmehra2102/checkout-service/internal/catalog/application"
	catalog "github.com/dmehra2102/checkout-service/internal/catalog/domain"
	catalogpg "github.com/dmehra2102/checkout-service/internal/catalog/infrastructure/postgres"
	orderapp "github.com/dmehra2102/checkout-service/internal/order/application"
	order "github.com/dmehra2102/checkout-service/internal/order/domain"
	orderpg "github.com/dmehra2102/checkout-service/internal/order/infrastructure/postgres"
	paymentapp "github.com/dmehra2102/checkout-service/internal/payment/application"
	payment "github.com/dmehra2102/checkout-service/internal/payment/domain"
	"github.com/dmehra2102/checkout-service/internal/payment/infrastructure/gateway"
	paymentpg "github.com/dmehra2102/checkout-service/internal/payment/infrastructure/postgres"
	reportingapp "github.com/dmehra2102/checkout-service/internal/reporting/application"
	reportingpg "github.com/dmehra2102/checkout-service/internal/reporting/infrastructure/postgres"
	"github.com/dmehra2102/checkout-service/pkg/apperr"
	"github.com/dmehra2102/checkout-service/pkg/auth"
	"github.com/dmehra2102/checkout-service/pkg/database"
	"github.com/dmehra2102/checkout-service/pkg/outbox"
)

const topic = "checkout.events"

var (
	testEnv *Env
	pool    *pgxpool.Pool
	log     = slog.New(slog.NewTextHandler(io.Discard, nil))
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	var err error
	testEnv, err = Setup(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "integration setup:", err)
		os.Exit(1)
	}
	pool, err = database.Connect(ctx, log, testEnv.PGURL)
	if err != nil {
		testEnv.Teardown(ctx)
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(1)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}

	code := m.Run()
	pool.Close()
	testEnv.Teardown(ctx)
	os.Exit(code)
}

type services struct {
	orders   *orderapp.Service
	payments *paymentapp.Service
	reports  *reportingapp.Service
	outbox   *outbox.PGStore
	items    map[string]int64
}

func newServices(t *testing.T) services {
	t.Helper()
	ctx := context.Background()
	_, err := pool.Exec(ctx, `TRUNCATE outbox, payments, order_items, orders, items, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	items := catalogpg.NewRepository(log, pool)
	ids := map[string]int64{}
	for _, it := range []catalog.Item{
		{Name: "Laptop", Price: decimal.RequireFromString("999.99"), IsActive: true},
		{Name: "Mouse", Price: decimal.RequireFromString("19.99"), IsActive: true},
		{Name: "Discontinued", Price: decimal.RequireFromString("1.00"), IsActive: false},
	} {
		id, err := items.Upsert(ctx, it)
		require.NoError(t, err)
		ids[it.Name] = id
	}
	_, err = pool.Exec(ctx, `INSERT INTO users (id, name, email, role) VALUES (42, 'Ana Silva', 'ana@example.com', 'user')`)
	require.NoError(t, err)

	tx := database.NewTxManager(log, pool)
	events := outbox.NewPGStore(log, pool, "checkout-test")
	orders := orderpg.NewRepository(log, pool)
	payments := paymentpg.NewRepository(log, pool)
	pricer := orderapp.NewPricer(catalogapp.NewService(log, items), decimal.NewFromInt(10), decimal.NewFromInt(50))

	return services{
		orders:   orderapp.NewService(log, tx, pricer, orders, payments, events),
		payments: paymentapp.NewService(log, tx, orders, payments, gateway.NewStub(log), events),
		reports:  reportingapp.NewService(log, reportingpg.NewRepository(log, pool), 7),
		outbox:   events,
		items:    ids,
	}
}

var customer = auth.Principal{UserID: 42}

func request(method string, lines ...orderapp.CartLine) orderapp.CheckoutRequest {
	return orderapp.CheckoutRequest{
		Items:           lines,
		PaymentMethod:   method,
		ShippingName:    "Ana Silva",
		ShippingAddress: "12 Rua Augusta, Lisboa",
		ShippingPhone:   "912345678",
		ShippingEmail:   "ana@example.com",
	}
}

func count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestCheckoutPersistsOrderPaymentAndEvent(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	o, err := s.orders.CreateOrder(ctx, customer, request("cod",
		orderapp.CartLine{ItemID: s.items["Laptop"], Quantity: 1},
		orderapp.CartLine{ItemID: s.items["Mouse"], Quantity: 2},
	))
	require.NoError(t, err)

	got, err := s.orders.GetOrder(ctx, customer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "1039.97", got.Subtotal.StringFixed(2))
	assert.Equal(t, "104.00", got.Tax.StringFixed(2))
	assert.Equal(t, "1193.97", got.TotalAmount.StringFixed(2))
	assert.Len(t, got.Items, 2)
	require.NotNil(t, got.Payment)
	assert.Equal(t, payment.StatusPending, got.Payment.Status)
	assert.True(t, got.Payment.Amount.Equal(got.TotalAmount))
	assert.Equal(t, 1, count(t, "outbox"))
}

func TestCheckoutInactiveItemWritesNothing(t *testing.T) {
	s := newServices(t)
	_, err := s.orders.CreateOrder(context.Background(), customer, request("online",
		orderapp.CartLine{ItemID: s.items["Discontinued"], Quantity: 1},
	))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	for _, table := range []string{"orders", "order_items", "payments", "outbox"} {
		assert.Zero(t, count(t, table), table)
	}
}

func TestProcessPaymentAndRelayToKafka(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	o, err := s.orders.CreateOrder(ctx, customer, request("online", orderapp.CartLine{ItemID: s.items["Mouse"], Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, o.Status)

	res, err := s.payments.ProcessPayment(ctx, customer, o.ID, paymentapp.ProcessRequest{TransactionID: "TXN123456"})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, res.PaymentStatus)
	paidAt := *res.Order.Payment.PaidAt

	again, err := s.payments.ProcessPayment(ctx, customer, o.ID, paymentapp.ProcessRequest{})
	require.NoError(t, err)
	assert.True(t, paidAt.Equal(*again.Order.Payment.PaidAt))

	writer := outbox.NewKafkaWriter(testEnv.KAddr)
	defer writer.Close()
	relay := outbox.NewRelay(log, s.outbox, outbox.NewKafkaPublisher(writer, topic), "relay-it")

	var sent int
	require.Eventually(t, func() bool {
		n, err := relay.RunOnce(ctx)
		sent += n
		if err != nil {
			return false
		}
		return sent == 2
	}, 60*time.Second, time.Second)

	reader := kafka.NewReader(kafka.ReaderConfig{Brokers: testEnv.KAddr, Topic: topic, StartOffset: kafka.FirstOffset})
	defer reader.Close()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var types []string
	for len(types) < 2 {
		msg, err := reader.ReadMessage(readCtx)
		require.NoError(t, err)
		if string(msg.Key) != o.OrderNumber {
			continue
		}
		for _, h := range msg.Headers {
			if h.Key == "event_type" {
				types = append(types, string(h.Value))
			}
		}
	}
	assert.Equal(t, []string{order.EventOrderCreated, payment.EventPaymentCompleted}, types)

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE status <> 'sent'`).Scan(&pending))
	assert.Zero(t, pending)
}

func TestOutboxMarkFailedParksAfterMaxRetries(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	require.NoError(t, s.outbox.Append(ctx, "order", "ORD-X", "order.created", map[string]string{"k": "v"}))

	for i := 0; i < 2; i++ {
		events, err := s.outbox.LockBatch(ctx, "relay-a", 10, time.Minute)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.NoError(t, s.outbox.MarkFailed(ctx, events[0].ID, "broker down", 2))
	}

	var status string
	var retries int
	require.NoError(t, pool.QueryRow(ctx, `SELECT status, retry_count FROM outbox`).Scan(&status, &retries))
	assert.Equal(t, "failed", status)
	assert.Equal(t, 2, retries)

	events, err := s.outbox.LockBatch(ctx, "relay-a", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestOutboxReclaimsExpiredLease(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	require.NoError(t, s.outbox.Append(ctx, "order", "ORD-Y", "order.created", struct{}{}))

	first, err := s.outbox.LockBatch(ctx, "relay-a", 10, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, first, 1)
	time.Sleep(20 * time.Millisecond)

	second, err := s.outbox.LockBatch(ctx, "relay-b", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestReportingQueries(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	empty, err := s.reports.Dashboard(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalOrders)
	assert.Equal(t, "0.00", empty.TotalSales.StringFixed(2))

	var buf bytes.Buffer
	require.NoError(t, s.reports.ExportCSV(ctx, reportingapp.Filter{}, &buf))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))

	paid, err := s.orders.CreateOrder(ctx, customer, request("cod", orderapp.CartLine{ItemID: s.items["Laptop"], Quantity: 1}))
	require.NoError(t, err)
	_, err = s.payments.ProcessPayment(ctx, customer, paid.ID, paymentapp.ProcessRequest{})
	require.NoError(t, err)
	_, err = s.orders.CreateOrder(ctx, auth.Principal{UserID: 77}, request("online", orderapp.CartLine{ItemID: s.items["Mouse"], Quantity: 1}))
	require.NoError(t, err)

	d, err := s.reports.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, d.TotalOrders)
	assert.Equal(t, 1, d.CompletedOrders)
	assert.Equal(t, 1, d.CODPayments)
	assert.Equal(t, "1149.99", d.TotalSales.StringFixed(2))
	assert.Equal(t, "71.99", d.UnpaidAmount.StringFixed(2))
	assert.Equal(t, 1, d.OrdersByStatus["processing"])
	assert.Len(t, d.RecentOrders, 2)
	assert.Equal(t, "1149.99", d.SalesByDay[len(d.SalesByDay)-1].Total.StringFixed(2))

	page, err := s.reports.ListOrders(ctx, reportingapp.Filter{PaymentStatus: "completed"}, 1)
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, "Ana Silva", page.Orders[0].UserName)

	today := time.Now().UTC().Truncate(24 * time.Hour)
	page, err = s.reports.ListOrders(ctx, reportingapp.Filter{DateFrom: &today, DateTo: &today}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Meta.Total)

	buf.Reset()
	require.NoError(t, s.reports.ExportCSV(ctx, reportingapp.Filter{PaymentMethod: "online"}, &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], ",,")
	assert.Contains(t, lines[1], "71.99")
}
