package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/davidumoru/shopcore/internal/core/domain"
	"github.com/davidumoru/shopcore/internal/port"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/shopcore?parseTime=true&multiStatements=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := RunMigrations(db); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}

	return db
}

func seedCatalog(t *testing.T, db *sql.DB, productID, supplierID string, variants map[string]int) {
	t.Helper()
	ctx := context.Background()

	var supplier any
	if supplierID != "" {
		supplier = supplierID
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO products (id, name, supplier_id) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE supplier_id = VALUES(supplier_id)`,
		productID, "test product", supplier)
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}

	for variantID, stock := range variants {
		_, err := db.ExecContext(ctx, `
			INSERT INTO variants (product_id, variant_id, stock) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE stock = VALUES(stock)`,
			productID, variantID, stock)
		if err != nil {
			t.Fatalf("seed variant: %v", err)
		}
	}
}

func cleanOrders(t *testing.T, db *sql.DB, txRef string) {
	t.Helper()
	ctx := context.Background()
	db.ExecContext(ctx, `DELETE oi FROM order_items oi JOIN orders o ON oi.order_id = o.id WHERE o.tx_ref = ?`, txRef)
	db.ExecContext(ctx, `DELETE FROM orders WHERE tx_ref = ?`, txRef)
}

func testDraft(txRef string, lines ...port.OrderLine) port.OrderDraft {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Item.Price.Mul(decimal.NewFromInt(int64(l.Item.Quantity))))
	}
	return port.OrderDraft{
		TxRef:         txRef,
		BuyerID:       "test-buyer",
		PaymentMethod: "card",
		Amount:        total,
		Lines:         lines,
		Address:       domain.ShippingAddress{Country: "NG", City: "Lagos"},
		Verification: &domain.Verification{
			State:    domain.VerificationSuccess,
			TxRef:    txRef,
			Amount:   total,
			Currency: "NGN",
			Email:    "shopper@example.com",
			PaidAt:   time.Now().UTC().Truncate(time.Second),
		},
	}
}

func line(productID, variantID string, quantity int) port.OrderLine {
	return port.OrderLine{
		ProductID: productID,
		VariantID: variantID,
		Item: domain.CartItem{
			ID:       productID + "_" + variantID,
			Name:     "test item",
			Price:    decimal.NewFromInt(1000),
			Quantity: quantity,
		},
	}
}

func variantStock(t *testing.T, adapter *MySQLAdapter, productID, variantID string) int {
	t.Helper()
	v, err := adapter.GetVariant(context.Background(), productID, variantID)
	if err != nil {
		t.Fatalf("get variant: %v", err)
	}
	if v == nil {
		t.Fatalf("variant %s_%s missing", productID, variantID)
	}
	return v.Stock
}

func TestPlaceOrder_DecrementsStockAndCreatesOrder(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()
	ctx := context.Background()
	adapter := NewMySQLAdapter(db, false)

	seedCatalog(t, db, "P1", "supplier-1", map[string]int{"V1": 5})
	txRef := fmt.Sprintf("tx-place-%d", time.Now().UnixNano())
	defer cleanOrders(t, db, txRef)

	placed, err := adapter.PlaceOrder(ctx, testDraft(txRef, line("P1", "V1", 2)))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if placed.AlreadyPlaced {
		t.Error("fresh tx_ref must not report a replay")
	}

	if got := variantStock(t, adapter, "P1", "V1"); got != 3 {
		t.Errorf("expected stock 3, got %d", got)
	}

	order, err := adapter.GetOrderByTxRef(ctx, txRef)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order == nil {
		t.Fatal("expected an order for tx_ref")
	}
	if order.Status != domain.OrderStatusProcessing {
		t.Errorf("expected status processing, got %s", order.Status)
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(order.Items))
	}
	item := order.Items[0]
	if item.Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", item.Quantity)
	}
	if item.SupplierID == nil || *item.SupplierID != "supplier-1" {
		t.Errorf("expected supplier-1 copied onto line item, got %v", item.SupplierID)
	}
}

func TestPlaceOrder_InsufficientStockLeavesEverythingUntouched(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()
	ctx := context.Background()
	adapter := NewMySQLAdapter(db, false)

	seedCatalog(t, db, "P1", "supplier-1", map[string]int{"V1": 5})
	seedCatalog(t, db, "P2", "supplier-2", map[string]int{"V9": 50})
	txRef := fmt.Sprintf("tx-short-%d", time.Now().UnixNano())
	defer cleanOrders(t, db, txRef)

	// P2_V9 has plenty; P1_V1 does not. Nothing may change.
	_, err := adapter.PlaceOrder(ctx, testDraft(txRef, line("P2", "V9", 1), line("P1", "V1", 10)))

	var insufficient *domain.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.ItemID != "P1_V1" || insufficient.Available != 5 || insufficient.Requested != 10 {
		t.Errorf("unexpected rejection detail: %+v", insufficient)
	}

	if got := variantStock(t, adapter, "P1", "V1"); got != 5 {
		t.Errorf("P1_V1 stock must stay 5, got %d", got)
	}
	if got := variantStock(t, adapter, "P2", "V9"); got != 50 {
		t.Errorf("P2_V9 stock must stay 50, got %d", got)
	}

	order, err := adapter.GetOrderByTxRef(ctx, txRef)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order != nil {
		t.Error("no order may exist after an aborted placement")
	}
}

func TestPlaceOrder_MissingVariantAborts(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()
	ctx := context.Background()
	adapter := NewMySQLAdapter(db, false)

	seedCatalog(t, db, "P1", "supplier-1", map[string]int{"V1": 5})
	txRef := fmt.Sprintf("tx-novariant-%d", time.Now().UnixNano())
	defer cleanOrders(t, db, txRef)

	_, err := adapter.PlaceOrder(ctx, testDraft(txRef, line("P1", "V1", 1), line("P1", "GHOST", 1)))
	if !errors.Is(err, domain.ErrVariantNotFound) {
		t.Fatalf("expected ErrVariantNotFound, got %v", err)
	}

	if got := variantStock(t, adapter, "P1", "V1"); got != 5 {
		t.Errorf("stock must stay 5 after abort, got %d", got)
	}
}

func TestPlaceOrder_ReplaySameTxRefCreatesOneOrder(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()
	ctx := context.Background()
	adapter := NewMySQLAdapter(db, false)

	seedCatalog(t, db, "P1", "supplier-1", map[string]int{"V1": 5})
	txRef := fmt.Sprintf("tx-replay-%d", time.Now().UnixNano())
	defer cleanOrders(t, db, txRef)

	draft := testDraft(txRef, line("P1", "V1", 2))

	first, err := adapter.PlaceOrder(ctx, draft)
	if err != nil {
		t.Fatalf("first placement: %v", err)
	}

	second, err := adapter.PlaceOrder(ctx, draft)
	if err != nil {
		t.Fatalf("replay placement: %v", err)
	}
	if !second.AlreadyPlaced {
		t.Error("replay must be flagged AlreadyPlaced")
	}
	if second.OrderID != first.OrderID {
		t.Errorf("replay returned %s, want %s", second.OrderID, first.OrderID)
	}

	// Stock decremented exactly once.
	if got := variantStock(t, adapter, "P1", "V1"); got != 3 {
		t.Errorf("expected stock 3 after replay, got %d", got)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE tx_ref = ?`, txRef).Scan(&count); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one order, got %d", count)
	}
}

func TestPlaceOrder_MissingProductYieldsNullSupplier(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()
	ctx := context.Background()
	adapter := NewMySQLAdapter(db, false)

	// Variant exists, parent product row does not.
	seedCatalog(t, db, "ORPHANP", "", map[string]int{"V1": 5})
	db.ExecContext(ctx, `DELETE FROM products WHERE id = 'ORPHANP'`)
	txRef := fmt.Sprintf("tx-orphan-%d", time.Now().UnixNano())
	defer cleanOrders(t, db, txRef)

	_, err := adapter.PlaceOrder(ctx, testDraft(txRef, line("ORPHANP", "V1", 1)))
	if err != nil {
		t.Fatalf("placement must succeed with a null supplier: %v", err)
	}

	order, err := adapter.GetOrderByTxRef(ctx, txRef)
	if err != nil || order == nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Items[0].SupplierID != nil {
		t.Errorf("expected null supplier, got %v", *order.Items[0].SupplierID)
	}
}

func TestPlaceOrder_RequireSupplierPolicyAborts(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()
	ctx := context.Background()
	adapter := NewMySQLAdapter(db, true)

	seedCatalog(t, db, "NOSUP", "", map[string]int{"V1": 5})
	txRef := fmt.Sprintf("tx-nosup-%d", time.Now().UnixNano())
	defer cleanOrders(t, db, txRef)

	_, err := adapter.PlaceOrder(ctx, testDraft(txRef, line("NOSUP", "V1", 1)))
	if !errors.Is(err, domain.ErrSupplierUnresolved) {
		t.Fatalf("expected ErrSupplierUnresolved, got %v", err)
	}

	if got := variantStock(t, adapter, "NOSUP", "V1"); got != 5 {
		t.Errorf("stock must stay 5 after policy abort, got %d", got)
	}
}

func TestPlaceOrder_DuplicateVariantLinesSumQuantities(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()
	ctx := context.Background()
	adapter := NewMySQLAdapter(db, false)

	seedCatalog(t, db, "P1", "supplier-1", map[string]int{"V1": 5})
	txRef := fmt.Sprintf("tx-dupline-%d", time.Now().UnixNano())
	defer cleanOrders(t, db, txRef)

	_, err := adapter.PlaceOrder(ctx, testDraft(txRef, line("P1", "V1", 3), line("P1", "V1", 3)))

	var insufficient *domain.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError for summed quantity 6 > 5, got %v", err)
	}
	if insufficient.Requested != 6 {
		t.Errorf("expected requested 6, got %d", insufficient.Requested)
	}
}
