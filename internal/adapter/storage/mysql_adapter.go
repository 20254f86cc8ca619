package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/davidumoru/shopcore/internal/core/domain"
	"github.com/davidumoru/shopcore/internal/port"
)

const mysqlDupEntry = 1062

type MySQLAdapter struct {
	db *sql.DB

	// requireSupplier aborts placement when a parent product is missing
	// instead of writing a NULL supplier on the line item.
	requireSupplier bool
}

func NewMySQLAdapter(db *sql.DB, requireSupplier bool) *MySQLAdapter {
	return &MySQLAdapter{db: db, requireSupplier: requireSupplier}
}

// PlaceOrder reads stock for every referenced variant, validates
// sufficiency, decrements, and inserts the order with its line items in
// one transaction. A draft whose tx_ref already has an order is a
// replay: the existing order id is returned and nothing is written.
func (m *MySQLAdapter) PlaceOrder(ctx context.Context, draft port.OrderDraft) (*port.PlacedOrder, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM orders WHERE tx_ref = ?`, draft.TxRef,
	).Scan(&existingID)
	if err == nil {
		return &port.PlacedOrder{OrderID: existingID, AlreadyPlaced: true}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup order by tx_ref: %w", err)
	}

	// Lock every referenced variant row, summing quantities in case the
	// cart carries the same variant on more than one line.
	type variantKey struct{ productID, variantID string }
	wanted := make(map[variantKey]int)
	keys := make([]variantKey, 0, len(draft.Lines))
	for _, line := range draft.Lines {
		k := variantKey{line.ProductID, line.VariantID}
		if _, seen := wanted[k]; !seen {
			keys = append(keys, k)
		}
		wanted[k] += line.Item.Quantity
	}

	for _, k := range keys {
		var stock int
		err := tx.QueryRowContext(ctx, `
			SELECT stock FROM variants
			WHERE product_id = ? AND variant_id = ? FOR UPDATE`,
			k.productID, k.variantID,
		).Scan(&stock)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s_%s", domain.ErrVariantNotFound, k.productID, k.variantID)
		}
		if err != nil {
			return nil, fmt.Errorf("query variant stock: %w", err)
		}
		if stock < wanted[k] {
			return nil, &domain.InsufficientStockError{
				ItemID:    k.productID + "_" + k.variantID,
				Available: stock,
				Requested: wanted[k],
			}
		}
	}

	suppliers, err := m.resolveSuppliers(ctx, tx, draft.Lines)
	if err != nil {
		return nil, err
	}

	for _, k := range keys {
		res, err := tx.ExecContext(ctx, `
			UPDATE variants SET stock = stock - ?
			WHERE product_id = ? AND variant_id = ? AND stock >= ?`,
			wanted[k], k.productID, k.variantID, wanted[k],
		)
		if err != nil {
			return nil, fmt.Errorf("decrement stock: %w", err)
		}
		rows, _ := res.RowsAffected()
		if rows == 0 {
			// Stock moved under the FOR UPDATE lock; refuse to oversell.
			return nil, fmt.Errorf("decrement stock %s_%s: no rows affected", k.productID, k.variantID)
		}
	}

	orderID := uuid.NewString()
	now := time.Now().UTC()
	if err := insertOrder(ctx, tx, orderID, draft, now); err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDupEntry {
			// A concurrent duplicate won the tx_ref race; drop our writes
			// and report the winner's order.
			tx.Rollback()
			var winnerID string
			if qErr := m.db.QueryRowContext(ctx,
				`SELECT id FROM orders WHERE tx_ref = ?`, draft.TxRef,
			).Scan(&winnerID); qErr != nil {
				return nil, fmt.Errorf("lookup winning order: %w", qErr)
			}
			return &port.PlacedOrder{OrderID: winnerID, AlreadyPlaced: true}, nil
		}
		return nil, err
	}

	for _, line := range draft.Lines {
		attrs, err := json.Marshal(line.Item.Attributes)
		if err != nil {
			return nil, fmt.Errorf("marshal item attributes: %w", err)
		}
		// Duplicate variant lines merge into one row, matching the summed
		// stock decrement above.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items
				(order_id, item_id, product_id, variant_id, name, price, quantity, supplier_id, attributes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)`,
			orderID, line.Item.ID, line.ProductID, line.VariantID,
			line.Item.Name, line.Item.Price.String(), line.Item.Quantity,
			suppliers[line.ProductID], attrs,
		)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}

	return &port.PlacedOrder{OrderID: orderID}, nil
}

// resolveSuppliers loads the supplier for every distinct product in the
// draft. A missing product or supplier resolves to NULL with a warning
// unless the require-supplier policy is on.
func (m *MySQLAdapter) resolveSuppliers(ctx context.Context, tx *sql.Tx, lines []port.OrderLine) (map[string]*string, error) {
	suppliers := make(map[string]*string)
	for _, line := range lines {
		if _, done := suppliers[line.ProductID]; done {
			continue
		}
		var supplierID sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT supplier_id FROM products WHERE id = ?`, line.ProductID,
		).Scan(&supplierID)
		switch {
		case errors.Is(err, sql.ErrNoRows) || (err == nil && !supplierID.Valid):
			if m.requireSupplier {
				return nil, fmt.Errorf("%w: %s", domain.ErrSupplierUnresolved, line.ProductID)
			}
			log.Warn().Str("productId", line.ProductID).
				Msg("supplier unresolved; line item will carry a null supplier")
			suppliers[line.ProductID] = nil
		case err != nil:
			return nil, fmt.Errorf("query product supplier: %w", err)
		default:
			s := supplierID.String
			suppliers[line.ProductID] = &s
		}
	}
	return suppliers, nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, orderID string, draft port.OrderDraft, now time.Time) error {
	v := draft.Verification
	var paidAt, gwAmount, gwCurrency, email, firstName, lastName any
	if v != nil {
		if !v.PaidAt.IsZero() {
			paidAt = v.PaidAt.UTC()
		}
		gwAmount = v.Amount.String()
		gwCurrency = v.Currency
		email = v.Email
		firstName = v.FirstName
		lastName = v.LastName
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders
			(id, buyer_id, tx_ref, total, payment_method, status, payment_status,
			 gateway_amount, gateway_currency, payer_email, payer_first_name, payer_last_name, paid_at,
			 ship_country, ship_name, ship_street, ship_apartment, ship_city, ship_postal_code, ship_phone,
			 ship_lat, ship_lng, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		orderID, draft.BuyerID, draft.TxRef, draft.Amount.String(), draft.PaymentMethod,
		domain.OrderStatusProcessing, domain.PaymentStatusPaid,
		gwAmount, gwCurrency, email, firstName, lastName, paidAt,
		draft.Address.Country, draft.Address.Name, draft.Address.Street, draft.Address.Apartment,
		draft.Address.City, draft.Address.PostalCode, draft.Address.Phone,
		draft.Address.Latitude, draft.Address.Longitude, now,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetVariant(ctx context.Context, productID, variantID string) (*domain.Variant, error) {
	var v domain.Variant
	err := m.db.QueryRowContext(ctx, `
		SELECT product_id, variant_id, stock, updated_at
		FROM variants WHERE product_id = ? AND variant_id = ?`,
		productID, variantID,
	).Scan(&v.ProductID, &v.VariantID, &v.Stock, &v.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query variant: %w", err)
	}
	return &v, nil
}

func (m *MySQLAdapter) GetOrderByTxRef(ctx context.Context, txRef string) (*domain.Order, error) {
	var (
		o     domain.Order
		total string
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, tx_ref, total, payment_method, status, payment_status, created_at
		FROM orders WHERE tx_ref = ?`, txRef,
	).Scan(&o.ID, &o.BuyerID, &o.TxRef, &total, &o.PaymentMethod, &o.Status, &o.PaymentStatus, &o.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse order total: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT item_id, product_id, variant_id, name, price, quantity, supplier_id
		FROM order_items WHERE order_id = ?`, o.ID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item     domain.OrderItem
			price    string
			supplier sql.NullString
		)
		if err := rows.Scan(&item.CartItem.ID, &item.ProductID, &item.VariantID,
			&item.CartItem.Name, &price, &item.CartItem.Quantity, &supplier); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if item.CartItem.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse item price: %w", err)
		}
		if supplier.Valid {
			s := supplier.String
			item.SupplierID = &s
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return &o, nil
}
