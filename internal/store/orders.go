package store

import "context"

// InsertOrder upserts an order row, relying on the
// UNIQUE(idempotency_key, purpose) constraint: a retried submission for
// the same logical order (entry, TP1, TP2, runner, stop) updates the
// existing row instead of creating a duplicate.
func (s *Store) InsertOrder(ctx context.Context, o Order) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO orders (
			order_id, idempotency_key, purpose, side, order_type, qty, price, reduce_only,
			status, exchange_order_id, exchange_link_id, filled_qty, avg_price, submitted_at_ms,
			retry_count, last_fill_at_ms, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (idempotency_key, purpose) DO UPDATE SET
			status = excluded.status,
			exchange_order_id = excluded.exchange_order_id,
			exchange_link_id = excluded.exchange_link_id,
			filled_qty = excluded.filled_qty,
			avg_price = excluded.avg_price,
			submitted_at_ms = excluded.submitted_at_ms,
			retry_count = excluded.retry_count,
			last_fill_at_ms = excluded.last_fill_at_ms,
			payload = excluded.payload
	`, o.OrderID, o.IdempotencyKey, o.Purpose, o.Side, o.OrderType, o.Qty, o.Price, o.ReduceOnly,
		o.Status, o.ExchangeOrderID, o.ExchangeLinkID, o.FilledQty, o.AvgPrice, o.SubmittedAtMs,
		o.RetryCount, o.LastFillAtMs, o.Payload)
	return err
}

// GetOrderByIdempotency fetches an order by its (idempotency_key,
// purpose) pair — the admission pipeline's duplicate-submission guard.
func (s *Store) GetOrderByIdempotency(ctx context.Context, idempotencyKey, purpose string) (Order, bool, error) {
	var o Order
	err := s.db.Pool.QueryRow(ctx, `
		SELECT order_id, idempotency_key, purpose, side, order_type, qty, price, reduce_only,
			status, exchange_order_id, exchange_link_id, filled_qty, avg_price, submitted_at_ms,
			retry_count, last_fill_at_ms, payload
		FROM orders WHERE idempotency_key = $1 AND purpose = $2
	`, idempotencyKey, purpose).Scan(&o.OrderID, &o.IdempotencyKey, &o.Purpose, &o.Side, &o.OrderType, &o.Qty, &o.Price, &o.ReduceOnly,
		&o.Status, &o.ExchangeOrderID, &o.ExchangeLinkID, &o.FilledQty, &o.AvgPrice, &o.SubmittedAtMs,
		&o.RetryCount, &o.LastFillAtMs, &o.Payload)
	if err != nil {
		if isNoRows(err) {
			return Order{}, false, nil
		}
		return Order{}, false, err
	}
	return o, true, nil
}

// ListOpenOrders returns orders not yet in a terminal state, for
// reconciliation against the exchange's live order list.
func (s *Store) ListOpenOrders(ctx context.Context) ([]Order, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT order_id, idempotency_key, purpose, side, order_type, qty, price, reduce_only,
			status, exchange_order_id, exchange_link_id, filled_qty, avg_price, submitted_at_ms,
			retry_count, last_fill_at_ms, payload
		FROM orders WHERE status NOT IN ('FILLED', 'CANCELLED', 'REJECTED')
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.OrderID, &o.IdempotencyKey, &o.Purpose, &o.Side, &o.OrderType, &o.Qty, &o.Price, &o.ReduceOnly,
			&o.Status, &o.ExchangeOrderID, &o.ExchangeLinkID, &o.FilledQty, &o.AvgPrice, &o.SubmittedAtMs,
			&o.RetryCount, &o.LastFillAtMs, &o.Payload); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

// ListOrdersByIdempotency returns every order row (entry, tp1, tp2, ...)
// for one plan, regardless of purpose — the paper/backtest simulator
// uses this to find a position's TP1/TP2 legs without knowing their
// purpose names in advance.
func (s *Store) ListOrdersByIdempotency(ctx context.Context, idempotencyKey string) ([]Order, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT order_id, idempotency_key, purpose, side, order_type, qty, price, reduce_only,
			status, exchange_order_id, exchange_link_id, filled_qty, avg_price, submitted_at_ms,
			retry_count, last_fill_at_ms, payload
		FROM orders WHERE idempotency_key = $1
	`, idempotencyKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.OrderID, &o.IdempotencyKey, &o.Purpose, &o.Side, &o.OrderType, &o.Qty, &o.Price, &o.ReduceOnly,
			&o.Status, &o.ExchangeOrderID, &o.ExchangeLinkID, &o.FilledQty, &o.AvgPrice, &o.SubmittedAtMs,
			&o.RetryCount, &o.LastFillAtMs, &o.Payload); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

// UpdateOrderFill records a partial/full fill update against an order row.
func (s *Store) UpdateOrderFill(ctx context.Context, orderID, status string, filledQty, avgPrice float64, lastFillAtMs int64) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE orders SET status = $1, filled_qty = $2, avg_price = $3, last_fill_at_ms = $4
		WHERE order_id = $5
	`, status, filledQty, avgPrice, lastFillAtMs, orderID)
	return err
}

// IncrementRetryCount bumps retry_count after a submission failure the
// caller intends to retry.
func (s *Store) IncrementRetryCount(ctx context.Context, orderID string) error {
	_, err := s.db.Pool.Exec(ctx, `UPDATE orders SET retry_count = retry_count + 1 WHERE order_id = $1`, orderID)
	return err
}

// InsertFill records one execution report against an order.
func (s *Store) InsertFill(ctx context.Context, f Fill) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO fills (id, order_id, exec_qty, exec_price, exec_fee, exec_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, f.ID, f.OrderID, f.ExecQty, f.ExecPrice, f.ExecFee, f.ExecTimeMs)
	return err
}

// ListFillsByOrder returns every fill recorded against an order, oldest
// first.
func (s *Store) ListFillsByOrder(ctx context.Context, orderID string) ([]Fill, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, order_id, exec_qty, exec_price, exec_fee, exec_time_ms
		FROM fills WHERE order_id = $1 ORDER BY exec_time_ms ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Fill
	for rows.Next() {
		var f Fill
		if err := rows.Scan(&f.ID, &f.OrderID, &f.ExecQty, &f.ExecPrice, &f.ExecFee, &f.ExecTimeMs); err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

// ListOrders returns the most recently submitted orders (newest first),
// capped at limit — the API's read-only /orders query endpoint.
func (s *Store) ListOrders(ctx context.Context, limit int) ([]Order, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT order_id, idempotency_key, purpose, side, order_type, qty, price, reduce_only,
			status, exchange_order_id, exchange_link_id, filled_qty, avg_price, submitted_at_ms,
			retry_count, last_fill_at_ms, payload
		FROM orders ORDER BY submitted_at_ms DESC NULLS LAST LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.OrderID, &o.IdempotencyKey, &o.Purpose, &o.Side, &o.OrderType, &o.Qty, &o.Price, &o.ReduceOnly,
			&o.Status, &o.ExchangeOrderID, &o.ExchangeLinkID, &o.FilledQty, &o.AvgPrice, &o.SubmittedAtMs,
			&o.RetryCount, &o.LastFillAtMs, &o.Payload); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}
