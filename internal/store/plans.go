package store

import "context"

// InsertTradePlan persists a plan, returning inserted=false when
// idempotency_key already existed — the plan-idempotency invariant.
func (s *Store) InsertTradePlan(ctx context.Context, p TradePlan) (inserted bool, err error) {
	tag, err := s.db.Pool.Exec(ctx, `
		INSERT INTO trade_plans (
			idempotency_key, plan_id, symbol, timeframe, side, entry_price, primary_sl_price,
			tp_rules, secondary_sl_rule, risk_pct, status, valid_from_ms, expires_at_ms, created_at_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, p.IdempotencyKey, p.PlanID, p.Symbol, p.Timeframe, p.Side, p.EntryPrice, p.PrimarySLPrice,
		p.TPRules, p.SecondarySLRule, p.RiskPct, p.Status, p.ValidFromMs, p.ExpiresAtMs, p.CreatedAtMs)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetTradePlan fetches a plan by plan_id.
func (s *Store) GetTradePlan(ctx context.Context, planID string) (TradePlan, bool, error) {
	var p TradePlan
	err := s.db.Pool.QueryRow(ctx, `
		SELECT idempotency_key, plan_id, symbol, timeframe, side, entry_price, primary_sl_price,
			tp_rules, secondary_sl_rule, risk_pct, status, valid_from_ms, expires_at_ms, created_at_ms
		FROM trade_plans WHERE plan_id = $1
	`, planID).Scan(&p.IdempotencyKey, &p.PlanID, &p.Symbol, &p.Timeframe, &p.Side, &p.EntryPrice, &p.PrimarySLPrice,
		&p.TPRules, &p.SecondarySLRule, &p.RiskPct, &p.Status, &p.ValidFromMs, &p.ExpiresAtMs, &p.CreatedAtMs)
	if err != nil {
		if isNoRows(err) {
			return TradePlan{}, false, nil
		}
		return TradePlan{}, false, err
	}
	return p, true, nil
}

// UpdatePlanStatus transitions a plan's status (e.g. PENDING -> EXPIRED,
// PENDING -> ADMITTED, PENDING -> REJECTED).
func (s *Store) UpdatePlanStatus(ctx context.Context, planID, status string) error {
	_, err := s.db.Pool.Exec(ctx, `UPDATE trade_plans SET status = $1 WHERE plan_id = $2`, status, planID)
	return err
}

// ListPendingPlans returns plans still awaiting admission, oldest first —
// the execution service's admission-pipeline feed.
func (s *Store) ListPendingPlans(ctx context.Context) ([]TradePlan, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT idempotency_key, plan_id, symbol, timeframe, side, entry_price, primary_sl_price,
			tp_rules, secondary_sl_rule, risk_pct, status, valid_from_ms, expires_at_ms, created_at_ms
		FROM trade_plans WHERE status = 'PENDING' ORDER BY created_at_ms ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []TradePlan
	for rows.Next() {
		var p TradePlan
		if err := rows.Scan(&p.IdempotencyKey, &p.PlanID, &p.Symbol, &p.Timeframe, &p.Side, &p.EntryPrice, &p.PrimarySLPrice,
			&p.TPRules, &p.SecondarySLRule, &p.RiskPct, &p.Status, &p.ValidFromMs, &p.ExpiresAtMs, &p.CreatedAtMs); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
