package store

import "context"

// InsertAccountSnapshot appends a point-in-time account state capture
// for audit — never updated in place. Reconciliation does not read it.
func (s *Store) InsertAccountSnapshot(ctx context.Context, snap AccountSnapshot) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO account_snapshots (source, ts_ms, payload) VALUES ($1, $2, $3)
	`, snap.Source, snap.TsMs, snap.Payload)
	return err
}

// InsertWalletSnapshot appends a point-in-time wallet balance capture.
func (s *Store) InsertWalletSnapshot(ctx context.Context, snap WalletSnapshot) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO wallet_snapshots (source, ts_ms, payload) VALUES ($1, $2, $3)
	`, snap.Source, snap.TsMs, snap.Payload)
	return err
}

// LatestWalletSnapshot returns the most recent wallet snapshot. Nothing
// seeds risk_states.starting_equity from it.
func (s *Store) LatestWalletSnapshot(ctx context.Context) (WalletSnapshot, bool, error) {
	var snap WalletSnapshot
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, source, ts_ms, payload FROM wallet_snapshots ORDER BY ts_ms DESC LIMIT 1
	`).Scan(&snap.ID, &snap.Source, &snap.TsMs, &snap.Payload)
	if err != nil {
		if isNoRows(err) {
			return WalletSnapshot{}, false, nil
		}
		return WalletSnapshot{}, false, err
	}
	return snap, true, nil
}
