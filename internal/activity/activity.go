// Package activity records user-visible actions (coupon changes, syncs,
// configuration saves) in the activity log.
package activity

import (
	"context"
	"encoding/json"
	"sync"

	"estoquefacil/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	ActionCouponCreated    = "coupon.created"
	ActionCouponToggled    = "coupon.toggled"
	ActionSalesSynced      = "affiliate.sales_synced"
	ActionAffiliateCreated = "affiliate.created"
	ActionAffiliateImport  = "affiliate.imported"
	ActionConfigSaved      = "configuration.saved"
	ActionProductCreated   = "product.created"
	ActionRecipeCreated    = "recipe.created"
	ActionCheckoutStarted  = "checkout.started"
	ActionPlanChanged      = "plan.changed"
)

// Recorder is passed to every component that logs actions.
type Recorder interface {
	Record(ctx context.Context, entry models.ActivityEntry)
	List(ctx context.Context, accountID string, limit int) ([]models.ActivityEntry, error)
}

// PostgresRecorder writes entries to the activity_logs table. Write errors are
// logged and swallowed: an action never fails because its log entry did.
type PostgresRecorder struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresRecorder(pool *pgxpool.Pool, logger *zap.Logger) *PostgresRecorder {
	return &PostgresRecorder{pool: pool, logger: logger.Named("activity")}
}

func (r *PostgresRecorder) Record(ctx context.Context, entry models.ActivityEntry) {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		r.logger.Warn("marshal activity details", zap.String("action", entry.Action), zap.Error(err))
		details = []byte("{}")
	}
	var accountID any
	if entry.AccountID != "" {
		accountID = entry.AccountID
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO activity_logs (account_id, action, entity_type, entity_id, details)
		VALUES ($1, $2, $3, $4, $5)`,
		accountID, entry.Action, entry.EntityType, entry.EntityID, details)
	if err != nil {
		r.logger.Error("record activity",
			zap.String("action", entry.Action),
			zap.String("account_id", entry.AccountID),
			zap.Error(err))
	}
}

// List returns the newest entries, optionally restricted to one account.
func (r *PostgresRecorder) List(ctx context.Context, accountID string, limit int) ([]models.ActivityEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(account_id::text, ''), action, entity_type, entity_id, details, created_at
		FROM activity_logs
		WHERE ($1 = '' OR account_id::text = $1)
		ORDER BY id DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []models.ActivityEntry
	for rows.Next() {
		var e models.ActivityEntry
		var details []byte
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Action, &e.EntityType, &e.EntityID, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			_ = json.Unmarshal(details, &e.Details)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, models.ActivityEntry) {}
func (Nop) List(context.Context, string, int) ([]models.ActivityEntry, error) {
	return nil, nil
}

// Memory keeps entries in a slice; used by tests and local tooling.
type Memory struct {
	mu      sync.Mutex
	Entries []models.ActivityEntry
}

func (m *Memory) Record(_ context.Context, entry models.ActivityEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = int64(len(m.Entries) + 1)
	m.Entries = append(m.Entries, entry)
}

func (m *Memory) List(_ context.Context, accountID string, limit int) ([]models.ActivityEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ActivityEntry
	for i := len(m.Entries) - 1; i >= 0; i-- {
		if accountID == "" || m.Entries[i].AccountID == accountID {
			out = append(out, m.Entries[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Actions returns the recorded action names in order.
func (m *Memory) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		out = append(out, e.Action)
	}
	return out
}
