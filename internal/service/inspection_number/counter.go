package inspection_number

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/goatkit/pesflow/internal/database"
	"github.com/goatkit/pesflow/internal/models"
)

// CounterConfig holds configuration for the counter generator
type CounterConfig struct {
	MinDigits int
	// DatePrefix inserts YYYYMMDD between the channel prefix and the counter.
	DatePrefix bool
}

// CounterGenerator generates sequential ids backed by the
// inspection_number_counter table, one counter per channel.
// Format: PREFIX-[YYYYMMDD-]000123
type CounterGenerator struct {
	db     *sqlx.DB
	config CounterConfig
	now    func() time.Time
}

// NewCounterGenerator creates a new counter generator
func NewCounterGenerator(db *sqlx.DB, config CounterConfig) *CounterGenerator {
	if config.MinDigits == 0 {
		config.MinDigits = 7
	}
	return &CounterGenerator{db: db, config: config, now: time.Now}
}

// Generate creates a new inspection id
func (g *CounterGenerator) Generate(channel models.Channel) (string, error) {
	if g == nil || g.db == nil {
		return "", ErrGeneratorNotConfigured
	}
	counter, err := g.next(context.Background(), channel.Prefix())
	if err != nil {
		return "", fmt.Errorf("failed to get next counter: %w", err)
	}

	body := fmt.Sprintf("%0*d", g.config.MinDigits, counter)
	if g.config.DatePrefix {
		body = g.now().UTC().Format("20060102") + "-" + body
	}
	return Format(channel, body), nil
}

// next atomically increments and returns the counter for uid. The update and
// the read run in one transaction so concurrent callers never share a value.
func (g *CounterGenerator) next(ctx context.Context, uid string) (int64, error) {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, database.ConvertPlaceholders(`
		UPDATE inspection_number_counter
		SET counter = counter + 1
		WHERE counter_uid = ?`), uid)
	if err != nil {
		return 0, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		if _, err := tx.ExecContext(ctx, database.ConvertPlaceholders(`
			INSERT INTO inspection_number_counter (counter_uid, counter, create_time)
			VALUES (?, 1, ?)`), uid, g.now().UTC()); err != nil {
			return 0, err
		}
	}

	var counter int64
	err = tx.GetContext(ctx, &counter, database.ConvertPlaceholders(`
		SELECT counter FROM inspection_number_counter WHERE counter_uid = ?`), uid)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrCounterUpdateFailed
	}
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return counter, nil
}
