package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/coursehub/paygate/infra/logger"
)

// ErrOrderNotFound is returned when no local order matches the lookup key
var ErrOrderNotFound = errors.New("order not found in local store")

// Order is the locally persisted view of a gateway order. Password, Secret
// and FormURL (which embeds the password as a query parameter) are encrypted
// at rest; the model always carries them decrypted.
type Order struct {
	ID          int64
	ExternalID  string
	Driver      string
	Environment string
	TypeRid     string
	Amount      int64
	Description string
	Status      string
	HppURL      string
	FormURL     string
	Password    string
	Secret      *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SourceTokenRecord is the persisted stored-instrument reference for an order
type SourceTokenRecord struct {
	ID            int64
	OrderID       int64
	TokenID       *string
	PaymentMethod *string
	Role          *string
	Status        *string
	RegTime       *string
	DisplayName   *string
	CardBrand     *string
	CardExpiry    *string
}

// Store handles persistent storage of orders and their source tokens
type Store struct {
	db     *sql.DB
	path   string
	cipher *FieldCipher
}

// NewStore creates a new order store optimized for concurrent access
func NewStore(dbPath, encryptKey string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_timeout=20000&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	s := &Store{
		db:     db,
		path:   dbPath,
		cipher: NewFieldCipher(encryptKey),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := s.optimizeForConcurrency(); err != nil {
		logger.Warn("failed to apply sqlite optimizations", logger.LogContext{
			Fields: map[string]any{"error": err.Error()},
		})
	}

	logger.Info("order store initialized", logger.LogContext{
		Fields: map[string]any{"path": dbPath},
	})
	return s, nil
}

// initSchema creates the necessary tables
func (s *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT NOT NULL,
		driver TEXT NOT NULL,
		environment TEXT NOT NULL,
		type_rid TEXT NOT NULL,
		amount INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		hpp_url TEXT NOT NULL DEFAULT '',
		form_url_enc TEXT NOT NULL,
		password_enc TEXT NOT NULL,
		secret_enc TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(driver, external_id)
	);

	CREATE INDEX IF NOT EXISTS idx_orders_external ON orders(driver, external_id);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

	CREATE TABLE IF NOT EXISTS order_source_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id INTEGER NOT NULL REFERENCES orders(id),
		token_id TEXT,
		payment_method TEXT,
		role TEXT,
		status TEXT,
		reg_time TEXT,
		display_name TEXT,
		card_brand TEXT,
		card_expiry TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_source_tokens_order ON order_source_tokens(order_id);

	-- Trigger to update updated_at column
	CREATE TRIGGER IF NOT EXISTS update_orders_updated_at
		AFTER UPDATE ON orders
	BEGIN
		UPDATE orders SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
	END;
	`

	_, err := s.db.Exec(query)
	return err
}

// optimizeForConcurrency applies SQLite optimizations for concurrent access
func (s *Store) optimizeForConcurrency() error {
	optimizations := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA cache_size = 1000;",
		"PRAGMA busy_timeout = 30000;",
		"PRAGMA temp_store = memory;",
		"PRAGMA foreign_keys = ON;",
	}

	for _, pragma := range optimizations {
		if _, err := s.db.Exec(pragma); err != nil {
			logger.Warn("failed to execute pragma", logger.LogContext{
				Fields: map[string]any{"pragma": pragma, "error": err.Error()},
			})
		}
	}

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to check journal mode: %w", err)
	}
	return nil
}

// retryOperation executes a database operation with retry logic for SQLITE_BUSY errors
func (s *Store) retryOperation(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked") {
			lastErr = err
			if attempt < maxRetries {
				// Exponential backoff: 10ms, 20ms, 40ms, 80ms
				backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
				time.Sleep(backoff)
				continue
			}
		} else {
			return err
		}
	}

	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

const orderColumns = `id, external_id, driver, environment, type_rid, amount, description, status, hpp_url, form_url_enc, password_enc, secret_enc, created_at, updated_at`

func (s *Store) scanOrder(row *sql.Row) (*Order, error) {
	var o Order
	var formURLEnc, passwordEnc string
	var secretEnc sql.NullString

	err := row.Scan(&o.ID, &o.ExternalID, &o.Driver, &o.Environment, &o.TypeRid, &o.Amount,
		&o.Description, &o.Status, &o.HppURL, &formURLEnc, &passwordEnc, &secretEnc,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	o.FormURL, err = s.cipher.Decrypt(formURLEnc)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt order form url: %w", err)
	}
	o.Password, err = s.cipher.Decrypt(passwordEnc)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt order password: %w", err)
	}
	if secretEnc.Valid {
		secret, err := s.cipher.Decrypt(secretEnc.String)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt order secret: %w", err)
		}
		o.Secret = &secret
	}

	return &o, nil
}

// FindOrderByExternalID loads an order by its gateway-assigned id
func (s *Store) FindOrderByExternalID(ctx context.Context, driver, externalID string) (*Order, error) {
	var order *Order
	err := s.retryOperation(func() error {
		query := `SELECT ` + orderColumns + ` FROM orders WHERE driver = ? AND external_id = ?`
		o, err := s.scanOrder(s.db.QueryRowContext(ctx, query, driver, externalID))
		if err != nil {
			return err
		}
		order = o
		return nil
	}, 3)
	return order, err
}

// UpdateOrderStatus moves the order to the given status
func (s *Store) UpdateOrderStatus(ctx context.Context, driver, externalID, status string) error {
	return s.retryOperation(func() error {
		result, err := s.db.ExecContext(ctx,
			`UPDATE orders SET status = ? WHERE driver = ? AND external_id = ?`,
			status, driver, externalID)
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return ErrOrderNotFound
		}
		return nil
	}, 3)
}

// SourceTokens returns the stored instrument records attached to an order
func (s *Store) SourceTokens(ctx context.Context, orderID int64) ([]SourceTokenRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, token_id, payment_method, role, status, reg_time, display_name, card_brand, card_expiry
		 FROM order_source_tokens WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query source tokens: %w", err)
	}
	defer rows.Close()

	var tokens []SourceTokenRecord
	for rows.Next() {
		var t SourceTokenRecord
		if err := rows.Scan(&t.ID, &t.OrderID, &t.TokenID, &t.PaymentMethod, &t.Role,
			&t.Status, &t.RegTime, &t.DisplayName, &t.CardBrand, &t.CardExpiry); err != nil {
			return nil, fmt.Errorf("failed to scan source token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source tokens: %w", err)
	}

	return tokens, nil
}

// Tx is a unit of work over the store. All writes inside one WithinTx call
// commit or roll back together.
type Tx struct {
	tx     *sql.Tx
	cipher *FieldCipher
}

// WithinTx runs fn inside a single database transaction
func (s *Store) WithinTx(ctx context.Context, fn func(tx *Tx) error) error {
	return s.retryOperation(func() error {
		sqlTx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := fn(&Tx{tx: sqlTx, cipher: s.cipher}); err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil {
				return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
			}
			return err
		}

		if err := sqlTx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	}, 3)
}

// CreateOrder persists a freshly created order. Password, secret and form
// URL are encrypted before the insert; the caller's model keeps the clear
// values.
func (t *Tx) CreateOrder(ctx context.Context, o *Order) error {
	passwordEnc, err := t.cipher.Encrypt(o.Password)
	if err != nil {
		return fmt.Errorf("failed to encrypt order password: %w", err)
	}

	formURLEnc, err := t.cipher.Encrypt(o.FormURL)
	if err != nil {
		return fmt.Errorf("failed to encrypt order form url: %w", err)
	}

	var secretEnc sql.NullString
	if o.Secret != nil {
		enc, err := t.cipher.Encrypt(*o.Secret)
		if err != nil {
			return fmt.Errorf("failed to encrypt order secret: %w", err)
		}
		secretEnc = sql.NullString{String: enc, Valid: true}
	}

	result, err := t.tx.ExecContext(ctx,
		`INSERT INTO orders (external_id, driver, environment, type_rid, amount, description, status, hpp_url, form_url_enc, password_enc, secret_enc)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ExternalID, o.Driver, o.Environment, o.TypeRid, o.Amount, o.Description,
		o.Status, o.HppURL, formURLEnc, passwordEnc, secretEnc)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	o.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted order id: %w", err)
	}
	return nil
}

// UpdateOrderStatus moves the order to the given status inside the transaction
func (t *Tx) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	result, err := t.tx.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, status, orderID)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// AttachSourceToken persists the stored instrument reference for an order
func (t *Tx) AttachSourceToken(ctx context.Context, record *SourceTokenRecord) error {
	result, err := t.tx.ExecContext(ctx,
		`INSERT INTO order_source_tokens (order_id, token_id, payment_method, role, status, reg_time, display_name, card_brand, card_expiry)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.OrderID, record.TokenID, record.PaymentMethod, record.Role, record.Status,
		record.RegTime, record.DisplayName, record.CardBrand, record.CardExpiry)
	if err != nil {
		return fmt.Errorf("failed to insert source token: %w", err)
	}

	record.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted token id: %w", err)
	}
	return nil
}

// Ping verifies the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
