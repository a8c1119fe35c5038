package history

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Leg is one output leg of a confirmed multi-swap.
type Leg struct {
	OutToken     string
	LegAmount    string // base units, decimal string
	EstimatedOut string // human units, decimal string
}

// SwapEvent is one confirmed multi-output swap; it becomes one row per leg.
type SwapEvent struct {
	TxHash     string
	Wallet     string
	SellToken  string
	SellAmount string
	Shape      string
	At         time.Time
	Legs       []Leg
}

// Config configures the ClickHouse connection.
type Config struct {
	Addr     string
	Database string
	Username string
	Password string
}

// Store appends confirmed swaps to ClickHouse. Writers treat it as
// best-effort: a failed insert is logged by the caller, never retried.
type Store struct {
	conn driver.Conn
}

func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &Store{conn: conn}, nil
}

// InsertSwap writes one row per leg of the event.
func (s *Store) InsertSwap(ctx context.Context, ev *SwapEvent) error {
	query := `
		INSERT INTO multiswaps (
			tx_hash, wallet, sell_token, sell_amount, shape,
			out_token, leg_amount, estimated_out, leg_index, confirmed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for i, leg := range ev.Legs {
		err := s.conn.Exec(ctx, query,
			ev.TxHash,
			ev.Wallet,
			ev.SellToken,
			ev.SellAmount,
			ev.Shape,
			leg.OutToken,
			leg.LegAmount,
			leg.EstimatedOut,
			uint8(i),
			ev.At,
		)
		if err != nil {
			return fmt.Errorf("failed to insert swap leg %d: %w", i, err)
		}
	}

	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.conn.Ping(ctx) }

func (s *Store) Close() error { return s.conn.Close() }
