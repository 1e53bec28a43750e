package db

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"bundler/logger"
	"bundler/types"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/spf13/viper"
)

const DefaultDatabase = "bundler"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type ClickhouseDB struct {
	conn     driver.Conn
	database string
}

// Enabled reports whether bundle and trade records should be persisted.
func Enabled() bool {
	return viper.GetBool("clickhouse.enabled")
}

func databaseName() (string, error) {
	name := viper.GetString("CLICKHOUSE_DATABASE")
	if name == "" {
		name = DefaultDatabase
	}
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("invalid ClickHouse database name %q", name)
	}
	return name, nil
}

func NewClickhouse() (Database, error) {
	name, err := databaseName()
	if err != nil {
		return nil, err
	}
	opts := &clickhouse.Options{
		Addr: []string{viper.GetString("CLICKHOUSE_ADDR")},
		Auth: clickhouse.Auth{
			Database: name,
			Username: viper.GetString("CLICKHOUSE_USERNAME"),
			Password: viper.GetString("CLICKHOUSE_PASSWORD"),
		},
		DialTimeout:  5 * time.Second,
		Compression:  &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		MaxOpenConns: 10,
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		logger.GlobalLogger.Error("Failed to connect to ClickHouse", "err", err)
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	return &ClickhouseDB{conn: conn, database: name}, nil
}

// Database interface implementation
func (d *ClickhouseDB) Close() error {
	return d.conn.Close()
}

func (d *ClickhouseDB) EnsureDatabaseExists() error {
	query := fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, d.database)
	if err := d.conn.Exec(context.Background(), query); err != nil {
		return fmt.Errorf("failed to ensure database exists: %w", err)
	}
	logger.GlobalLogger.Info("Database ensured to exist", "database", d.database)
	return nil
}

func (d *ClickhouseDB) CreateTables() error {
	queries := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.bundles
		(
			bundleId String,
			workflow LowCardinality(String),
			mint String,
			timestamp DateTime,
			signers Array(String),
			transactions Array(String),
			tipLamports UInt64,
			endpoint String
		)
		ENGINE = MergeTree
		ORDER BY (timestamp, bundleId)
		SETTINGS index_granularity = 8192`, d.database),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.trades
		(
			bundleId String,
			workflow LowCardinality(String),
			mint String,
			timestamp DateTime,
			side LowCardinality(String),
			signer String,
			lamports UInt64,
			netVolume UInt64,
			grossVolume UInt64
		)
		ENGINE = MergeTree
		ORDER BY (mint, timestamp)
		SETTINGS index_granularity = 8192`, d.database),

		// trades created before the workflow column existed
		fmt.Sprintf(`ALTER TABLE %s.trades ADD COLUMN IF NOT EXISTS workflow LowCardinality(String) AFTER bundleId`, d.database),
	}

	for _, q := range queries {
		if err := d.conn.Exec(context.Background(), q); err != nil {
			return err
		}
		logger.GlobalLogger.Info("Check or create table in DB", "query", q)
	}
	return nil
}

func (d *ClickhouseDB) DropTables() error {
	rows, err := d.conn.Query(context.Background(),
		fmt.Sprintf("SHOW TABLES FROM %s", d.database))
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, t)
	}

	for _, t := range tables {
		q := fmt.Sprintf("DROP TABLE IF EXISTS %s.`%s`", d.database, t)
		if err := d.conn.Exec(context.Background(), q); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", t, err)
		}
		logger.GlobalLogger.Info("Dropped table", "table", t)
	}

	return nil
}

func (d *ClickhouseDB) Exec(query string, args ...any) error {
	if err := d.conn.Exec(context.Background(), query, args...); err != nil {
		return err
	}
	return nil
}

func (d *ClickhouseDB) InsertBundles(bundles []*types.BundleRecord) error {
	if len(bundles) == 0 {
		return nil
	}
	batch, err := d.conn.PrepareBatch(context.Background(), fmt.Sprintf("INSERT INTO %s.bundles", d.database))
	if err != nil {
		return err
	}
	for _, b := range bundles {
		if err := batch.AppendStruct(b); err != nil {
			return err
		}
	}
	return batch.Send()
}

func (d *ClickhouseDB) InsertTrades(trades []*types.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	batch, err := d.conn.PrepareBatch(context.Background(), fmt.Sprintf("INSERT INTO %s.trades", d.database))
	if err != nil {
		return err
	}
	for _, t := range trades {
		if err := batch.AppendStruct(t); err != nil {
			return err
		}
	}
	return batch.Send()
}

func (d *ClickhouseDB) QueryLatestBundleIds(limit uint) ([]string, error) {
	rows, err := d.conn.Query(context.Background(),
		fmt.Sprintf(`SELECT bundleId FROM %s.bundles ORDER BY timestamp DESC LIMIT %d`, d.database, limit))
	if err != nil {
		return nil, fmt.Errorf("query latest bundleIds failed: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan bundleId failed: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return ids, nil
}

// volumeTotalsQuery reads the totals of the latest volume trade. Rows written before the
// workflow column have it empty; among those only volume trades carry a gross volume.
func volumeTotalsQuery(database string) string {
	return fmt.Sprintf(`SELECT ifNull(argMax(netVolume, timestamp), toUInt64(0)), ifNull(argMax(grossVolume, timestamp), toUInt64(0))
		FROM %s.trades WHERE mint = ? AND (workflow = 'volume' OR (workflow = '' AND grossVolume > 0))`, database)
}

// QueryVolumeTotals returns the running volumes recorded by the latest volume trade on mint.
// One-shot swaps do not move them.
func (d *ClickhouseDB) QueryVolumeTotals(mint string) (uint64, uint64, error) {
	row := d.conn.QueryRow(context.Background(), volumeTotalsQuery(d.database), mint)
	var net, gross uint64
	if err := row.Scan(&net, &gross); err != nil {
		return 0, 0, fmt.Errorf("query volume totals failed: %w", err)
	}
	return net, gross, nil
}
