package db

import (
	"bundler/types"
)

type Database interface {
	Close() error
	EnsureDatabaseExists() error
	CreateTables() error
	DropTables() error

	Exec(query string, args ...any) error
	InsertBundles(bundles []*types.BundleRecord) error
	InsertTrades(trades []*types.TradeRecord) error

	QueryLatestBundleIds(limit uint) ([]string, error)
	QueryVolumeTotals(mint string) (net uint64, gross uint64, err error)
}
