package db

import (
	"strings"
	"testing"

	"bundler/logger"

	"github.com/spf13/viper"
)

func init() {
	logger.InitLogs("db_test")
}

func TestDatabaseName(t *testing.T) {
	defer viper.Reset()

	viper.Set("CLICKHOUSE_DATABASE", "")
	name, err := databaseName()
	if err != nil || name != DefaultDatabase {
		t.Fatalf("expected default %q, got %q (%v)", DefaultDatabase, name, err)
	}

	viper.Set("CLICKHOUSE_DATABASE", "bundler_dev")
	if name, err = databaseName(); err != nil || name != "bundler_dev" {
		t.Fatalf("expected bundler_dev, got %q (%v)", name, err)
	}

	for _, bad := range []string{"1bundler", "bundler; DROP TABLE trades", "bund-ler", "db.name"} {
		viper.Set("CLICKHOUSE_DATABASE", bad)
		if _, err := databaseName(); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestEnabled(t *testing.T) {
	defer viper.Reset()

	if Enabled() {
		t.Fatalf("persistence should be off unless configured")
	}
	viper.Set("clickhouse.enabled", true)
	if !Enabled() {
		t.Fatalf("clickhouse.enabled=true should enable persistence")
	}
}

func TestVolumeTotalsQueryIgnoresSwaps(t *testing.T) {
	q := volumeTotalsQuery("bundler")
	for _, want := range []string{"FROM bundler.trades", "mint = ?", "workflow = 'volume'", "workflow = '' AND grossVolume > 0"} {
		if !strings.Contains(q, want) {
			t.Fatalf("volume totals query missing %q:\n%s", want, q)
		}
	}
}
