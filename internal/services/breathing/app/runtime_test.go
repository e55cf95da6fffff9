package app

import (
	"context"
	"path/filepath"
	"testing"
)

func TestRunRequiresRoutes(t *testing.T) {
	if err := Run(context.Background(), RuntimeConfig{}); err == nil {
		t.Fatal("Run() expected error without route registration")
	}
}

func TestOpenStoreSelectsStrategyPerDriver(t *testing.T) {
	dir := t.TempDir()

	store, strategy, err := openStore(DriverBolt, filepath.Join(dir, "local.db"), "")
	if err != nil {
		t.Fatalf("openStore(bolt) error = %v", err)
	}
	defer store.Close()
	if strategy != StrategyImmediate {
		t.Fatalf("bolt strategy = %q, want immediate", strategy)
	}

	durable, strategy, err := openStore(DriverSQLite, filepath.Join(dir, "durable.db"), "")
	if err != nil {
		t.Fatalf("openStore(sqlite) error = %v", err)
	}
	defer durable.Close()
	if strategy != StrategyTrend {
		t.Fatalf("sqlite strategy = %q, want trend", strategy)
	}
}

func TestOpenStoreExplicitStrategyWins(t *testing.T) {
	store, strategy, err := openStore(DriverSQLite, filepath.Join(t.TempDir(), "durable.db"), "immediate")
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	defer store.Close()
	if strategy != StrategyImmediate {
		t.Fatalf("strategy = %q, want immediate override", strategy)
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	if _, _, err := openStore("postgres", "x.db", ""); err == nil {
		t.Fatal("openStore() expected error for unknown driver")
	}
}

func TestResolveStrategyFallsBack(t *testing.T) {
	if got := resolveStrategy("gentle", StrategyTrend); got != StrategyTrend {
		t.Fatalf("resolveStrategy() = %q, want trend fallback", got)
	}
	if got := resolveStrategy("immediate", StrategyTrend); got != StrategyImmediate {
		t.Fatalf("resolveStrategy() = %q, want immediate", got)
	}
}
