package snapshot

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func sampleSnapshot() V1 {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return V1{
		Header:   Header{Version: CurrentVersion, TakenAt: at, Tick: 77},
		Currency: CurrencyV1{Name: "Emerald", Symbol: "E", StartingBalance: decimal.NewFromInt(100), TaxRate: 0.05},
		Market: MarketV1{
			Resources: []ResourceV1{{ID: "wood", BasePrice: 2, Volatility: 0.1, Supply: 10, Demand: 5, CurrentPrice: 1, History: []float64{1, 1.1}}},
			Wallets:   []WalletV1{{Owner: "alice", Coins: decimal.NewFromInt(42), Resources: []QuantityV1{{Resource: "wood", Qty: 3}}}},
			Treasury:  decimal.RequireFromString("1.25"),
		},
		Factions: FactionsV1{
			Edges:     []EdgeV1{{A: "a", B: "b", Score: -60}},
			Conflicts: [][2]string{{"a", "b"}},
		},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "substrate.snap")
	fs := NewFileStore(path)

	if _, ok, err := fs.Load(context.Background()); err != nil || ok {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}

	want := sampleSnapshot()
	if err := fs.Save(context.Background(), want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := fs.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Header.Tick != 77 || !got.Market.Treasury.Equal(want.Market.Treasury) {
		t.Fatalf("unexpected snapshot %+v", got.Header)
	}
	if len(got.Factions.Conflicts) != 1 || got.Factions.Conflicts[0] != [2]string{"a", "b"} {
		t.Fatalf("conflicts not restored: %+v", got.Factions.Conflicts)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the snapshot file, found %d entries", len(entries))
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	snap := sampleSnapshot()
	snap.Header.Version = 99
	var buf bytes.Buffer
	if err := Encode(&buf, snap); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(&buf); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestFileStoreSaveCancelledKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "substrate.snap")
	fs := NewFileStore(path)
	if err := fs.Save(context.Background(), sampleSnapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	next := sampleSnapshot()
	next.Header.Tick = 78
	if err := fs.Save(ctx, next); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	got, ok, err := fs.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Header.Tick != 77 {
		t.Fatalf("tick = %d, want previous snapshot 77", got.Header.Tick)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp file left behind: %d entries", len(entries))
	}
}
