package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"atomic-swap-go/asset"
	"atomic-swap-go/order"
)

func openTempOrderStore(t *testing.T) (*OrderStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.db")
	store, err := OpenOrderStore(path)
	if err != nil {
		t.Fatalf("open order store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func sampleOrder(id uint64) order.Order {
	return order.Order{
		ID: id,
		Maker: order.Maker{
			SellAsset:             asset.Ref{Asset: "0xaaa", Amount: 100},
			BuyAsset:              asset.Ref{Asset: "0xbbb", Amount: 50},
			MakerAddress:          "0xmaker",
			MakerReceivingAddress: "0xmaker-recv",
			DesiredTaker:          "0xtaker",
			ExpirationTimestamp:   1_800_000_000,
		},
		Status:    order.StatusOpen,
		CreatedAt: 1_700_000_000,
		UpdatedAt: 1_700_000_000,
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := OpenOrderStore(""); err == nil {
		t.Fatal("expected empty path error")
	}
	if _, err := OpenLedger("  "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestOrderStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store, _ := openTempOrderStore(t)

	id, err := store.NextID(ctx)
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	if id != 0 {
		t.Fatalf("first id = %d, want 0", id)
	}
	o := sampleOrder(id)
	if err := store.Insert(ctx, o); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Insert(ctx, o); !errors.Is(err, order.ErrExists) {
		t.Fatalf("duplicate insert err = %v, want ErrExists", err)
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != o {
		t.Fatalf("get = %+v, want %+v", got, o)
	}

	o.Status = order.StatusCompleted
	o.Taker = order.Taker{SellAsset: asset.Ref{Asset: "0xbbb", Amount: 50}, TakerAddress: "0xtaker", TakerReceivingAddress: "0xtaker-recv"}
	if err := store.Update(ctx, o); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = store.Get(ctx, id)
	if got.Status != order.StatusCompleted || got.Taker != o.Taker {
		t.Fatalf("updated order = %+v", got)
	}

	if err := store.Update(ctx, sampleOrder(42)); !errors.Is(err, order.ErrNotFound) {
		t.Fatalf("update missing err = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, id); !errors.Is(err, order.ErrNotFound) {
		t.Fatalf("get deleted err = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, id); !errors.Is(err, order.ErrNotFound) {
		t.Fatalf("delete twice err = %v, want ErrNotFound", err)
	}
}

func TestOrderStoreSequenceSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	store, path := openTempOrderStore(t)
	for want := uint64(0); want < 3; want++ {
		id, err := store.NextID(ctx)
		if err != nil {
			t.Fatalf("next id: %v", err)
		}
		if id != want {
			t.Fatalf("id = %d, want %d", id, want)
		}
	}
	if err := store.Insert(ctx, sampleOrder(1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = store.Close()

	reopened, err := OpenOrderStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	id, err := reopened.NextID(ctx)
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	if id != 3 {
		t.Fatalf("id after reopen = %d, want 3", id)
	}
	if _, err := reopened.Get(ctx, 1); err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
}

func TestOrderStoreList(t *testing.T) {
	ctx := context.Background()
	store, _ := openTempOrderStore(t)

	for i := uint64(0); i < 4; i++ {
		o := sampleOrder(i)
		if i%2 == 1 {
			o.Status = order.StatusCancelled
		}
		if i == 3 {
			o.Maker.MakerAddress = "0xother"
			o.Maker.DesiredTaker = "0xsomeone"
		}
		if err := store.Insert(ctx, o); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	all, err := store.List(ctx, order.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 || all[0].ID != 0 || all[3].ID != 3 {
		t.Fatalf("list all = %+v", all)
	}

	cancelled := order.StatusCancelled
	got, _ := store.List(ctx, order.Filter{Status: &cancelled})
	if len(got) != 2 {
		t.Fatalf("cancelled = %d, want 2", len(got))
	}
	got, _ = store.List(ctx, order.Filter{Maker: "0xmaker"})
	if len(got) != 3 {
		t.Fatalf("by maker = %d, want 3", len(got))
	}
	got, _ = store.List(ctx, order.Filter{Taker: "0xsomeone"})
	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("by taker = %+v", got)
	}
	got, _ = store.List(ctx, order.Filter{Limit: 2})
	if len(got) != 2 {
		t.Fatalf("limit = %d, want 2", len(got))
	}
}
