package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/wordledger/store"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Get(ctx, "k"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get missing key: got %v, want ErrNotFound", err)
	}

	value := []byte("v1")
	if err := s.Set(ctx, "k", value); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value[0] = 'x'

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("Get = %q, want %q (store must copy on write)", got, "v1")
	}
	got[0] = 'y'
	again, _ := s.Get(ctx, "k")
	if string(again) != "v1" {
		t.Errorf("Get = %q after caller mutation, want %q", again, "v1")
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete missing key: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get after Delete: got %v, want ErrNotFound", err)
	}
}

func TestStoreKeys(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, k := range []string{"wordledger/ledger/b", "wordledger/ledger/a", "other"} {
		if err := s.Set(ctx, k, []byte("{}")); err != nil {
			t.Fatal(err)
		}
	}
	keys := s.Keys("wordledger/ledger/")
	if len(keys) != 2 || keys[0] != "wordledger/ledger/a" || keys[1] != "wordledger/ledger/b" {
		t.Errorf("Keys = %v", keys)
	}
}

func TestStoreClosed(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "k", nil); !errors.Is(err, store.ErrClosed) {
		t.Errorf("Set after Close: got %v, want ErrClosed", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, store.ErrClosed) {
		t.Errorf("Ping after Close: got %v, want ErrClosed", err)
	}
}

func TestStoreHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := New().Set(ctx, "k", []byte("v")); !errors.Is(err, context.Canceled) {
		t.Errorf("Set with canceled ctx: got %v, want context.Canceled", err)
	}
}
