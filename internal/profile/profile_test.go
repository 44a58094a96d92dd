package profile

import (
	"context"
	"errors"
	"testing"

	"redwhite/dashboard-bff/internal/kv"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) { return "", errors.New("disk gone") }
func (failingStore) Set(context.Context, string, string) error   { return errors.New("disk gone") }
func (failingStore) Delete(context.Context, string) error        { return errors.New("disk gone") }

func TestSaveLoadClear(t *testing.T) {
	ctx := context.Background()
	c := NewCache(kv.NewMemory(), nil)

	if _, ok := c.Load(ctx); ok {
		t.Fatalf("expected empty cache")
	}
	c.Save(ctx, Profile{Email: "a@b.com", Team: "Growth"})
	p, ok := c.Load(ctx)
	if !ok || p.Email != "a@b.com" || p.Team != "Growth" {
		t.Fatalf("unexpected profile: %+v ok=%v", p, ok)
	}
	c.Clear(ctx)
	if _, ok := c.Load(ctx); ok {
		t.Fatalf("expected cache cleared")
	}
}

func TestCorruptProfileIsIgnored(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	_ = store.Set(ctx, "profile:current", "{broken")
	c := NewCache(store, nil)

	p, ok := c.Load(ctx)
	if ok || p != (Profile{}) {
		t.Fatalf("expected corrupt profile to read as absent, got %+v ok=%v", p, ok)
	}
}

func TestStoreFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	c := NewCache(failingStore{}, nil)

	c.Save(ctx, Profile{Email: "a@b.com"})
	c.Clear(ctx)
	if _, ok := c.Load(ctx); ok {
		t.Fatalf("expected no profile from failing store")
	}
}

func TestDisplayHelpers(t *testing.T) {
	if got := (Profile{}).DisplayName(); got != "usuario" {
		t.Fatalf("expected fallback display name, got %q", got)
	}
	if got := (Profile{Email: "a@b.com"}).DisplayName(); got != "a@b.com" {
		t.Fatalf("expected email display name, got %q", got)
	}
	if got := (Profile{Company: "RW", Team: "Data"}).Affiliation(); got != "RW / Data" {
		t.Fatalf("unexpected affiliation %q", got)
	}
	if got := (Profile{Team: "Data"}).Affiliation(); got != "Data" {
		t.Fatalf("unexpected affiliation %q", got)
	}
}
