package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

func TestDeriveTitle(t *testing.T) {
	long := strings.Repeat("a", 30) + " " + strings.Repeat("b", 30)
	tests := []struct {
		in, want string
	}{
		{"Remind me to call mom", "Remind me to call mom"},
		{"Remind me to call mom tomorrow evening", "Remind me to call mom..."},
		{"  hello   there  ", "hello there"},
		{"", DefaultTitle},
		{long, long[:50]},
	}
	for _, tt := range tests {
		if got := DeriveTitle(tt.in); got != tt.want {
			t.Errorf("DeriveTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeriveTitle_CapsRunes(t *testing.T) {
	in := strings.Repeat("é", 60)
	got := DeriveTitle(in)
	if n := len([]rune(got)); n != 50 {
		t.Errorf("title has %d runes, want 50", n)
	}
}

func setup(t *testing.T) *Service {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store)
}

func TestDefaultUserIsStable(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()
	a, err := svc.DefaultUser(ctx)
	if err != nil {
		t.Fatalf("DefaultUser: %v", err)
	}
	b, err := svc.DefaultUser(ctx)
	if err != nil {
		t.Fatalf("DefaultUser: %v", err)
	}
	if a.ID != b.ID || a.ExternalID != DefaultUserID {
		t.Errorf("users differ: %+v vs %+v", a, b)
	}
}

func TestConversationFlow(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()
	u, _ := svc.DefaultUser(ctx)

	c, err := svc.Create(ctx, u.ID, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Title != DefaultTitle {
		t.Errorf("Title = %q", c.Title)
	}

	if _, err := svc.AddMessage(ctx, c.ID, "user", "hi", nil); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if _, err := svc.AddMessage(ctx, c.ID, "assistant", "hello", nil); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if _, err := svc.AddMessage(ctx, c.ID, "tool", "x", nil); !errors.Is(err, storage.ErrInvalid) {
		t.Errorf("bad role err = %v", err)
	}

	hist, err := svc.History(ctx, c.ID, 0)
	if err != nil || len(hist) != 2 || hist[0].Content != "hi" {
		t.Fatalf("History = %+v, %v", hist, err)
	}

	if _, err := svc.Rename(ctx, u.ID, c.ID, " "); !errors.Is(err, storage.ErrInvalid) {
		t.Errorf("blank rename err = %v", err)
	}
	renamed, err := svc.Rename(ctx, u.ID, c.ID, "Greetings")
	if err != nil || renamed.Title != "Greetings" {
		t.Errorf("Rename = %+v, %v", renamed, err)
	}

	if err := svc.Delete(ctx, u.ID, c.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, u.ID, c.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
}
