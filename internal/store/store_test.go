package store

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Service {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSettings_DefaultsForUnknownTenant(t *testing.T) {
	s := newTestStore(t)

	set, err := s.Settings("nobody@example.com")
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if set.Prefix != "!" {
		t.Errorf("prefix = %q, want !", set.Prefix)
	}
	if !set.PublicMode {
		t.Error("publicMode should default to true")
	}
	if set.AutoRead {
		t.Error("autoRead should default to false")
	}
	if set.BlockCall {
		t.Error("blockCall should default to false")
	}
}

func TestSettings_Roundtrip(t *testing.T) {
	s := newTestStore(t)

	in := DefaultSettings()
	in.Prefix = "#"
	in.PublicMode = false
	in.OwnerNumber = "6281234"
	if err := s.UpdateSettings("owner@example.com", in); err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}

	out, err := s.Settings("owner@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if out.Prefix != "#" || out.PublicMode || out.OwnerNumber != "6281234" {
		t.Errorf("unexpected settings %+v", out)
	}

	// Other tenants still see defaults.
	other, _ := s.Settings("other@example.com")
	if other.Prefix != "!" {
		t.Errorf("settings leaked across tenants: %+v", other)
	}
}

func TestGetUser_CreatesDefaultRecord(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.GetUser("owner@example.com", "628111@s.whatsapp.net")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if rec.Limit != 100 {
		t.Errorf("limit = %d, want 100", rec.Limit)
	}
	if rec.Premium {
		t.Error("premium should default to false")
	}
	if rec.Partner != "" {
		t.Errorf("partner = %q, want empty", rec.Partner)
	}
	if rec.JoinedAt.IsZero() {
		t.Error("joinedAt should be set")
	}

	// Second read returns the persisted record, not a new one.
	again, err := s.GetUser("owner@example.com", "628111@s.whatsapp.net")
	if err != nil {
		t.Fatal(err)
	}
	if diff := again.JoinedAt.Sub(rec.JoinedAt); diff < -time.Second || diff > time.Second {
		t.Errorf("joinedAt changed between reads: %v vs %v", rec.JoinedAt, again.JoinedAt)
	}
}

func TestUpdateUser_PartialPatch(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetUser("owner@example.com", "628111@s.whatsapp.net"); err != nil {
		t.Fatal(err)
	}

	name := "Alice"
	partner := "628222@s.whatsapp.net"
	if err := s.UpdateUser("owner@example.com", "628111@s.whatsapp.net", UserPatch{Name: &name, Partner: &partner}); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	rec, _ := s.GetUser("owner@example.com", "628111@s.whatsapp.net")
	if rec.Name != "Alice" || rec.Partner != partner {
		t.Errorf("patch not applied: %+v", rec)
	}
	if rec.Limit != 100 {
		t.Errorf("untouched field changed: limit = %d", rec.Limit)
	}
}

func TestUpdateUser_CreatesMissingRecord(t *testing.T) {
	s := newTestStore(t)

	premium := true
	if err := s.UpdateUser("owner@example.com", "628333@s.whatsapp.net", UserPatch{Premium: &premium}); err != nil {
		t.Fatalf("UpdateUser on missing record failed: %v", err)
	}
	rec, _ := s.GetUser("owner@example.com", "628333@s.whatsapp.net")
	if !rec.Premium {
		t.Error("premium patch lost on created record")
	}
}

func TestAllUsers_TenantScoped(t *testing.T) {
	s := newTestStore(t)

	s.GetUser("a@example.com", "1@s.whatsapp.net")
	s.GetUser("a@example.com", "2@s.whatsapp.net")
	s.GetUser("b@example.com", "3@s.whatsapp.net")

	users, err := s.AllUsers("a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users for tenant a, got %d", len(users))
	}
	if _, leaked := users["3@s.whatsapp.net"]; leaked {
		t.Error("tenant b's user leaked into tenant a's listing")
	}
}

func TestBotSession_Roundtrip(t *testing.T) {
	s := newTestStore(t)

	// Unknown tenant defaults to disconnected.
	sess, err := s.BotSession("owner@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if sess.Status != "disconnected" || sess.ConnectedAt != nil {
		t.Errorf("unexpected default session %+v", sess)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.SaveBotSession(BotSession{
		TenantID:    "owner@example.com",
		Status:      "connected",
		PhoneNumber: "628111",
		ConnectedAt: &now,
	}); err != nil {
		t.Fatal(err)
	}

	sess, _ = s.BotSession("owner@example.com")
	if sess.Status != "connected" || sess.PhoneNumber != "628111" {
		t.Errorf("unexpected session %+v", sess)
	}
	if sess.ConnectedAt == nil || !sess.ConnectedAt.Equal(now) {
		t.Errorf("connectedAt = %v, want %v", sess.ConnectedAt, now)
	}

	if err := s.ClearBotSession("owner@example.com"); err != nil {
		t.Fatal(err)
	}
	sess, _ = s.BotSession("owner@example.com")
	if sess.Status != "disconnected" || sess.PhoneNumber != "" || sess.ConnectedAt != nil {
		t.Errorf("session not cleared: %+v", sess)
	}
}
