package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/techbirds/hospital-web-hub/internal/security"
)

func newTestContactHandler(collector *mockCollector) (*ContactHandler, *ContactStore) {
	store := NewContactStore()
	if collector == nil {
		collector = &mockCollector{}
	}
	return NewContactHandler(store, security.NewContentSanitizer(), collector, nil), store
}

func TestContactSubmit_Valid_StoresSubmission(t *testing.T) {
	collector := &mockCollector{}
	h, store := newTestContactHandler(collector)

	rec := doRequest(h.Submit, http.MethodPost, "/api/contact", map[string]string{
		"name":    "佐藤 花子",
		"email":   "sato@example.com",
		"message": "導入について相談したいです。",
	})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	submissions := store.List()
	if len(submissions) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(submissions))
	}
	if submissions[0].Name != "佐藤 花子" {
		t.Errorf("unexpected name: %s", submissions[0].Name)
	}
	if submissions[0].ReceivedAt.IsZero() {
		t.Error("expected received time to be set")
	}
	if collector.contacts != 1 {
		t.Errorf("expected 1 contact metric, got %d", collector.contacts)
	}
}

func TestContactSubmit_StripsMarkupFromMessage(t *testing.T) {
	h, store := newTestContactHandler(nil)

	rec := doRequest(h.Submit, http.MethodPost, "/api/contact", map[string]string{
		"name":    "攻撃者",
		"email":   "attacker@example.com",
		"message": `<script>alert('x')</script>相談です`,
	})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	got := store.List()[0].Message
	if strings.Contains(got, "<script>") {
		t.Errorf("expected script tag to be removed, got %q", got)
	}
	if !strings.Contains(got, "相談です") {
		t.Errorf("expected text content to survive, got %q", got)
	}
}

func TestContactSubmit_MissingFields_Returns400(t *testing.T) {
	h, store := newTestContactHandler(nil)

	cases := []map[string]string{
		{"email": "a@example.com", "message": "本文"},
		{"name": "名前", "message": "本文"},
		{"name": "名前", "email": "a@example.com"},
	}
	for _, body := range cases {
		rec := doRequest(h.Submit, http.MethodPost, "/api/contact", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for %v, got %d", body, rec.Code)
		}
	}
	if len(store.List()) != 0 {
		t.Error("expected no submissions to be stored")
	}
}

func TestContactSubmit_InvalidEmail_Returns400(t *testing.T) {
	h, _ := newTestContactHandler(nil)

	rec := doRequest(h.Submit, http.MethodPost, "/api/contact", map[string]string{
		"name":    "名前",
		"email":   "not-an-email",
		"message": "本文",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestContactSubmit_OversizedMessage_Returns400(t *testing.T) {
	h, _ := newTestContactHandler(nil)

	rec := doRequest(h.Submit, http.MethodPost, "/api/contact", map[string]string{
		"name":    "名前",
		"email":   "a@example.com",
		"message": strings.Repeat("あ", maxContactMessageLength+1),
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
