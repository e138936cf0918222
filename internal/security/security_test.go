package security

import (
	"strings"
	"testing"
	"time"
)

func TestValidateURL_AllowsPublicHTTPS(t *testing.T) {
	g := NewSSRFGuard()
	if err := g.ValidateURL("https://example.com/roadmap.xml"); err != nil {
		t.Errorf("expected public HTTPS URL to pass: %v", err)
	}
}

func TestValidateURL_RejectsDangerousTargets(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{name: "empty", url: ""},
		{name: "file scheme", url: "file:///etc/passwd"},
		{name: "javascript scheme", url: "javascript:alert(1)"},
		{name: "localhost", url: "http://localhost/admin"},
		{name: "loopback IP", url: "http://127.0.0.1/"},
		{name: "private IP", url: "http://192.168.1.1/"},
		{name: "metadata IP", url: "http://169.254.169.254/latest/meta-data/"},
		{name: "IPv6 loopback", url: "http://[::1]/"},
		{name: "no host", url: "https:///path"},
	}

	g := NewSSRFGuard()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.ValidateURL(tt.url); err == nil {
				t.Errorf("expected %q to be rejected", tt.url)
			}
		})
	}
}

func TestNewSafeClient_ReturnsConfiguredClient(t *testing.T) {
	g := NewSSRFGuard()
	client := g.NewSafeClient(5 * time.Second)
	if client == nil {
		t.Fatal("expected non-nil client")
	}
}

func TestSanitize_RemovesScriptAndEvents(t *testing.T) {
	s := NewContentSanitizer()

	got := s.Sanitize(`<p>新機能のお知らせ</p><script>alert(1)</script><p onclick="x()">詳細</p>`)
	if strings.Contains(got, "script") || strings.Contains(got, "onclick") {
		t.Errorf("expected script and event attributes removed, got %q", got)
	}
	if !strings.Contains(got, "新機能のお知らせ") {
		t.Errorf("expected text content preserved, got %q", got)
	}
}

func TestSanitize_LinksGetSafeAttributes(t *testing.T) {
	s := NewContentSanitizer()

	got := s.Sanitize(`<a href="https://example.com/release">リリースノート</a>`)
	if !strings.Contains(got, `target="_blank"`) {
		t.Errorf("expected target=_blank on links, got %q", got)
	}
	if !strings.Contains(got, "noopener") || !strings.Contains(got, "noreferrer") {
		t.Errorf("expected rel noopener noreferrer, got %q", got)
	}
}

func TestSanitize_ImageRequiresHTTPS(t *testing.T) {
	s := NewContentSanitizer()

	if got := s.Sanitize(`<img src="https://example.com/a.png" alt="図">`); !strings.Contains(got, "img") {
		t.Errorf("expected https image allowed, got %q", got)
	}
	if got := s.Sanitize(`<img src="javascript:alert(1)">`); strings.Contains(got, "src") {
		t.Errorf("expected javascript src removed, got %q", got)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	s := NewContentSanitizer()
	input := `<p>テスト<script>x</script></p>`

	once := s.Sanitize(input)
	twice := s.Sanitize(once)
	if once != twice {
		t.Errorf("expected idempotent sanitization: %q != %q", once, twice)
	}
}

func TestSanitizeText_StripsAllMarkup(t *testing.T) {
	s := NewContentSanitizer()

	got := s.SanitizeText(`予約について<b>質問</b>があります<script>x</script>`)
	if strings.Contains(got, "<") {
		t.Errorf("expected all tags stripped, got %q", got)
	}
	if !strings.Contains(got, "質問") {
		t.Errorf("expected text preserved, got %q", got)
	}
}
