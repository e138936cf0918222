package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/techbirds/hospital-web-hub/internal/metrics"
	"github.com/techbirds/hospital-web-hub/internal/middleware"
	"github.com/techbirds/hospital-web-hub/internal/model"
	"github.com/techbirds/hospital-web-hub/internal/security"
)

// maxContactMessageLength はお問い合わせ本文の最大文字数。
const maxContactMessageLength = 4000

// ContactSubmission は受け付けたお問い合わせの1レコード。
type ContactSubmission struct {
	Name       string
	Email      string
	Message    string
	ReceivedAt time.Time
}

// ContactStore は受付済みお問い合わせのインメモリ保管。
// 外部送信やDB永続化は行わない。
type ContactStore struct {
	mu          sync.Mutex
	submissions []ContactSubmission
}

// NewContactStore はContactStoreを生成する。
func NewContactStore() *ContactStore {
	return &ContactStore{}
}

// Add はお問い合わせを追加する。
func (s *ContactStore) Add(submission ContactSubmission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, submission)
}

// List は受付済みお問い合わせのコピーを返す。
func (s *ContactStore) List() []ContactSubmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ContactSubmission, len(s.submissions))
	copy(out, s.submissions)
	return out
}

// ContactHandler はお問い合わせフォームのJSON APIハンドラー。
type ContactHandler struct {
	store     *ContactStore
	sanitizer security.ContentSanitizerService
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewContactHandler はContactHandlerを生成する。collectorはnilでもよい。
func NewContactHandler(store *ContactStore, sanitizer security.ContentSanitizerService, collector metrics.MetricsCollector, logger *slog.Logger) *ContactHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContactHandler{
		store:     store,
		sanitizer: sanitizer,
		collector: collector,
		logger:    logger,
	}
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Submit はお問い合わせを受け付ける。
// 全フィールドはサニタイズしてから保管する。
// POST /api/contact
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("リクエスト形式が不正です"))
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Message = strings.TrimSpace(req.Message)

	if req.Name == "" || req.Email == "" || req.Message == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("お名前・メールアドレス・お問い合わせ内容は必須です"))
		return
	}
	if !strings.Contains(req.Email, "@") {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("メールアドレスの形式が不正です"))
		return
	}
	if len([]rune(req.Message)) > maxContactMessageLength {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("お問い合わせ内容が長すぎます"))
		return
	}

	submission := ContactSubmission{
		Name:       h.sanitizer.SanitizeText(req.Name),
		Email:      h.sanitizer.SanitizeText(req.Email),
		Message:    h.sanitizer.SanitizeText(req.Message),
		ReceivedAt: time.Now(),
	}
	h.store.Add(submission)

	if h.collector != nil {
		h.collector.RecordContactSubmission()
	}
	h.logger.Info("contact submission received",
		slog.String("email", submission.Email),
	)

	w.WriteHeader(http.StatusAccepted)
}
