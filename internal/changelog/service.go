// Package changelog はサービスロードマップ・更新情報のフィード取得を提供する。
// 公開サイトの「開発ロードマップ」セクションに表示する記事を、
// 外部フィードから安全に取り込む。
package changelog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
)

// maxEntries はロードマップに表示する記事の最大数。
const maxEntries = 20

// maxBodySize はフィードレスポンスの最大読み取りサイズ（1MB）。
const maxBodySize = 1 << 20

// Entry はロードマップに表示する1記事。
type Entry struct {
	Title       string
	Link        string
	Summary     string // サニタイズ済みHTML
	PublishedAt time.Time
}

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Sanitizer はHTMLサニタイズのインターフェース。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// Service はロードマップフィードの取得・キャッシュを提供する。
type Service struct {
	feedURL   string
	client    *http.Client
	ssrfGuard SSRFValidator
	sanitizer Sanitizer
	logger    *slog.Logger
	parser    *gofeed.Parser
	cacheTTL  time.Duration

	mu        sync.Mutex
	cached    []Entry
	fetchedAt time.Time
}

// NewService はロードマップフィードサービスを生成する。
// HTTPクライアントはSSRF防止機能付きのものを使用する。
func NewService(feedURL string, ssrfGuard SSRFValidator, sanitizer Sanitizer, logger *slog.Logger, cacheTTL time.Duration) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	return &Service{
		feedURL:   feedURL,
		client:    ssrfGuard.NewSafeClient(10 * time.Second),
		ssrfGuard: ssrfGuard,
		sanitizer: sanitizer,
		logger:    logger,
		parser:    gofeed.NewParser(),
		cacheTTL:  cacheTTL,
	}
}

// Entries はロードマップ記事を新しい順で返す。
// キャッシュが有効な間はフィードを再取得しない。
// 取得失敗時、期限切れでもキャッシュが残っていればそれを返す。
func (s *Service) Entries(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	if s.cached != nil && time.Since(s.fetchedAt) < s.cacheTTL {
		entries := s.cached
		s.mu.Unlock()
		return entries, nil
	}
	s.mu.Unlock()

	entries, err := s.fetch(ctx)
	if err != nil {
		s.mu.Lock()
		stale := s.cached
		s.mu.Unlock()
		if stale != nil {
			s.logger.Warn("roadmap feed fetch failed, serving stale cache",
				slog.String("url", s.feedURL),
				slog.String("error", err.Error()),
			)
			return stale, nil
		}
		return nil, err
	}

	s.mu.Lock()
	s.cached = entries
	s.fetchedAt = time.Now()
	s.mu.Unlock()
	return entries, nil
}

// fetch はフィードを取得・パースしてEntryに変換する。
// 取得先がHTMLページの場合はheadのalternateリンクからフィードURLを自動検出する。
func (s *Service) fetch(ctx context.Context) ([]Entry, error) {
	if err := s.ssrfGuard.ValidateURL(s.feedURL); err != nil {
		return nil, fmt.Errorf("roadmap feed URL rejected: %w", err)
	}

	body, contentType, err := s.get(ctx, s.feedURL)
	if err != nil {
		return nil, err
	}

	// HTMLページが設定されている場合はフィードリンクを自動検出する
	if isHTMLContentType(contentType) {
		feedURL := DiscoverFeedURL(body, s.feedURL)
		if feedURL == "" {
			return nil, fmt.Errorf("no feed link found at %s", s.feedURL)
		}
		if err := s.ssrfGuard.ValidateURL(feedURL); err != nil {
			return nil, fmt.Errorf("discovered feed URL rejected: %w", err)
		}
		body, _, err = s.get(ctx, feedURL)
		if err != nil {
			return nil, err
		}
	}

	feed, err := s.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse roadmap feed: %w", err)
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		entry := Entry{
			Title:   item.Title,
			Link:    item.Link,
			Summary: s.sanitizer.Sanitize(summary),
		}
		if item.PublishedParsed != nil {
			entry.PublishedAt = *item.PublishedParsed
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].PublishedAt.After(entries[j].PublishedAt)
	})
	if len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}
	return entries, nil
}

// get はURLを取得してボディとContent-Typeを返す。
func (s *Service) get(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "HospitalWebHub/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("feed server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read feed body: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}
