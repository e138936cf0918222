package local

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"
)

// トークン永続化に使用するキー。ブラウザのローカルストレージの2キー構成に対応する。
const (
	KeyToken = "hub_auth_token"
	KeyEmail = "hub_auth_email"
)

// TokenStore はトークンのキーバリュー永続化インターフェース。
// ブラウザ環境のローカルストレージに相当する。
type TokenStore interface {
	// Get は指定キーの値を返す。存在しない場合は空文字列を返す。
	Get(key string) string
	// Set は指定キーに値を保存する。
	Set(key, value string) error
	// Delete は指定キーの値を削除する。存在しない場合も成功する。
	Delete(key string) error
}

// MemoryTokenStore はメモリ上のTokenStore実装。テストおよび非永続の実行に使用する。
type MemoryTokenStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryTokenStore はMemoryTokenStoreを生成する。
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{values: make(map[string]string)}
}

// Get は指定キーの値を返す。存在しない場合は空文字列を返す。
func (m *MemoryTokenStore) Get(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key]
}

// Set は指定キーに値を保存する。
func (m *MemoryTokenStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete は指定キーの値を削除する。
func (m *MemoryTokenStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// FileTokenStore はJSONファイルに永続化するTokenStore実装。
// サーバー再起動をまたいでローカルセッションを維持するために使用する。
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

// NewFileTokenStore は指定パスに永続化するFileTokenStoreを生成する。
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Get は指定キーの値を返す。ファイルが存在しない・読めない場合は空文字列を返す。
func (f *FileTokenStore) Get(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return ""
	}
	return values[key]
}

// Set は指定キーに値を保存する。
func (f *FileTokenStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

// Delete は指定キーの値を削除する。
func (f *FileTokenStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	delete(values, key)
	return f.save(values)
}

func (f *FileTokenStore) load() (map[string]string, error) {
	values := make(map[string]string)
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(b, &values); err != nil {
		// 壊れたファイルは空として扱う（トークンなし == 未ログイン）
		return make(map[string]string), nil
	}
	return values, nil
}

func (f *FileTokenStore) save(values map[string]string) error {
	b, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, b, 0o600)
}

// compile-time interface checks
var _ TokenStore = (*MemoryTokenStore)(nil)
var _ TokenStore = (*FileTokenStore)(nil)
