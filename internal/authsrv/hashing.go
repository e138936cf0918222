package authsrv

import "golang.org/x/crypto/bcrypt"

// Hasher はbcryptによるパスワードのハッシュ化と検証を提供する。
// 平文パスワードをログや永続化層に渡してはならない。
type Hasher struct {
	cost int
}

// NewHasher は指定コストのHasherを生成する。範囲外の値はbcryptの既定値に丸める。
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash はパスワードのbcryptハッシュを生成する。
func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare は保存済みハッシュとパスワードを定数時間で比較する。
// 一致しない場合はエラーを返す。
func (h *Hasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
