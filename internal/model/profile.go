// Package model はドメインモデルを定義する。
package model

import "time"

// Role はプロフィールのアクセス制御上の分類を表す。
type Role string

// 定義済みロール。
const (
	RoleAdmin        Role = "admin"
	RoleDoctor       Role = "doctor"
	RoleNurse        Role = "nurse"
	RoleReceptionist Role = "receptionist"
	RolePharmacist   Role = "pharmacist"
	RoleLabTech      Role = "lab_tech"
	RolePatient      Role = "patient"
	RoleHRManager    Role = "hr_manager"
	RolePractitioner Role = "practitioner"
	RoleAssistant    Role = "assistant"
)

// allRoles は有効なロールの一覧。
var allRoles = []Role{
	RoleAdmin, RoleDoctor, RoleNurse, RoleReceptionist, RolePharmacist,
	RoleLabTech, RolePatient, RoleHRManager, RolePractitioner, RoleAssistant,
}

// IsValid はロールが定義済みの列挙に含まれるかを返す。
func (r Role) IsValid() bool {
	for _, role := range allRoles {
		if r == role {
			return true
		}
	}
	return false
}

// ParseRole は文字列をRoleに変換する。未定義の場合はfalseを返す。
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.IsValid()
}

// Profile は認可判定に使うプロフィールレコードを表す。
// 固定フィールド（ID、SubjectID、Email、Role、IsActive）は静的に型付けし、
// 診療科固有の拡張データはAttributesに格納する。
type Profile struct {
	ID        string
	SubjectID string
	Email     string
	Role      Role
	IsActive  bool

	// Attributes はクリニック所属、電話番号、画像URL等の拡張属性。
	Attributes map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone はProfileの深いコピーを返す。
// ストアの内部状態を呼び出し元の変更から守るために使用する。
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Attributes != nil {
		clone.Attributes = make(map[string]string, len(p.Attributes))
		for k, v := range p.Attributes {
			clone.Attributes[k] = v
		}
	}
	return &clone
}

// MergeAttributes は部分的な属性セットを既存プロフィールにマージした新しいProfileを返す。
// 電話番号などの既知属性も未知の拡張属性も同じマップで扱う。
func (p *Profile) MergeAttributes(partial map[string]string) *Profile {
	merged := p.Clone()
	if merged == nil {
		return nil
	}
	if merged.Attributes == nil {
		merged.Attributes = make(map[string]string, len(partial))
	}
	for k, v := range partial {
		merged.Attributes[k] = v
	}
	return merged
}
