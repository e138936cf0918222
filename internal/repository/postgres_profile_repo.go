package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/techbirds/hospital-web-hub/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
// 開放的な属性バッグはJSONBカラムに保存する。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindBySubjectID はサブジェクトIDでプロフィールを検索する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindBySubjectID(ctx context.Context, subjectID string) (*model.Profile, error) {
	profile := &model.Profile{}
	var role string
	var attrs []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT id, subject_id, email, role, is_active, attributes, created_at, updated_at
		 FROM profiles WHERE subject_id = $1`,
		subjectID,
	).Scan(&profile.ID, &profile.SubjectID, &profile.Email, &role, &profile.IsActive, &attrs, &profile.CreatedAt, &profile.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by subject ID: %w", err)
	}

	parsedRole, ok := model.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("unknown role stored for profile %s: %s", profile.ID, role)
	}
	profile.Role = parsedRole

	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &profile.Attributes); err != nil {
			return nil, fmt.Errorf("failed to decode profile attributes: %w", err)
		}
	}

	return profile, nil
}

// Create はプロフィールを作成する。
func (r *PostgresProfileRepo) Create(ctx context.Context, profile *model.Profile) error {
	attrs, err := json.Marshal(profile.Attributes)
	if err != nil {
		return fmt.Errorf("failed to encode profile attributes: %w", err)
	}
	if profile.Attributes == nil {
		attrs = []byte("{}")
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, subject_id, email, role, is_active, attributes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		profile.ID, profile.SubjectID, profile.Email, string(profile.Role), profile.IsActive, attrs, profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// UpdateAttributes は部分属性セットを既存属性にマージして保存する。
// マージはデータベース側のJSONB連結で行うため、同時更新でも属性単位で後勝ちになる。
func (r *PostgresProfileRepo) UpdateAttributes(ctx context.Context, subjectID string, partial map[string]string) error {
	attrs, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("failed to encode partial attributes: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET attributes = attributes || $2::jsonb, updated_at = now()
		 WHERE subject_id = $1`,
		subjectID, attrs,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile attributes: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrProfileNotFound
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
