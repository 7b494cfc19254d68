package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/confportal/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// 一意制約名。マイグレーションの定義と一致させる。
const (
	constraintUserEmail        = "users_email_key"
	constraintUserProviderLink = "users_provider_link_key"
	constraintTeamName         = "teams_name_key"
)

const userColumns = `id, full_name, email, password_hash, role, status, provider, provider_id,
	interests, team_id, team_name, company, title, bio, expertise, availability, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sqlx.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sqlx.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// userRow はusersテーブルの行を表す。
type userRow struct {
	ID           string         `db:"id"`
	FullName     string         `db:"full_name"`
	Email        string         `db:"email"`
	PasswordHash sql.NullString `db:"password_hash"`
	Role         string         `db:"role"`
	Status       string         `db:"status"`
	Provider     string         `db:"provider"`
	ProviderID   sql.NullString `db:"provider_id"`
	Interests    pq.StringArray `db:"interests"`
	TeamID       sql.NullString `db:"team_id"`
	TeamName     sql.NullString `db:"team_name"`
	Company      string         `db:"company"`
	Title        string         `db:"title"`
	Bio          string         `db:"bio"`
	Expertise    pq.StringArray `db:"expertise"`
	Availability string         `db:"availability"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func toUserRow(u *model.User) userRow {
	return userRow{
		ID:           u.ID,
		FullName:     u.FullName,
		Email:        u.Email,
		PasswordHash: nullString(u.PasswordHash),
		Role:         string(u.Role),
		Status:       string(u.Status),
		Provider:     u.Provider,
		ProviderID:   nullString(u.ProviderID),
		Interests:    nonNil(u.Interests),
		TeamID:       nullString(u.TeamID),
		TeamName:     nullString(u.TeamName),
		Company:      u.Company,
		Title:        u.Title,
		Bio:          u.Bio,
		Expertise:    nonNil(u.Expertise),
		Availability: u.Availability,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (r userRow) toModel() *model.User {
	return &model.User{
		ID:           r.ID,
		FullName:     r.FullName,
		Email:        r.Email,
		PasswordHash: r.PasswordHash.String,
		Role:         model.Role(r.Role),
		Status:       model.UserStatus(r.Status),
		Provider:     r.Provider,
		ProviderID:   r.ProviderID.String,
		Interests:    []string(r.Interests),
		TeamID:       r.TeamID.String,
		TeamName:     r.TeamName.String,
		Company:      r.Company,
		Title:        r.Title,
		Bio:          r.Bio,
		Expertise:    []string(r.Expertise),
		Availability: r.Availability,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toUsers(rows []userRow) []*model.User {
	users := make([]*model.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toModel())
	}
	return users
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt

	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (:id, :full_name, :email, :password_hash, :role, :status, :provider, :provider_id,
		 :interests, :team_id, :team_name, :company, :title, :bio, :expertise, :availability, :created_at, :updated_at)`,
		toUserRow(user),
	)
	if err != nil {
		if dup := classifyUniqueViolation(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// FindByID は指定IDのユーザーを取得する。
// UUIDとして不正なIDはDBに問い合わせずnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if !isUUID(id) {
		return nil, nil
	}
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByIDs は指定ID群のユーザーを取得する。
func (r *PostgresUserRepo) FindByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []*model.User{}, nil
	}

	var rows []userRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[])`,
		pq.StringArray(valid),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find users by IDs: %w", err)
	}
	return toUsers(rows), nil
}

// FindByEmail はメールアドレスでユーザーを取得する。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// FindByProviderLink はproviderとprovider_idでユーザーを取得する。
func (r *PostgresUserRepo) FindByProviderLink(ctx context.Context, provider, providerID string) (*model.User, error) {
	if providerID == "" {
		return nil, nil
	}
	return r.findOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE provider = $1 AND provider_id = $2`,
		provider, providerID,
	)
}

func (r *PostgresUserRepo) findOne(ctx context.Context, query string, args ...any) (*model.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return row.toModel(), nil
}

// Update は所属チーム以外の可変フィールドを置き換える。
// team_id/team_nameはSetTeam/ClearTeam/Disbandのみが更新する。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	if !isUUID(user.ID) {
		return ErrNotFound
	}
	user.UpdatedAt = time.Now().UTC()

	result, err := r.db.NamedExecContext(ctx,
		`UPDATE users SET
			full_name = :full_name,
			email = :email,
			password_hash = :password_hash,
			role = :role,
			status = :status,
			provider = :provider,
			provider_id = :provider_id,
			interests = :interests,
			company = :company,
			title = :title,
			bio = :bio,
			expertise = :expertise,
			availability = :availability,
			updated_at = :updated_at
		 WHERE id = :id`,
		toUserRow(user),
	)
	if err != nil {
		if dup := classifyUniqueViolation(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireAffected(result, ErrNotFound)
}

// List は全ユーザーを作成日時順に返す。
func (r *PostgresUserRepo) List(ctx context.Context) ([]*model.User, error) {
	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return toUsers(rows), nil
}

// Search は条件に一致するユーザーを返す。
func (r *PostgresUserRepo) Search(ctx context.Context, q model.UserSearch) ([]*model.User, error) {
	query, args := buildUserSearch(q)

	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return toUsers(rows), nil
}

// buildUserSearch は検索条件からSQLと引数を組み立てる。
func buildUserSearch(q model.UserSearch) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Role != "" {
		where = append(where, "role = "+arg(string(q.Role)))
	}
	if q.Status != "" {
		where = append(where, "status = "+arg(string(q.Status)))
	}
	if term := strings.TrimSpace(q.Term); term != "" {
		p := arg("%" + escapeLike(term) + "%")
		where = append(where, fmt.Sprintf(
			"(full_name ILIKE %[1]s OR company ILIKE %[1]s OR title ILIKE %[1]s OR bio ILIKE %[1]s)", p))
	}
	if exp := strings.TrimSpace(q.Expertise); exp != "" {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM unnest(expertise) AS e WHERE lower(e) = lower(%s))", arg(exp)))
	}
	if q.ExcludeID != "" && isUUID(q.ExcludeID) {
		where = append(where, "id <> "+arg(q.ExcludeID))
	}
	if q.NoTeam {
		where = append(where, "team_id IS NULL")
	}
	if len(q.Interests) > 0 {
		where = append(where, "interests && "+arg(pq.StringArray(q.Interests))+"::text[]")
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY full_name, id"
	return query, args
}

// SetTeam はチーム未所属のユーザーにチームを設定する。
func (r *PostgresUserRepo) SetTeam(ctx context.Context, userID, teamID, teamName string) error {
	if !isUUID(userID) {
		return ErrNotFound
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET team_id = $2, team_name = $3, updated_at = $4
		 WHERE id = $1 AND team_id IS NULL`,
		userID, teamID, teamName, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set team: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	// 0件の場合は存在しないのか、すでに所属しているのかを判別する
	user, err := r.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNotFound
	}
	return ErrUserHasTeam
}

// ClearTeam はユーザーが指定チームに所属している場合に所属を解除する。
func (r *PostgresUserRepo) ClearTeam(ctx context.Context, userID, teamID string) error {
	if !isUUID(userID) {
		return ErrNotFound
	}
	if !isUUID(teamID) {
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET team_id = NULL, team_name = NULL, updated_at = $3
		 WHERE id = $1 AND team_id = $2`,
		userID, teamID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to clear team: %w", err)
	}
	return nil
}

// classifyUniqueViolation は一意制約違反を制約名に応じたエラーに変換する。
// 一意制約違反でない場合はnilを返す。
func classifyUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}
	switch pqErr.Constraint {
	case constraintUserEmail:
		return ErrDuplicateEmail
	case constraintUserProviderLink:
		return ErrDuplicateProviderLink
	case constraintTeamName:
		return ErrDuplicateTeamName
	}
	return nil
}

func requireAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nonNil はNOT NULL配列列に書き込むため、nilスライスを空スライスに変換する。
func nonNil(s []string) pq.StringArray {
	if s == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(s)
}

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
