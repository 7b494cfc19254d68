package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/confportal/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const teamColumns = `id, name, description, category, leader_id, members, max_members, status,
	skills_needed, created_at, updated_at`

// PostgresTeamRepo はPostgreSQLを使用したチームリポジトリ。
type PostgresTeamRepo struct {
	db *sqlx.DB
}

// NewPostgresTeamRepo はPostgresTeamRepoを生成する。
func NewPostgresTeamRepo(db *sqlx.DB) *PostgresTeamRepo {
	return &PostgresTeamRepo{db: db}
}

type teamRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Description  string         `db:"description"`
	Category     string         `db:"category"`
	LeaderID     string         `db:"leader_id"`
	Members      pq.StringArray `db:"members"`
	MaxMembers   int            `db:"max_members"`
	Status       string         `db:"status"`
	SkillsNeeded pq.StringArray `db:"skills_needed"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func toTeamRow(t *model.Team) teamRow {
	return teamRow{
		ID:           t.ID,
		Name:         t.Name,
		Description:  t.Description,
		Category:     t.Category,
		LeaderID:     t.LeaderID,
		Members:      nonNil(t.Members),
		MaxMembers:   t.MaxMembers,
		Status:       string(t.Status),
		SkillsNeeded: nonNil(t.SkillsNeeded),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func (r teamRow) toModel() *model.Team {
	return &model.Team{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		Category:     r.Category,
		LeaderID:     r.LeaderID,
		Members:      []string(r.Members),
		MaxMembers:   r.MaxMembers,
		Status:       model.TeamStatus(r.Status),
		SkillsNeeded: []string(r.SkillsNeeded),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// Create はチームを作成する。
func (r *PostgresTeamRepo) Create(ctx context.Context, team *model.Team) error {
	now := time.Now().UTC()
	if team.CreatedAt.IsZero() {
		team.CreatedAt = now
	}
	team.UpdatedAt = team.CreatedAt

	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO teams (`+teamColumns+`)
		 VALUES (:id, :name, :description, :category, :leader_id, :members, :max_members, :status,
		 :skills_needed, :created_at, :updated_at)`,
		toTeamRow(team),
	)
	if err != nil {
		if dup := classifyUniqueViolation(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to insert team: %w", err)
	}
	return nil
}

// FindByID は指定IDのチームを取得する。
func (r *PostgresTeamRepo) FindByID(ctx context.Context, id string) (*model.Team, error) {
	if !isUUID(id) {
		return nil, nil
	}
	return r.findOne(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, id)
}

// FindByName はチーム名でチームを取得する。
func (r *PostgresTeamRepo) FindByName(ctx context.Context, name string) (*model.Team, error) {
	return r.findOne(ctx, `SELECT `+teamColumns+` FROM teams WHERE name = $1`, name)
}

func (r *PostgresTeamRepo) findOne(ctx context.Context, query string, args ...any) (*model.Team, error) {
	var row teamRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find team: %w", err)
	}
	return row.toModel(), nil
}

// List は条件に一致するチームを作成日時順に返す。
func (r *PostgresTeamRepo) List(ctx context.Context, q model.TeamSearch) ([]*model.Team, error) {
	var (
		where []string
		args  []any
	)
	if term := strings.TrimSpace(q.Term); term != "" {
		args = append(args, "%"+escapeLike(term)+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%[1]d OR description ILIKE $%[1]d)", len(args)))
	}
	if q.Category != "" {
		args = append(args, q.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}

	query := `SELECT ` + teamColumns + ` FROM teams`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	var rows []teamRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	teams := make([]*model.Team, 0, len(rows))
	for _, row := range rows {
		teams = append(teams, row.toModel())
	}
	return teams, nil
}

// AddMember は定員未満かつ未参加の場合のみメンバーを追加する。
// 行ロックを取った上で判定するため、同時joinでも定員を超えない。
func (r *PostgresTeamRepo) AddMember(ctx context.Context, teamID, userID string) (*model.Team, error) {
	return r.updateMembers(ctx, teamID, func(t *model.Team) error {
		return addMemberTo(t, userID)
	})
}

// RemoveMember はメンバーを除外する。状態は人数から再計算されLooking for membersに戻る。
func (r *PostgresTeamRepo) RemoveMember(ctx context.Context, teamID, userID string) (*model.Team, error) {
	return r.updateMembers(ctx, teamID, func(t *model.Team) error {
		return removeMemberFrom(t, userID)
	})
}

// updateMembers はチーム行をロックしてメンバー配列を変更し、
// model.PersistedTeamStatusで求めた状態と共に書き戻す。
func (r *PostgresTeamRepo) updateMembers(ctx context.Context, teamID string, mutate func(*model.Team) error) (*model.Team, error) {
	if !isUUID(teamID) {
		return nil, ErrNotFound
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var row teamRow
	err = tx.GetContext(ctx, &row, `SELECT `+teamColumns+` FROM teams WHERE id = $1 FOR UPDATE`, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock team: %w", err)
	}

	team := row.toModel()
	if err := mutate(team); err != nil {
		return nil, err
	}
	team.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE teams SET members = $2, status = $3, updated_at = $4 WHERE id = $1`,
		teamID, nonNil(team.Members), string(team.Status), team.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update team members: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return team, nil
}

func addMemberTo(t *model.Team, userID string) error {
	switch {
	case t.HasMember(userID):
		return ErrAlreadyMember
	case t.IsFull():
		return ErrTeamFull
	}
	t.Members = append(t.Members, userID)
	t.Status = model.PersistedTeamStatus(len(t.Members), t.MaxMembers)
	return nil
}

func removeMemberFrom(t *model.Team, userID string) error {
	kept := make([]string, 0, len(t.Members))
	for _, id := range t.Members {
		if id != userID {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(t.Members) {
		return ErrNotAMember
	}
	t.Members = kept
	t.Status = model.PersistedTeamStatus(len(t.Members), t.MaxMembers)
	return nil
}

// Delete はチームを削除する。
func (r *PostgresTeamRepo) Delete(ctx context.Context, teamID string) error {
	if !isUUID(teamID) {
		return ErrNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, teamID)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	return requireAffected(result, ErrNotFound)
}

// Disband は全メンバーの所属解除とチーム削除を同一トランザクションで行う。
// 所属解除はteam_idがこのチームを指すユーザーが対象で、メンバー配列の内容には依存しない。
func (r *PostgresTeamRepo) Disband(ctx context.Context, teamID string) ([]string, error) {
	if !isUUID(teamID) {
		return nil, ErrNotFound
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 同時のjoin/leaveと競合しないよう行ロックを取得する
	var members pq.StringArray
	err = tx.GetContext(ctx, &members, `SELECT members FROM teams WHERE id = $1 FOR UPDATE`, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock team: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET team_id = NULL, team_name = NULL, updated_at = $2
		 WHERE team_id = $1`,
		teamID, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to clear member teams: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, teamID); err != nil {
		return nil, fmt.Errorf("failed to delete team: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return []string(members), nil
}

// compile-time interface check
var _ TeamRepository = (*PostgresTeamRepo)(nil)
