package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coachbook/server/internal/auth"
	"github.com/coachbook/server/internal/domain/users"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ users.Repository = (*UserRepository)(nil)

type UserRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *UserRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

const userColumns = `id, name, email, image, role, position_id, bio, department, created_at`

func scanUser(row pgx.Row) (*users.User, error) {
	var (
		user       users.User
		image      *string
		role       *string
		positionID *string
		bio        *string
		department *string
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &image, &role, &positionID, &bio, &department, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.Image = derefString(image)
	user.Role = auth.NormalizeRole(derefString(role))
	user.PositionID = derefString(positionID)
	user.Bio = derefString(bio)
	user.Department = derefString(department)
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*users.User, error) {
	user, err := scanUser(r.queryer().QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) UpsertByEmail(ctx context.Context, params users.UpsertParams) (*users.User, error) {
	row := r.queryer().QueryRow(ctx, `
INSERT INTO users (id, email, name, image)
VALUES ($1, $2, $3, $4)
ON CONFLICT (email) DO UPDATE
   SET name = EXCLUDED.name,
       image = COALESCE(EXCLUDED.image, users.image)
RETURNING `+userColumns,
		params.ID, params.Email, params.Name, nullString(params.Image),
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) UpdateRole(ctx context.Context, userID string, role auth.Role) error {
	tag, err := r.queryer().Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, userID, nullString(string(role)))
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePosition(ctx context.Context, userID, positionID string) error {
	tag, err := r.queryer().Exec(ctx, `UPDATE users SET position_id = $2 WHERE id = $1`, userID, nullString(positionID))
	if err != nil {
		if isForeignKeyViolation(err) {
			return users.ErrPositionNotFound
		}
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepository) ReplaceCompetencies(ctx context.Context, userID string, competencyIDs []string) error {
	replace := func(q queryer) error {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if !exists {
			return users.ErrNotFound
		}
		if _, err := q.Exec(ctx, `DELETE FROM user_competencies WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clear competencies: %w", err)
		}
		if len(competencyIDs) == 0 {
			return nil
		}
		_, err := q.Exec(ctx, `
INSERT INTO user_competencies (user_id, competency_id)
SELECT $1, competency_id FROM unnest($2::text[]) AS competency_id
ON CONFLICT DO NOTHING`, userID, competencyIDs)
		if err != nil {
			if isForeignKeyViolation(err) {
				return users.ErrCompetencyNotFound
			}
			return fmt.Errorf("insert competencies: %w", err)
		}
		return nil
	}

	if r.tx != nil {
		return replace(r.tx)
	}
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		return replace(tx)
	})
}

func (r *UserRepository) CreatePosition(ctx context.Context, id, name string) (*users.Position, error) {
	var position users.Position
	err := r.queryer().QueryRow(ctx,
		`INSERT INTO positions (id, name) VALUES ($1, $2) RETURNING id, name, created_at`,
		id, name,
	).Scan(&position.ID, &position.Name, &position.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, users.ErrPositionExists
		}
		return nil, fmt.Errorf("create position: %w", err)
	}
	return &position, nil
}

func (r *UserRepository) ListPositions(ctx context.Context) ([]users.Position, error) {
	rows, err := r.queryer().Query(ctx, `SELECT id, name, created_at FROM positions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var positions []users.Position
	for rows.Next() {
		var p users.Position
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return positions, nil
}

func (r *UserRepository) FindCompetencyByName(ctx context.Context, name string) (*users.Competency, error) {
	var c users.Competency
	err := r.queryer().QueryRow(ctx,
		`SELECT id, name, created_at FROM competencies WHERE lower(name) = lower($1)`, name,
	).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrCompetencyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find competency: %w", err)
	}
	return &c, nil
}

func (r *UserRepository) CreateCompetency(ctx context.Context, id, name string) (*users.Competency, error) {
	var c users.Competency
	err := r.queryer().QueryRow(ctx,
		`INSERT INTO competencies (id, name) VALUES ($1, $2) RETURNING id, name, created_at`,
		id, name,
	).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, users.ErrCompetencyExists
		}
		return nil, fmt.Errorf("create competency: %w", err)
	}
	return &c, nil
}

func (r *UserRepository) ListCompetencies(ctx context.Context) ([]users.Competency, error) {
	rows, err := r.queryer().Query(ctx, `SELECT id, name, created_at FROM competencies ORDER BY lower(name)`)
	if err != nil {
		return nil, fmt.Errorf("list competencies: %w", err)
	}
	defer rows.Close()

	var competencies []users.Competency
	for rows.Next() {
		var c users.Competency
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan competency: %w", err)
		}
		competencies = append(competencies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate competencies: %w", err)
	}
	return competencies, nil
}

// Directory lists every user with position and competencies, ordered by name.
func (r *UserRepository) Directory(ctx context.Context) ([]users.DirectoryEntry, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT u.id, u.name, u.email, u.image, u.role, u.position_id, u.bio, u.department, u.created_at,
       p.name, p.created_at
  FROM users u
  LEFT JOIN positions p ON p.id = u.position_id
 ORDER BY u.name, u.id`)
	if err != nil {
		return nil, fmt.Errorf("list directory: %w", err)
	}
	defer rows.Close()

	var entries []users.DirectoryEntry
	index := make(map[string]int)
	for rows.Next() {
		var (
			user              users.User
			image, role, pid  *string
			bio, department   *string
			positionName      *string
			positionCreatedAt *time.Time
		)
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &image, &role, &pid, &bio, &department, &user.CreatedAt,
			&positionName, &positionCreatedAt); err != nil {
			return nil, fmt.Errorf("scan directory: %w", err)
		}
		user.Image = derefString(image)
		user.Role = auth.NormalizeRole(derefString(role))
		user.PositionID = derefString(pid)
		user.Bio = derefString(bio)
		user.Department = derefString(department)

		entry := users.DirectoryEntry{User: user}
		if user.PositionID != "" && positionName != nil {
			entry.Position = &users.Position{ID: user.PositionID, Name: *positionName}
			if positionCreatedAt != nil {
				entry.Position.CreatedAt = *positionCreatedAt
			}
		}
		index[user.ID] = len(entries)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate directory: %w", err)
	}
	if len(entries) == 0 {
		return entries, nil
	}

	linkRows, err := r.queryer().Query(ctx, `
SELECT uc.user_id, c.id, c.name, c.created_at
  FROM user_competencies uc
  JOIN competencies c ON c.id = uc.competency_id
 ORDER BY lower(c.name)`)
	if err != nil {
		return nil, fmt.Errorf("list directory competencies: %w", err)
	}
	defer linkRows.Close()

	for linkRows.Next() {
		var (
			userID string
			c      users.Competency
		)
		if err := linkRows.Scan(&userID, &c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan directory competency: %w", err)
		}
		if i, ok := index[userID]; ok {
			entries[i].Competencies = append(entries[i].Competencies, c)
		}
	}
	if err := linkRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate directory competencies: %w", err)
	}
	return entries, nil
}
