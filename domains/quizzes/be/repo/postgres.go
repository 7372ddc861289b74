// Package repo persists quizzes inside the caller's tenant schema via the
// context-attached pool.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novalearn-io/novalearn/domains/quizzes/be/service"
	"github.com/novalearn-io/novalearn/platform/go/tenant"
)

// PostgresRepository reads and writes tenant-local quizzes.
type PostgresRepository struct{}

// NewPostgresRepository constructs a PostgresRepository.
func NewPostgresRepository() *PostgresRepository {
	return &PostgresRepository{}
}

func tenantPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, ok := tenant.PoolFromContext(ctx)
	if !ok {
		return nil, errors.New("no tenant pool on context")
	}
	return pool, nil
}

func (r *PostgresRepository) CreateQuiz(ctx context.Context, q service.Quiz) (service.Quiz, error) {
	pool, err := tenantPool(ctx)
	if err != nil {
		return service.Quiz{}, err
	}

	err = pool.QueryRow(ctx, `
		INSERT INTO quizzes (id, course_id, title, questions, time_limit_seconds)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING published, created_at`,
		q.ID, q.CourseID, q.Title, q.Questions, q.TimeLimitSeconds,
	).Scan(&q.Published, &q.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return service.Quiz{}, service.ErrCourseNotFound
		}
		return service.Quiz{}, fmt.Errorf("create quiz: %w", err)
	}
	return q, nil
}

func (r *PostgresRepository) GetQuiz(ctx context.Context, id uuid.UUID) (service.Quiz, error) {
	pool, err := tenantPool(ctx)
	if err != nil {
		return service.Quiz{}, err
	}

	row := pool.QueryRow(ctx, `
		SELECT id, course_id, title, questions, time_limit_seconds, published, created_at
		FROM quizzes WHERE id = $1`, id)
	return scanQuiz(row)
}

func (r *PostgresRepository) ListQuizzes(ctx context.Context, courseID uuid.UUID) ([]service.Quiz, error) {
	pool, err := tenantPool(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
		SELECT id, course_id, title, questions, time_limit_seconds, published, created_at
		FROM quizzes WHERE course_id = $1 ORDER BY created_at`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	quizzes := make([]service.Quiz, 0)
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

func (r *PostgresRepository) SetPublished(ctx context.Context, id uuid.UUID, published bool) (service.Quiz, error) {
	pool, err := tenantPool(ctx)
	if err != nil {
		return service.Quiz{}, err
	}

	tag, err := pool.Exec(ctx, "UPDATE quizzes SET published = $2 WHERE id = $1", id, published)
	if err != nil {
		return service.Quiz{}, fmt.Errorf("set published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return service.Quiz{}, service.ErrNotFound
	}
	return r.GetQuiz(ctx, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuiz(row rowScanner) (service.Quiz, error) {
	var q service.Quiz
	err := row.Scan(&q.ID, &q.CourseID, &q.Title, &q.Questions, &q.TimeLimitSeconds, &q.Published, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return service.Quiz{}, service.ErrNotFound
	}
	if err != nil {
		return service.Quiz{}, fmt.Errorf("scan quiz: %w", err)
	}
	return q, nil
}

var _ service.Repository = (*PostgresRepository)(nil)
