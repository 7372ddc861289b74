// Package repo persists courses and enrollments inside the caller's tenant
// schema. Every query runs on the pool the resolver middleware attached to
// the request context; nothing here ever names a schema.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novalearn-io/novalearn/domains/courses/be/service"
	"github.com/novalearn-io/novalearn/platform/go/tenant"
)

// PostgresRepository reads and writes tenant-local course data.
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

// EnsureProfile upserts the tenant-local mirror of a global identity and
// returns its profile id. Called before any write that references profiles.
func (r *PostgresRepository) EnsureProfile(ctx context.Context, p service.Profile) (uuid.UUID, error) {
	pool, err := tenantPool(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	var id uuid.UUID
	err = pool.QueryRow(ctx, `
		INSERT INTO profiles (id, identity_id, full_name, email, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identity_id) DO UPDATE
		SET full_name = EXCLUDED.full_name, email = EXCLUDED.email, role = EXCLUDED.role
		RETURNING id`,
		uuid.New(), p.IdentityID, p.FullName, p.Email, p.Role).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("ensure profile: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) CreateCourse(ctx context.Context, c service.Course) (service.Course, error) {
	pool, err := tenantPool(ctx)
	if err != nil {
		return service.Course{}, err
	}

	err = pool.QueryRow(ctx, `
		INSERT INTO courses (id, code, title, description, teacher_id, branch_id)
		VALUES ($1, $2, $3, $4, $5,
			COALESCE($6, (SELECT id FROM branches WHERE is_main LIMIT 1)))
		RETURNING created_at, branch_id`,
		c.ID, c.Code, c.Title, c.Description, c.TeacherID, c.BranchID,
	).Scan(&c.CreatedAt, &c.BranchID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "courses_code_unique" {
			return service.Course{}, service.ErrDuplicateCode
		}
		return service.Course{}, fmt.Errorf("create course: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) GetCourse(ctx context.Context, id uuid.UUID) (service.Course, error) {
	pool, err := tenantPool(ctx)
	if err != nil {
		return service.Course{}, err
	}

	row := pool.QueryRow(ctx, `
		SELECT id, code, title, description, teacher_id, branch_id, created_at
		FROM courses WHERE id = $1`, id)
	return scanCourse(row)
}

func (r *PostgresRepository) ListCourses(ctx context.Context) ([]service.Course, error) {
	pool, err := tenantPool(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
		SELECT id, code, title, description, teacher_id, branch_id, created_at
		FROM courses ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	courses := make([]service.Course, 0)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (r *PostgresRepository) UpdateCourse(ctx context.Context, id uuid.UUID, title string, description *string) (service.Course, error) {
	pool, err := tenantPool(ctx)
	if err != nil {
		return service.Course{}, err
	}

	tag, err := pool.Exec(ctx,
		"UPDATE courses SET title = $2, description = $3 WHERE id = $1",
		id, title, description)
	if err != nil {
		return service.Course{}, fmt.Errorf("update course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return service.Course{}, service.ErrNotFound
	}
	return r.GetCourse(ctx, id)
}

func (r *PostgresRepository) Enroll(ctx context.Context, courseID, studentProfileID uuid.UUID) (service.Enrollment, error) {
	pool, err := tenantPool(ctx)
	if err != nil {
		return service.Enrollment{}, err
	}

	e := service.Enrollment{ID: uuid.New(), CourseID: courseID, StudentID: studentProfileID}
	err = pool.QueryRow(ctx, `
		INSERT INTO enrollments (id, course_id, student_id)
		VALUES ($1, $2, $3)
		RETURNING enrolled_at`,
		e.ID, e.CourseID, e.StudentID).Scan(&e.EnrolledAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch {
			case pgErr.Code == "23505" && pgErr.ConstraintName == "enrollments_course_student_unique":
				return service.Enrollment{}, service.ErrAlreadyEnrolled
			case pgErr.Code == "23503":
				return service.Enrollment{}, service.ErrNotFound
			}
		}
		return service.Enrollment{}, fmt.Errorf("enroll: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) ListEnrollments(ctx context.Context, courseID uuid.UUID) ([]service.Enrollment, error) {
	pool, err := tenantPool(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
		SELECT id, course_id, student_id, enrolled_at
		FROM enrollments WHERE course_id = $1 ORDER BY enrolled_at`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	enrollments := make([]service.Enrollment, 0)
	for rows.Next() {
		var e service.Enrollment
		if err := rows.Scan(&e.ID, &e.CourseID, &e.StudentID, &e.EnrolledAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(row rowScanner) (service.Course, error) {
	var c service.Course
	err := row.Scan(&c.ID, &c.Code, &c.Title, &c.Description, &c.TeacherID, &c.BranchID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return service.Course{}, service.ErrNotFound
	}
	if err != nil {
		return service.Course{}, fmt.Errorf("scan course: %w", err)
	}
	return c, nil
}

var _ service.Repository = (*PostgresRepository)(nil)
