package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edupanel/institute-api/internal/models"
)

const courseColumns = `id, name, code, description, duration_weeks, fee, active, created_at, updated_at`
const batchColumns = `id, course_id, name, schedule, start_date, end_date, capacity, teacher_id, archived, created_at, updated_at`

// CourseRepository handles persistence for the course catalog and its batches.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns catalog courses with total count.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	baseQuery := `FROM courses WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY name ASC LIMIT %d OFFSET %d", courseColumns, baseQuery, pageSize, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course by identifier.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1 LIMIT 1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, name, code, description, duration_weeks, fee, active, created_at, updated_at)
		VALUES (:id, :name, :code, :description, :duration_weeks, :fee, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update persists mutable course fields.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET name = :name, description = :description, duration_weeks = :duration_weeks, fee = :fee, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// ListBatches returns batches for a course, newest first. Archived batches
// are included only when requested.
func (r *CourseRepository) ListBatches(ctx context.Context, courseID string, includeArchived bool) ([]models.Batch, error) {
	query := fmt.Sprintf(`SELECT %s FROM batches WHERE course_id = $1`, batchColumns)
	if !includeArchived {
		query += ` AND archived = FALSE`
	}
	query += ` ORDER BY start_date DESC NULLS LAST, created_at DESC`
	var batches []models.Batch
	if err := r.db.SelectContext(ctx, &batches, query, courseID); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}

// FindBatchByID returns a batch by identifier.
func (r *CourseRepository) FindBatchByID(ctx context.Context, id string) (*models.Batch, error) {
	query := fmt.Sprintf(`SELECT %s FROM batches WHERE id = $1 LIMIT 1`, batchColumns)
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		return nil, err
	}
	return &batch, nil
}

// FirstOpenBatch returns the earliest non-archived upcoming batch of a course.
// Used when an approved registration carries no batch preference.
func (r *CourseRepository) FirstOpenBatch(ctx context.Context, courseID string) (*models.Batch, error) {
	query := fmt.Sprintf(`SELECT %s FROM batches WHERE course_id = $1 AND archived = FALSE ORDER BY start_date ASC NULLS LAST, created_at ASC LIMIT 1`, batchColumns)
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, courseID); err != nil {
		return nil, err
	}
	return &batch, nil
}

// CreateBatch inserts a new batch under a course.
func (r *CourseRepository) CreateBatch(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	batch.UpdatedAt = now
	const query = `INSERT INTO batches (id, course_id, name, schedule, start_date, end_date, capacity, teacher_id, archived, created_at, updated_at)
		VALUES (:id, :course_id, :name, :schedule, :start_date, :end_date, :capacity, :teacher_id, :archived, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// UpdateBatch persists mutable batch fields including the archived flag.
func (r *CourseRepository) UpdateBatch(ctx context.Context, batch *models.Batch) error {
	batch.UpdatedAt = time.Now().UTC()
	const query = `UPDATE batches SET name = :name, schedule = :schedule, start_date = :start_date, end_date = :end_date, capacity = :capacity, teacher_id = :teacher_id, archived = :archived, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	return nil
}
