package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupanel/institute-api/internal/dto"
	"github.com/edupanel/institute-api/internal/models"
	appErrors "github.com/edupanel/institute-api/pkg/errors"
)

type academicsRepository interface {
	ListAssignments(ctx context.Context, batchID string) ([]models.Assignment, error)
	FindAssignmentByID(ctx context.Context, id string) (*models.Assignment, error)
	CreateAssignment(ctx context.Context, assignment *models.Assignment) error
	ArchiveAssignment(ctx context.Context, id string) error
	ListSubmissions(ctx context.Context, assignmentID string) ([]models.Submission, error)
	FindSubmission(ctx context.Context, assignmentID, studentID string) (*models.Submission, error)
	FindSubmissionByID(ctx context.Context, id string) (*models.Submission, error)
	CreateSubmission(ctx context.Context, submission *models.Submission) error
	GradeSubmission(ctx context.Context, id string, score int, feedback string, graderID string, gradedAt time.Time) error
	ListMaterials(ctx context.Context, batchID string) ([]models.StudyMaterial, error)
	CreateMaterial(ctx context.Context, material *models.StudyMaterial) error
	ArchiveMaterial(ctx context.Context, id string) error
}

// AcademicsService manages assignments, submissions and study materials.
type AcademicsService struct {
	repo      academicsRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAcademicsService constructs the service.
func NewAcademicsService(repo academicsRepository, validate *validator.Validate, logger *zap.Logger) *AcademicsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AcademicsService{repo: repo, validator: validate, logger: logger}
}

// ListAssignments returns the coursework for a batch.
func (s *AcademicsService) ListAssignments(ctx context.Context, batchID string) ([]models.Assignment, error) {
	assignments, err := s.repo.ListAssignments(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// CreateAssignment adds coursework to a batch.
func (s *AcademicsService) CreateAssignment(ctx context.Context, batchID, teacherID string, req dto.CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	assignment := &models.Assignment{
		BatchID:     batchID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		MaxScore:    req.MaxScore,
		CreatedBy:   teacherID,
	}
	if err := s.repo.CreateAssignment(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	return assignment, nil
}

// ArchiveAssignment soft-removes coursework from the batch listing.
func (s *AcademicsService) ArchiveAssignment(ctx context.Context, id string) error {
	if err := s.repo.ArchiveAssignment(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive assignment")
	}
	return nil
}

// ListSubmissions returns all submissions for an assignment.
func (s *AcademicsService) ListSubmissions(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	submissions, err := s.repo.ListSubmissions(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

// Submit records a student's answer. One submission per student; resubmission
// before the deadline replaces nothing and is rejected as a conflict.
func (s *AcademicsService) Submit(ctx context.Context, assignmentID, studentID string, req dto.SubmitAssignmentRequest) (*models.Submission, error) {
	if req.Content == nil && req.FileURL == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submission requires content or a file")
	}

	assignment, err := s.repo.FindAssignmentByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if assignment.Archived {
		return nil, appErrors.Clone(appErrors.ErrConflict, "assignment is archived")
	}
	if assignment.DueDate != nil && time.Now().UTC().After(*assignment.DueDate) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "assignment deadline has passed")
	}

	if _, err := s.repo.FindSubmission(ctx, assignmentID, studentID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "assignment already submitted")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing submission")
	}

	submission := &models.Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Content:      req.Content,
		FileURL:      req.FileURL,
		SubmittedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateSubmission(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}
	return submission, nil
}

// Grade records teacher feedback on a submission. The score is bounded by
// the assignment's max score.
func (s *AcademicsService) Grade(ctx context.Context, submissionID, graderID string, req dto.GradeSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	submission, err := s.repo.FindSubmissionByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	assignment, err := s.repo.FindAssignmentByID(ctx, submission.AssignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if req.Score > assignment.MaxScore {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score exceeds the assignment max score")
	}

	if err := s.repo.GradeSubmission(ctx, submissionID, req.Score, req.Feedback, graderID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grade submission")
	}

	graded, err := s.repo.FindSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload submission")
	}
	return graded, nil
}

// ListMaterials returns the study materials shared with a batch.
func (s *AcademicsService) ListMaterials(ctx context.Context, batchID string) ([]models.StudyMaterial, error) {
	materials, err := s.repo.ListMaterials(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list materials")
	}
	return materials, nil
}

// CreateMaterial shares a study material reference with a batch.
func (s *AcademicsService) CreateMaterial(ctx context.Context, batchID, uploaderID string, req dto.CreateMaterialRequest) (*models.StudyMaterial, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid material payload")
	}

	material := &models.StudyMaterial{
		BatchID:    batchID,
		Title:      req.Title,
		Type:       req.Type,
		FileURL:    req.FileURL,
		UploadedBy: uploaderID,
	}
	if err := s.repo.CreateMaterial(ctx, material); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create material")
	}
	return material, nil
}

// ArchiveMaterial soft-removes a material from the batch listing.
func (s *AcademicsService) ArchiveMaterial(ctx context.Context, id string) error {
	if err := s.repo.ArchiveMaterial(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive material")
	}
	return nil
}
