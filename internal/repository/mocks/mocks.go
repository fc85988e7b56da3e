// internal/repository/mocks/mocks.go
// repositoryパッケージのインターフェースに対する testify/mock のモック実装。
// サービス層の単体テストで使う。
package mocks

import (
	"context"
	"time"

	"go_5_skill_ladder/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

type TrackRepository struct {
	mock.Mock
}

func (m *TrackRepository) FindTrackByID(ctx context.Context, db *gorm.DB, trackID uuid.UUID) (*model.Track, error) {
	args := m.Called(ctx, db, trackID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Track), args.Error(1)
}

func (m *TrackRepository) FindUnitByID(ctx context.Context, db *gorm.DB, unitID uuid.UUID) (*model.Unit, error) {
	args := m.Called(ctx, db, unitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Unit), args.Error(1)
}

func (m *TrackRepository) ListAssessmentUnits(ctx context.Context, db *gorm.DB, trackID uuid.UUID) ([]*model.Unit, error) {
	args := m.Called(ctx, db, trackID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Unit), args.Error(1)
}

type EnrollmentRepository struct {
	mock.Mock
}

func (m *EnrollmentRepository) Create(ctx context.Context, tx *gorm.DB, enrollment *model.Enrollment) error {
	args := m.Called(ctx, tx, enrollment)
	return args.Error(0)
}

func (m *EnrollmentRepository) FindByLearnerAndTrack(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) (*model.Enrollment, error) {
	args := m.Called(ctx, db, learnerID, trackID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Enrollment), args.Error(1)
}

type LadderRepository struct {
	mock.Mock
}

func (m *LadderRepository) Create(ctx context.Context, tx *gorm.DB, state *model.LadderState) error {
	args := m.Called(ctx, tx, state)
	return args.Error(0)
}

func (m *LadderRepository) FindByLearnerAndTrack(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) (*model.LadderState, error) {
	args := m.Called(ctx, db, learnerID, trackID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LadderState), args.Error(1)
}

func (m *LadderRepository) UpdateVersioned(ctx context.Context, tx *gorm.DB, state *model.LadderState) error {
	args := m.Called(ctx, tx, state)
	return args.Error(0)
}

type AssessmentProgressRepository struct {
	mock.Mock
}

func (m *AssessmentProgressRepository) Create(ctx context.Context, tx *gorm.DB, progress *model.AssessmentProgress) error {
	args := m.Called(ctx, tx, progress)
	return args.Error(0)
}

func (m *AssessmentProgressRepository) FindByLearnerAndUnit(ctx context.Context, db *gorm.DB, learnerID, unitID uuid.UUID) (*model.AssessmentProgress, error) {
	args := m.Called(ctx, db, learnerID, unitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AssessmentProgress), args.Error(1)
}

func (m *AssessmentProgressRepository) ListByLearnerAndTrack(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) ([]*model.AssessmentProgress, error) {
	args := m.Called(ctx, db, learnerID, trackID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.AssessmentProgress), args.Error(1)
}

func (m *AssessmentProgressRepository) UpdateGuarded(ctx context.Context, tx *gorm.DB, progress *model.AssessmentProgress, prevAttempts int) error {
	args := m.Called(ctx, tx, progress, prevAttempts)
	return args.Error(0)
}

func (m *AssessmentProgressRepository) MarkInProgress(ctx context.Context, tx *gorm.DB, progressID uuid.UUID) error {
	args := m.Called(ctx, tx, progressID)
	return args.Error(0)
}

func (m *AssessmentProgressRepository) SumEarnedXP(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) (int, error) {
	args := m.Called(ctx, db, learnerID, trackID)
	return args.Int(0), args.Error(1)
}

func (m *AssessmentProgressRepository) CountCompleted(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) (int64, error) {
	args := m.Called(ctx, db, learnerID, trackID)
	return args.Get(0).(int64), args.Error(1)
}

type SubmissionRepository struct {
	mock.Mock
}

func (m *SubmissionRepository) Create(ctx context.Context, tx *gorm.DB, submission *model.Submission) error {
	args := m.Called(ctx, tx, submission)
	return args.Error(0)
}

func (m *SubmissionRepository) FindByID(ctx context.Context, db *gorm.DB, submissionID uuid.UUID) (*model.Submission, error) {
	args := m.Called(ctx, db, submissionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Submission), args.Error(1)
}

func (m *SubmissionRepository) FindOpenByLearnerAndUnit(ctx context.Context, db *gorm.DB, learnerID, unitID uuid.UUID) (*model.Submission, error) {
	args := m.Called(ctx, db, learnerID, unitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Submission), args.Error(1)
}

func (m *SubmissionRepository) ListByLearnerAndTrack(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) ([]*model.Submission, error) {
	args := m.Called(ctx, db, learnerID, trackID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Submission), args.Error(1)
}

func (m *SubmissionRepository) ResolveIfPending(ctx context.Context, tx *gorm.DB, submissionID uuid.UUID, status model.SubmissionStatus, awardedXP int) error {
	args := m.Called(ctx, tx, submissionID, status, awardedXP)
	return args.Error(0)
}

func (m *SubmissionRepository) CreateReview(ctx context.Context, tx *gorm.DB, review *model.Review) error {
	args := m.Called(ctx, tx, review)
	return args.Error(0)
}

func (m *SubmissionRepository) HasApprovedByLearnerAndTrack(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) (bool, error) {
	args := m.Called(ctx, db, learnerID, trackID)
	return args.Bool(0), args.Error(1)
}

func (m *SubmissionRepository) SumAwardedXP(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) (int, error) {
	args := m.Called(ctx, db, learnerID, trackID)
	return args.Int(0), args.Error(1)
}

type OutboxRepository struct {
	mock.Mock
}

func (m *OutboxRepository) Create(ctx context.Context, tx *gorm.DB, event *model.OutboxEvent) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

func (m *OutboxRepository) FindUnpublished(ctx context.Context, db *gorm.DB, limit int) ([]*model.OutboxEvent, error) {
	args := m.Called(ctx, db, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.OutboxEvent), args.Error(1)
}

func (m *OutboxRepository) MarkPublished(ctx context.Context, db *gorm.DB, eventIDs []uuid.UUID, publishedAt time.Time) error {
	args := m.Called(ctx, db, eventIDs, publishedAt)
	return args.Error(0)
}
