// internal/service/certificate_service.go
package service

import (
	"context"
	"errors"

	"go_5_skill_ladder/internal/middleware"
	"go_5_skill_ladder/internal/model"
	"go_5_skill_ladder/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CertificateService interface {
	// Eligibility は修了証の発行可否を現在のレコードから再計算して返す
	Eligibility(ctx context.Context, learnerID, trackID uuid.UUID) (*model.CertificateEligibilityResponse, error)
}

type certificateService struct {
	db         *gorm.DB
	trackRepo  repository.TrackRepository
	enrollRepo repository.EnrollmentRepository
	progRepo   repository.AssessmentProgressRepository
	subRepo    repository.SubmissionRepository
}

func NewCertificateService(
	db *gorm.DB,
	trackRepo repository.TrackRepository,
	enrollRepo repository.EnrollmentRepository,
	progRepo repository.AssessmentProgressRepository,
	subRepo repository.SubmissionRepository,
) CertificateService {
	return &certificateService{
		db:         db,
		trackRepo:  trackRepo,
		enrollRepo: enrollRepo,
		progRepo:   progRepo,
		subRepo:    subRepo,
	}
}

// Eligibility はフラグを保存せず毎回導出する。実技の判定や再挑戦で元データが
// 変わっても、保存済みフラグとの食い違いが起きない。
func (s *certificateService) Eligibility(ctx context.Context, learnerID, trackID uuid.UUID) (*model.CertificateEligibilityResponse, error) {
	logger := middleware.GetLogger(ctx).With("learner_id", learnerID, "track_id", trackID)

	if _, err := s.enrollRepo.FindByLearnerAndTrack(ctx, s.db, learnerID, trackID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.NewAppError("NOT_ENROLLED", "このトラックには入会していません。", "track_id", model.ErrNotFound)
		}
		logger.Error("Failed to find enrollment", "error", err)
		return nil, model.ErrInternalServer
	}

	assessmentsDone, err := allAssessmentsCompleted(ctx, s.db, s.trackRepo, s.progRepo, learnerID, trackID)
	if err != nil {
		logger.Error("Failed to check assessment completion", "error", err)
		return nil, model.ErrInternalServer
	}

	hasApproved, err := s.subRepo.HasApprovedByLearnerAndTrack(ctx, s.db, learnerID, trackID)
	if err != nil {
		logger.Error("Failed to check approved submissions", "error", err)
		return nil, model.ErrInternalServer
	}

	return &model.CertificateEligibilityResponse{
		Eligible:                assessmentsDone && hasApproved,
		AllAssessmentsCompleted: assessmentsDone,
		HasApprovedPractical:    hasApproved,
	}, nil
}
