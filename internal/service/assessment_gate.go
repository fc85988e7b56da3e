// internal/service/assessment_gate.go
// 知識チェックの順次解放ロジック。enroll と answer の両方から
// 同一トランザクション内で呼ばれる。
package service

import (
	"context"
	"errors"

	"go_5_skill_ladder/internal/model"
	"go_5_skill_ladder/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// startNextIfEligible は「順序が最小で、それより前がすべて完了している未着手ユニット」を
// InProgress に遷移させ、そのユニットIDを返します。対象が無ければ nil を返す（no-op）。
// units は OrderNo 昇順であること。
func startNextIfEligible(
	ctx context.Context,
	tx *gorm.DB,
	progRepo repository.AssessmentProgressRepository,
	learnerID, trackID uuid.UUID,
	units []*model.Unit,
) (*uuid.UUID, error) {
	for _, unit := range units {
		progress, err := progRepo.FindByLearnerAndUnit(ctx, tx, learnerID, unit.UnitID)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return nil, err
		}

		if progress != nil {
			switch progress.Status {
			case model.AssessmentCompleted:
				// 前提を満たしたので次のユニットへ
				continue
			case model.AssessmentInProgress:
				// すでに進行中のユニットがある。二重に開かない。
				return nil, nil
			case model.AssessmentNotStarted:
				if err := progRepo.MarkInProgress(ctx, tx, progress.ProgressID); err != nil {
					return nil, err
				}
				unitID := unit.UnitID
				return &unitID, nil
			}
		}

		// レコードはユニットが到達可能になった時点で遅延作成する
		newProgress := &model.AssessmentProgress{
			ProgressID: uuid.New(),
			LearnerID:  learnerID,
			UnitID:     unit.UnitID,
			TrackID:    trackID,
			Status:     model.AssessmentInProgress,
		}
		if err := progRepo.Create(ctx, tx, newProgress); err != nil {
			return nil, err
		}
		unitID := unit.UnitID
		return &unitID, nil
	}

	// すべて完了済み（または開くべきユニットが無い）
	return nil, nil
}

// allAssessmentsCompleted は導出述語。保存フラグは持たない。
func allAssessmentsCompleted(
	ctx context.Context,
	db *gorm.DB,
	trackRepo repository.TrackRepository,
	progRepo repository.AssessmentProgressRepository,
	learnerID, trackID uuid.UUID,
) (bool, error) {
	units, err := trackRepo.ListAssessmentUnits(ctx, db, trackID)
	if err != nil {
		return false, err
	}
	completed, err := progRepo.CountCompleted(ctx, db, learnerID, trackID)
	if err != nil {
		return false, err
	}
	return completed == int64(len(units)), nil
}
