// internal/middleware/dev_auth.go
package middleware

import (
	"context"
	"net/http"

	"go_5_skill_ladder/internal/model"
	"go_5_skill_ladder/internal/webutil"

	"github.com/google/uuid"
)

// DevActorMiddleware は開発時用ミドルウェアです。
// X-Actor-ID / X-Actor-Role ヘッダーから操作主体を組み立ててコンテキストに設定します。
// 署名検証は行わない。本番では必ず JWTAuthMiddleware を使うこと。
func DevActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := GetLogger(r.Context())

		actorIDStr := r.Header.Get("X-Actor-ID")
		if actorIDStr == "" {
			logger.Warn("Dev auth failed: X-Actor-ID header missing")
			appErr := model.NewAppError("UNAUTHORIZED", "X-Actor-IDヘッダーが必要です。", "", model.ErrForbidden)
			webutil.HandleError(w, logger, appErr)
			return
		}
		actorID, err := uuid.Parse(actorIDStr)
		if err != nil {
			logger.Warn("Dev auth failed: Invalid X-Actor-ID format", "value", actorIDStr)
			appErr := model.NewAppError("UNAUTHORIZED", "X-Actor-IDの形式が正しくありません。", "", model.ErrForbidden)
			webutil.HandleError(w, logger, appErr)
			return
		}

		// ロールは省略時 learner 扱い
		role := model.Role(r.Header.Get("X-Actor-Role"))
		if role == "" {
			role = model.RoleLearner
		}
		if role != model.RoleLearner && role != model.RoleGrader {
			logger.Warn("Dev auth failed: Unknown X-Actor-Role", "value", role)
			appErr := model.NewAppError("UNAUTHORIZED", "X-Actor-Roleの値が正しくありません。", "", model.ErrForbidden)
			webutil.HandleError(w, logger, appErr)
			return
		}

		ctx := context.WithValue(r.Context(), model.ActorKey, model.Actor{ID: actorID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
