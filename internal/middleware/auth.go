// internal/middleware/auth.go
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go_5_skill_ladder/internal/config"
	"go_5_skill_ladder/internal/model"
	"go_5_skill_ladder/internal/webutil"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTAuthMiddleware は Authorization ヘッダーの Bearer トークンを検証するミドルウェアです。
// IDの発行と管理は外部のID基盤の責務で、ここでは署名検証とクレーム抽出だけを行う。
// sub クレームを操作主体のID、role クレーム ("learner"/"grader") をロールとして
// model.Actor に詰めてコンテキストへ積む。
func JWTAuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := GetLogger(r.Context())

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("JWT auth failed: Authorization header missing")
				appErr := model.NewAppError("UNAUTHORIZED", "Authorizationヘッダーが必要です。", "", model.ErrForbidden)
				webutil.HandleError(w, logger, appErr)
				return
			}

			// "Bearer {token}" の形式を検証
			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				logger.Warn("JWT auth failed: Invalid Authorization header format")
				appErr := model.NewAppError("UNAUTHORIZED", "Authorizationヘッダーの形式が正しくありません。", "", model.ErrForbidden)
				webutil.HandleError(w, logger, appErr)
				return
			}
			tokenString := headerParts[1]

			// jwt.Parse は署名と有効期限(exp)の両方を検証してくれる
			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(cfg.Auth.JWT.SecretKey), nil
			})
			if err != nil {
				logger.Warn("JWT auth failed: Invalid token", "error", err)
				appErr := model.NewAppError("INVALID_TOKEN", "トークンが無効です。", "", model.ErrForbidden)
				webutil.HandleError(w, logger, appErr)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || !token.Valid {
				logger.Warn("JWT auth failed: Unknown claims type or invalid token")
				appErr := model.NewAppError("INVALID_TOKEN", "トークンが無効です。", "", model.ErrForbidden)
				webutil.HandleError(w, logger, appErr)
				return
			}

			subject, err := claims.GetSubject()
			if err != nil {
				logger.Warn("JWT auth failed: Subject (sub) claim missing", "error", err)
				appErr := model.NewAppError("INVALID_TOKEN", "トークンに操作主体の情報が含まれていません。", "", model.ErrForbidden)
				webutil.HandleError(w, logger, appErr)
				return
			}
			actorID, err := uuid.Parse(subject)
			if err != nil {
				logger.Warn("JWT auth failed: Invalid subject (sub) format", "subject", subject, "error", err)
				appErr := model.NewAppError("INVALID_TOKEN", "トークンの操作主体の情報が不正です。", "", model.ErrForbidden)
				webutil.HandleError(w, logger, appErr)
				return
			}

			role, _ := claims["role"].(string)
			actor := model.Actor{ID: actorID, Role: model.Role(role)}
			if actor.Role != model.RoleLearner && actor.Role != model.RoleGrader {
				logger.Warn("JWT auth failed: Unknown role claim", "role", role)
				appErr := model.NewAppError("INVALID_TOKEN", "トークンのロール情報が不正です。", "", model.ErrForbidden)
				webutil.HandleError(w, logger, appErr)
				return
			}

			ctx := context.WithValue(r.Context(), model.ActorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireGrader は講師ロール以外を拒否するミドルウェアです。
// 認証ミドルウェア (JWTAuthMiddleware / DevActorMiddleware) の後段に置くこと。
func RequireGrader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := GetLogger(r.Context())

		actor, err := GetActorFromContext(r.Context())
		if err != nil {
			webutil.HandleError(w, logger, err)
			return
		}
		if actor.Role != model.RoleGrader {
			logger.Warn("Role check failed: grader required", "actor_id", actor.ID, "role", actor.Role)
			appErr := model.NewAppError("FORBIDDEN", "この操作には講師権限が必要です。", "", model.ErrForbidden)
			webutil.HandleError(w, logger, appErr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetActorFromContext はコンテキストから認証済みの操作主体を取り出します。
func GetActorFromContext(ctx context.Context) (model.Actor, error) {
	actor, ok := ctx.Value(model.ActorKey).(model.Actor)
	if !ok {
		// 認証ミドルウェアが正しく動作していない内部エラー
		return model.Actor{}, model.NewAppError("INTERNAL_SERVER_ERROR", "コンテキストから操作主体を取得できませんでした。", "", model.ErrInternalServer)
	}
	return actor, nil
}
