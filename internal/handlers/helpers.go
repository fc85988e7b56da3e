// internal/handlers/helpers.go
package handlers

import (
	"errors"
	"log/slog"

	"go_5_skill_ladder/internal/model"
	"go_5_skill_ladder/internal/webutil"

	"github.com/go-playground/validator/v10"
)

// validateStruct はリクエストDTOをバリデートし、失敗時は最初のエラーを
// 日本語メッセージ付きの AppError にして返します。
func validateStruct(logger *slog.Logger, req interface{}) *model.AppError {
	if err := webutil.Validator.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			logger.Warn("Validation failed", slog.String("errors", validationErrors.Error()))

			firstErr := validationErrors[0]
			translatedMsg := firstErr.Translate(webutil.Trans)
			return model.NewAppError(
				"VALIDATION_ERROR",
				translatedMsg,
				firstErr.Field(),
				model.ErrInvalidInput,
			)
		}
		// バリデーションライブラリ自体のエラーなど、予期せぬエラー
		logger.Error("Unexpected error during validation", slog.Any("error", err))
		return model.NewAppError("INTERNAL_SERVER_ERROR", "リクエストの検証中にエラーが発生しました。", "", model.ErrInternalServer)
	}
	return nil
}
