// internal/model/error.go
package model

import (
	"errors"
	"fmt"
)

// アプリケーション固有のエラー
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternalServer = errors.New("internal server error")
	ErrForbidden      = errors.New("forbidden")

	// ErrConflict は同一 (learner, track) への同時書き込み競合。
	// 呼び出し側がリトライしてよい唯一のエラー。
	ErrConflict = errors.New("concurrent write conflict")

	// ビジネスルールによる拒否（リトライ不可、入力の修正が必要）
	ErrNotEligible        = errors.New("preconditions for this action are not met")
	ErrAlreadyResolved    = errors.New("unit already resolved")
	ErrAlreadyReviewed    = errors.New("submission already reviewed")
	ErrSubmissionInFlight = errors.New("an open submission already exists")
)

// ErrorDetail はAPIエラーレスポンスに含める詳細情報です
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// APIErrorResponse はAPIエラーレスポンスの構造体
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// AppError はエラーコード・ユーザー向けメッセージ・原因エラーを持つカスタムエラーです。
// HTTPステータスへのマッピングはラップした原因エラー（上記のsentinel）で判定する。
type AppError struct {
	Detail ErrorDetail
	Err    error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Detail.Code, e.Detail.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Detail.Code, e.Detail.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, message, field string, err error) *AppError {
	return &AppError{
		Detail: ErrorDetail{
			Code:    code,
			Message: message,
			Field:   field,
		},
		Err: err,
	}
}
