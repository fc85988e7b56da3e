// internal/model/identity.go
package model

import "github.com/google/uuid"

// Role は外部のID基盤が発行するJWTで主張されるロールです。
// このエンジンは主張されたロールをそのまま信頼する（検証はID基盤の責務）。
type Role string

const (
	RoleLearner Role = "learner"
	RoleGrader  Role = "grader"
)

// Actor は認証済みの操作主体（学習者または講師）です
type Actor struct {
	ID   uuid.UUID
	Role Role
}

type ContextKey string

const (
	ActorKey ContextKey = "actor"
)
