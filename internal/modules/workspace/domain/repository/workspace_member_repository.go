package repository

import "context"

type WorkspaceMemberRepository interface {
	IsActiveMember(ctx context.Context, workspaceID, userID string) (bool, error)
}
