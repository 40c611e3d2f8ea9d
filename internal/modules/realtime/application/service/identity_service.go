package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	workspaceRepository "LeadPulse/internal/modules/workspace/domain/repository"
	"LeadPulse/pkg/util/myjwt"
	"LeadPulse/pkg/zlog"

	"go.uber.org/zap"
)

var (
	ErrUnauthenticated = errors.New("realtime: unauthenticated")
	ErrForbidden       = errors.New("realtime: not a member of workspace")
)

type Identity struct {
	UserID   string
	Username string
}

// IdentityService 推送通道唯一的鉴权入口：校验会话令牌与 workspace 成员关系
type IdentityService interface {
	Authenticate(ctx context.Context, r *http.Request, workspaceID string) (*Identity, error)
}

type identityServiceImpl struct {
	jwtKey  string
	members workspaceRepository.WorkspaceMemberRepository
}

func NewIdentityService(jwtKey string, members workspaceRepository.WorkspaceMemberRepository) IdentityService {
	return &identityServiceImpl{jwtKey: jwtKey, members: members}
}

func (s *identityServiceImpl) Authenticate(ctx context.Context, r *http.Request, workspaceID string) (*Identity, error) {
	token := myjwt.TokenFromRequest(r)
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := myjwt.ParseTokenWithKey(token, s.jwtKey)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return nil, ErrForbidden
	}
	ok, err := s.members.IsActiveMember(ctx, workspaceID, claims.Uuid)
	if err != nil {
		zlog.Error("check workspace membership failed",
			zap.String("workspace_id", workspaceID),
			zap.String("user_id", claims.Uuid),
			zap.Error(err))
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return &Identity{UserID: claims.Uuid, Username: claims.Username}, nil
}
