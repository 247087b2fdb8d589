package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Blackmamoth/collably-sub000/internal/model"
)

var ErrProjectNotFound = errors.New("project not found")

// MemberService 멤버십/권한 관련 비즈니스 로직
type MemberService struct {
	db *gorm.DB
}

// NewMemberService MemberService 생성
func NewMemberService(db *gorm.DB) *MemberService {
	return &MemberService{db: db}
}

// IsProjectMember 프로젝트가 속한 워크스페이스의 활성 멤버인지 확인
func (s *MemberService) IsProjectMember(ctx context.Context, projectID, memberID string) (bool, error) {
	var project model.Project
	err := s.db.WithContext(ctx).Select("id", "workspace_id").Where("id = ?", projectID).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, ErrProjectNotFound
	}
	if err != nil {
		return false, err
	}

	var count int64
	err = s.db.WithContext(ctx).Model(&model.Member{}).
		Where("id = ? AND workspace_id = ? AND status = ?", memberID, project.WorkspaceID, model.MemberStatusActive.String()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListWorkspaceMembers 워크스페이스 멤버 목록 (표시용)
func (s *MemberService) ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]model.Member, error) {
	var members []model.Member
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND status = ?", workspaceID, model.MemberStatusActive.String()).
		Order("name").
		Find(&members).Error
	return members, err
}
