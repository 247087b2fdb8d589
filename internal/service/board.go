package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Blackmamoth/collably-sub000/internal/backend"
	"github.com/Blackmamoth/collably-sub000/internal/constants"
	"github.com/Blackmamoth/collably-sub000/internal/model"
)

var ErrElementNotFound = errors.New("element not found")

// ValidationError 사용자에게 보여줄 수 있는 입력 검증 실패
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func checkContent(content *string) error {
	if content != nil && utf8.RuneCountInString(*content) > constants.MaxContentLength {
		return invalid("content is longer than %d characters", constants.MaxContentLength)
	}
	return nil
}

// BoardService 보드 요소 저장소 (gorm / PostgreSQL)
type BoardService struct {
	db *gorm.DB
}

// NewBoardService BoardService 생성
func NewBoardService(db *gorm.DB) *BoardService {
	return &BoardService{db: db}
}

// ListElements 프로젝트의 모든 요소 (생성 순) + 투표자 목록
func (s *BoardService) ListElements(ctx context.Context, projectID string) ([]model.Element, error) {
	var elements []model.Element
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at, id").
		Find(&elements).Error; err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return elements, nil
	}

	ids := make([]string, len(elements))
	for i, e := range elements {
		ids[i] = e.ID
	}
	var votes []model.Vote
	if err := s.db.WithContext(ctx).Where("element_id IN ?", ids).Order("created_at").Find(&votes).Error; err != nil {
		return nil, err
	}
	voters := make(map[string][]string)
	for _, v := range votes {
		voters[v.ElementID] = append(voters[v.ElementID], v.MemberID)
	}
	for i := range elements {
		elements[i].Voters = voters[elements[i].ID]
	}
	return elements, nil
}

// InsertElement 새 요소 저장, 백엔드 id 할당
func (s *BoardService) InsertElement(ctx context.Context, projectID, memberID string, draft backend.ElementDraft) (model.Element, error) {
	if !draft.ElementType.Valid() {
		return model.Element{}, invalid("unknown element type %q", draft.ElementType)
	}
	if draft.ElementType.Connector() && (draft.Fields.EndX == nil || draft.Fields.EndY == nil) {
		return model.Element{}, invalid("%s needs an end point", draft.ElementType)
	}
	if err := checkContent(draft.Fields.Content); err != nil {
		return model.Element{}, err
	}

	el := draft.Element(uuid.NewString(), projectID, memberID)
	if err := s.db.WithContext(ctx).Create(&el).Error; err != nil {
		return model.Element{}, err
	}
	return el, nil
}

// PatchElement 부분 필드 업데이트
func (s *BoardService) PatchElement(ctx context.Context, projectID, id string, patch model.ElementPatch) error {
	if patch.Empty() {
		return invalid("nothing to update")
	}
	if err := checkContent(patch.Content); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&model.Element{}).
		Where("id = ? AND project_id = ?", id, projectID).
		Updates(patch.Updates())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrElementNotFound
	}
	return nil
}

// DeleteElement 요소와 투표/댓글 삭제
func (s *BoardService) DeleteElement(ctx context.Context, projectID, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND project_id = ?", id, projectID).Delete(&model.Element{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrElementNotFound
		}
		if err := tx.Where("element_id = ?", id).Delete(&model.Vote{}).Error; err != nil {
			return err
		}
		return tx.Where("element_id = ?", id).Delete(&model.Comment{}).Error
	})
}

// lockElement 트랜잭션 안에서 요소 행 잠금
func lockElement(tx *gorm.DB, projectID, id string) (model.Element, error) {
	var el model.Element
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND project_id = ?", id, projectID).
		First(&el).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return el, ErrElementNotFound
	}
	return el, err
}

// ToggleVote 멤버별 투표 토글; 투표 후 상태(voted)를 반환
func (s *BoardService) ToggleVote(ctx context.Context, projectID, id, memberID string) (bool, error) {
	voted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		el, err := lockElement(tx, projectID, id)
		if err != nil {
			return err
		}
		if !el.ElementType.Commentable() {
			return invalid("only notes can be voted on")
		}

		res := tx.Where("element_id = ? AND member_id = ?", id, memberID).Delete(&model.Vote{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return tx.Model(&model.Element{}).Where("id = ?", id).
				Update("votes", gorm.Expr("GREATEST(votes - 1, 0)")).Error
		}

		if err := tx.Create(&model.Vote{ElementID: id, MemberID: memberID}).Error; err != nil {
			return err
		}
		voted = true
		return tx.Model(&model.Element{}).Where("id = ?", id).
			Update("votes", gorm.Expr("votes + 1")).Error
	})
	return voted, err
}

// AddComment 댓글 추가 + comment_count 증가
func (s *BoardService) AddComment(ctx context.Context, projectID, id, memberID, text string) (model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Comment{}, invalid("comment is empty")
	}
	if utf8.RuneCountInString(text) > constants.MaxCommentLength {
		return model.Comment{}, invalid("comment is longer than %d characters", constants.MaxCommentLength)
	}

	comment := model.Comment{ID: uuid.NewString(), ElementID: id, Author: memberID, Content: text}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		el, err := lockElement(tx, projectID, id)
		if err != nil {
			return err
		}
		if !el.ElementType.Commentable() {
			return invalid("only notes can be commented on")
		}
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&model.Element{}).Where("id = ?", id).
			Update("comment_count", gorm.Expr("comment_count + 1")).Error
	})
	return comment, err
}

// ListComments 요소의 댓글 (오래된 순)
func (s *BoardService) ListComments(ctx context.Context, projectID, id string) ([]model.Comment, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Element{}).
		Where("id = ? AND project_id = ?", id, projectID).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrElementNotFound
	}

	var comments []model.Comment
	err := s.db.WithContext(ctx).Where("element_id = ?", id).Order("timestamp, id").Find(&comments).Error
	return comments, err
}
