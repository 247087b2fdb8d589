package model

import (
	"strings"
	"time"
)

// ElementType 보드 요소 종류
type ElementType string

const (
	ElementSticky    ElementType = "sticky"
	ElementNote      ElementType = "note"
	ElementText      ElementType = "text"
	ElementRectangle ElementType = "rectangle"
	ElementCircle    ElementType = "circle"
	ElementArrow     ElementType = "arrow"
	ElementLine      ElementType = "line"
)

func (t ElementType) String() string {
	return string(t)
}

// Valid reports whether t is one of the known element types.
func (t ElementType) Valid() bool {
	switch t {
	case ElementSticky, ElementNote, ElementText, ElementRectangle, ElementCircle, ElementArrow, ElementLine:
		return true
	}
	return false
}

// TextBearing note/sticky/text 는 content 를 가진다
func (t ElementType) TextBearing() bool {
	return t == ElementSticky || t == ElementNote || t == ElementText
}

// Connector arrow/line 은 endX/endY 를 가진다
func (t ElementType) Connector() bool {
	return t == ElementArrow || t == ElementLine
}

// Resizable note/rectangle/circle 만 리사이즈 핸들을 가진다
func (t ElementType) Resizable() bool {
	return t == ElementNote || t == ElementRectangle || t == ElementCircle
}

// Commentable 댓글/투표 대상 (note, sticky)
func (t ElementType) Commentable() bool {
	return t == ElementNote || t == ElementSticky
}

// TempIDPrefix marks ids assigned locally before the backend confirms a create.
const TempIDPrefix = "tmp_"

// IsTempID reports whether id is a locally generated placeholder.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Project 보드 (요소 컬렉션의 소유자)
type Project struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	WorkspaceID string    `gorm:"type:varchar(64);not null;index" json:"workspaceId"`
	Name        string    `gorm:"type:varchar(200);not null" json:"name"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Project) TableName() string {
	return "board_projects"
}

// Element 보드 위의 단일 시각 요소
type Element struct {
	ID          string      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID   string      `gorm:"type:varchar(64);not null;index" json:"projectId"`
	ElementType ElementType `gorm:"type:varchar(20);not null" json:"elementType"`

	X      float64  `gorm:"not null" json:"x"`
	Y      float64  `gorm:"not null" json:"y"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
	EndX   *float64 `json:"endX,omitempty"`
	EndY   *float64 `json:"endY,omitempty"`

	Content     *string  `gorm:"type:text" json:"content,omitempty"`
	Color       *string  `gorm:"type:varchar(32)" json:"color,omitempty"`
	StrokeColor *string  `gorm:"type:varchar(32)" json:"strokeColor,omitempty"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
	FillColor   *string  `gorm:"type:varchar(32)" json:"fillColor,omitempty"`
	FontSize    *float64 `json:"fontSize,omitempty"`
	FontWeight  *string  `gorm:"type:varchar(16)" json:"fontWeight,omitempty"`

	Votes        int      `gorm:"not null;default:0" json:"votes"`
	CommentCount int      `gorm:"not null;default:0" json:"commentCount"`
	GroupID      *string  `gorm:"type:varchar(64);index" json:"groupId,omitempty"`
	CreatedBy    string   `gorm:"type:varchar(64)" json:"createdBy"`
	Voters       []string `gorm:"-" json:"voters,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Element) TableName() string {
	return "board_elements"
}

// Clone returns a deep copy so callers can mutate it without aliasing the
// original's pointer fields.
func (e Element) Clone() Element {
	c := e
	c.Width = clonePtr(e.Width)
	c.Height = clonePtr(e.Height)
	c.EndX = clonePtr(e.EndX)
	c.EndY = clonePtr(e.EndY)
	c.Content = clonePtr(e.Content)
	c.Color = clonePtr(e.Color)
	c.StrokeColor = clonePtr(e.StrokeColor)
	c.StrokeWidth = clonePtr(e.StrokeWidth)
	c.FillColor = clonePtr(e.FillColor)
	c.FontSize = clonePtr(e.FontSize)
	c.FontWeight = clonePtr(e.FontWeight)
	c.GroupID = clonePtr(e.GroupID)
	if e.Voters != nil {
		c.Voters = append([]string(nil), e.Voters...)
	}
	return c
}

// ContentText content 의 값 (없으면 빈 문자열)
func (e Element) ContentText() string {
	if e.Content == nil {
		return ""
	}
	return *e.Content
}

// Size width/height (없으면 0)
func (e Element) Size() (float64, float64) {
	var w, h float64
	if e.Width != nil {
		w = *e.Width
	}
	if e.Height != nil {
		h = *e.Height
	}
	return w, h
}

// HasVoter reports whether memberID appears in the server-side voter list.
func (e Element) HasVoter(memberID string) bool {
	for _, v := range e.Voters {
		if v == memberID {
			return true
		}
	}
	return false
}

// Vote 멤버별 투표 기록 (토글 멱등성 보장용)
type Vote struct {
	ElementID string    `gorm:"primaryKey;type:varchar(64)" json:"elementId"`
	MemberID  string    `gorm:"primaryKey;type:varchar(64)" json:"memberId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Vote) TableName() string {
	return "element_votes"
}

// Comment note/sticky 요소에 달린 댓글
type Comment struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ElementID string    `gorm:"type:varchar(64);not null;index" json:"elementId"`
	Author    string    `gorm:"type:varchar(64);not null" json:"author"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Timestamp time.Time `gorm:"autoCreateTime" json:"timestamp"`
}

func (Comment) TableName() string {
	return "element_comments"
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr is a small helper for building optional fields.
func Ptr[T any](v T) *T {
	return &v
}
