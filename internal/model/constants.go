package model

// MemberStatus 멤버 상태
type MemberStatus string

const (
	MemberStatusPending MemberStatus = "PENDING"
	MemberStatusActive  MemberStatus = "ACTIVE"
)

// String 메서드
func (s MemberStatus) String() string {
	return string(s)
}

// 요소 생성 기본값
const (
	MinShapeSize       = 50.0
	DefaultNoteWidth   = 240.0
	DefaultNoteHeight  = 160.0
	DefaultNoteContent = "Edit me"
	DefaultNoteColor   = "#fef08a"
	DefaultTextContent = "Text"
	DefaultFontSize    = 16.0
	DefaultStrokeColor = "#1f2937"
	DefaultStrokeWidth = 2.0
	DefaultFillColor   = "transparent"
)
