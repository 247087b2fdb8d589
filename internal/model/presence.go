package model

import "time"

// PresenceRecord (project, member) 단위의 휘발성 접속/커서 상태
type PresenceRecord struct {
	MemberID  string    `json:"memberId"`
	ProjectID string    `json:"projectId"`
	CursorX   *float64  `json:"cursorX,omitempty"`
	CursorY   *float64  `json:"cursorY,omitempty"`
	LastSeen  time.Time `json:"lastSeen"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Fresh reports whether the record was seen within threshold of now.
func (p PresenceRecord) Fresh(now time.Time, threshold time.Duration) bool {
	return now.Sub(p.LastSeen) <= threshold
}

// Cursor 캔버스 좌표계의 커서 위치
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Member 워크스페이스 멤버 (표시용 정보)
type Member struct {
	ID          string  `gorm:"primaryKey;type:varchar(64)" json:"id"`
	WorkspaceID string  `gorm:"type:varchar(64);not null;index" json:"workspaceId"`
	Name        string  `gorm:"type:varchar(100);not null" json:"name"`
	AvatarURL   *string `gorm:"type:text" json:"avatarUrl,omitempty"`
	Status      string  `gorm:"type:varchar(20);default:'ACTIVE'" json:"status"`
}

func (Member) TableName() string {
	return "workspace_members"
}

// MemberDirectory member id -> Member
type MemberDirectory map[string]Member

// NewMemberDirectory indexes members by id.
func NewMemberDirectory(members []Member) MemberDirectory {
	dir := make(MemberDirectory, len(members))
	for _, m := range members {
		dir[m.ID] = m
	}
	return dir
}

// Lookup returns the member and whether it is known.
func (d MemberDirectory) Lookup(id string) (Member, bool) {
	m, ok := d[id]
	return m, ok
}
