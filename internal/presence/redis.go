package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"

	"github.com/Blackmamoth/collably-sub000/internal/model"
)

// DefaultTTL 마지막 쓰기 이후 프로젝트 presence 해시가 유지되는 시간
const DefaultTTL = 5 * time.Minute

// Manager 프로젝트별 presence 저장소 (Redis hash: field = member id, value = JSON row)
type Manager struct {
	client *redis.Client
	ttl    time.Duration
	clk    clock.Clock
}

// NewManagerWithClient wraps an existing client. A nil clk uses the wall clock.
func NewManagerWithClient(client *redis.Client, ttl time.Duration, clk clock.Clock) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Manager{client: client, ttl: ttl, clk: clk}
}

// Key 생성 유틸
func (m *Manager) projectKey(projectID string) string {
	return fmt.Sprintf("presence:project:%s", projectID)
}

// Channel is the pub/sub channel announcing presence changes for a project.
func Channel(projectID string) string {
	return "presence:" + projectID
}

// Upsert 접속 상태 갱신. cursor 가 nil 이면 기존 좌표를 유지한다 (heartbeat).
func (m *Manager) Upsert(ctx context.Context, projectID, memberID string, cursor *model.Cursor) (model.PresenceRecord, error) {
	key := m.projectKey(projectID)
	now := m.clk.Now().UTC()

	rec := model.PresenceRecord{MemberID: memberID, ProjectID: projectID, CreatedAt: now}
	prev, err := m.get(ctx, key, memberID)
	if err != nil {
		return model.PresenceRecord{}, err
	}
	if prev != nil {
		rec = *prev
	}
	if cursor != nil {
		rec.CursorX = model.Ptr(cursor.X)
		rec.CursorY = model.Ptr(cursor.Y)
	}
	rec.LastSeen = now
	rec.UpdatedAt = now

	data, err := json.Marshal(rec)
	if err != nil {
		return model.PresenceRecord{}, err
	}

	pipe := m.client.TxPipeline()
	pipe.HSet(ctx, key, memberID, data)
	pipe.Expire(ctx, key, m.ttl)
	pipe.Publish(ctx, Channel(projectID), memberID)
	if _, err := pipe.Exec(ctx); err != nil {
		return model.PresenceRecord{}, fmt.Errorf("upsert presence: %w", err)
	}
	return rec, nil
}

func (m *Manager) get(ctx context.Context, key, memberID string) (*model.PresenceRecord, error) {
	val, err := m.client.HGet(ctx, key, memberID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec model.PresenceRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Remove 상태 삭제 (보드 이탈)
func (m *Manager) Remove(ctx context.Context, projectID, memberID string) error {
	pipe := m.client.TxPipeline()
	pipe.HDel(ctx, m.projectKey(projectID), memberID)
	pipe.Publish(ctx, Channel(projectID), memberID)
	_, err := pipe.Exec(ctx)
	return err
}

// List 프로젝트의 모든 presence row (member id 순)
func (m *Manager) List(ctx context.Context, projectID string) ([]model.PresenceRecord, error) {
	vals, err := m.client.HGetAll(ctx, m.projectKey(projectID)).Result()
	if err != nil {
		return nil, err
	}

	rows := make([]model.PresenceRecord, 0, len(vals))
	for _, v := range vals {
		var rec model.PresenceRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			continue
		}
		rows = append(rows, rec)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].MemberID < rows[j].MemberID })
	return rows, nil
}

// Subscribe 상태 변경 이벤트 구독. 메시지 payload 는 변경된 member id.
func (m *Manager) Subscribe(ctx context.Context, projectID string) *redis.PubSub {
	return m.client.Subscribe(ctx, Channel(projectID))
}

func (m *Manager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func (m *Manager) Close() error {
	return m.client.Close()
}
