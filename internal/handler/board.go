package handler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Blackmamoth/collably-sub000/internal/auth"
	"github.com/Blackmamoth/collably-sub000/internal/backend"
	"github.com/Blackmamoth/collably-sub000/internal/constants"
	"github.com/Blackmamoth/collably-sub000/internal/model"
	"github.com/Blackmamoth/collably-sub000/internal/service"
)

// BoardStore 요소 저장소 (service.BoardService)
type BoardStore interface {
	ListElements(ctx context.Context, projectID string) ([]model.Element, error)
	InsertElement(ctx context.Context, projectID, memberID string, draft backend.ElementDraft) (model.Element, error)
	PatchElement(ctx context.Context, projectID, id string, patch model.ElementPatch) error
	DeleteElement(ctx context.Context, projectID, id string) error
	ToggleVote(ctx context.Context, projectID, id, memberID string) (bool, error)
	AddComment(ctx context.Context, projectID, id, memberID, text string) (model.Comment, error)
	ListComments(ctx context.Context, projectID, id string) ([]model.Comment, error)
}

// MemberLister 워크스페이스 멤버 목록 (service.MemberService)
type MemberLister interface {
	ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]model.Member, error)
}

// PresenceStore 접속 상태 저장소 (presence.Manager)
type PresenceStore interface {
	Upsert(ctx context.Context, projectID, memberID string, cursor *model.Cursor) (model.PresenceRecord, error)
	Remove(ctx context.Context, projectID, memberID string) error
	List(ctx context.Context, projectID string) ([]model.PresenceRecord, error)
}

// SnapshotCache 요소 스냅샷 캐시 (cache.RedisClient)
type SnapshotCache interface {
	GetSnapshot(ctx context.Context, projectID string) ([]model.Element, bool, error)
	SetSnapshot(ctx context.Context, projectID string, elements []model.Element) error
	Invalidate(ctx context.Context, projectID string) error
}

// BoardHandler 보드 REST + WebSocket 핸들러
type BoardHandler struct {
	store    BoardStore
	members  MemberLister
	presence PresenceStore
	cache    SnapshotCache
	hub      *BoardHub
}

// NewBoardHandler BoardHandler 생성. cache 와 bus 는 nil 일 수 있다.
func NewBoardHandler(store BoardStore, members MemberLister, presence PresenceStore, cache SnapshotCache, bus ChangeBus) *BoardHandler {
	h := &BoardHandler{
		store:    store,
		members:  members,
		presence: presence,
		cache:    cache,
	}
	h.hub = NewBoardHub(h, bus)
	return h
}

// Hub 구독 허브
func (h *BoardHandler) Hub() *BoardHub {
	return h.hub
}

type commentRequest struct {
	Content string `json:"content"`
}

type presenceRequest struct {
	Cursor *model.Cursor `json:"cursor"`
}

// =============================================================================
// SnapshotSource
// =============================================================================

// Elements 캐시 우선 요소 스냅샷
func (h *BoardHandler) Elements(ctx context.Context, projectID string) ([]model.Element, error) {
	if h.cache != nil {
		elements, ok, err := h.cache.GetSnapshot(ctx, projectID)
		if err != nil {
			log.Printf("[Board %s] Snapshot cache read failed: %v", projectID, err)
		} else if ok {
			return elements, nil
		}
	}

	elements, err := h.store.ListElements(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if h.cache != nil {
		if err := h.cache.SetSnapshot(ctx, projectID, elements); err != nil {
			log.Printf("[Board %s] Snapshot cache write failed: %v", projectID, err)
		}
	}
	return elements, nil
}

// Presence 프로젝트 presence 목록
func (h *BoardHandler) Presence(ctx context.Context, projectID string) ([]model.PresenceRecord, error) {
	return h.presence.List(ctx, projectID)
}

// elementsChanged 캐시 무효화 후 구독자에게 알림
func (h *BoardHandler) elementsChanged(ctx context.Context, projectID string) {
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, projectID); err != nil {
			log.Printf("[Board %s] Snapshot cache invalidate failed: %v", projectID, err)
		}
	}
	h.hub.Changed(ctx, projectID, TopicElements)
}

// presenceChanged 는 bus 가 없을 때만 로컬 방에 알린다. bus 가 있으면 presence.Manager 가 직접 publish 한다.
func (h *BoardHandler) presenceChanged(projectID string) {
	if h.hub.bus != nil {
		return
	}
	if room, ok := h.hub.Room(projectID); ok {
		room.Notify(TopicPresence)
	}
}

// writeError 서비스 에러를 HTTP 응답으로 변환
func writeError(c *fiber.Ctx, err error, action string) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Reason})
	case errors.Is(err, service.ErrElementNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "element not found"})
	}
	log.Printf("[Board %s] %s failed: %v", c.Params("projectId"), action, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to " + action})
}

// =============================================================================
// REST
// =============================================================================

// GetMe 토큰의 멤버 정보
func (h *BoardHandler) GetMe(c *fiber.Ctx) error {
	claims, err := auth.GetClaimsFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	return c.JSON(fiber.Map{
		"memberId":    claims.MemberID,
		"workspaceId": claims.WorkspaceID,
		"name":        claims.Name,
	})
}

// GetWorkspaceMembers 내 워크스페이스 멤버 목록
func (h *BoardHandler) GetWorkspaceMembers(c *fiber.Ctx) error {
	claims, err := auth.GetClaimsFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	members, err := h.members.ListWorkspaceMembers(c.UserContext(), claims.WorkspaceID)
	if err != nil {
		return writeError(c, err, "list members")
	}
	return c.JSON(members)
}

// GetElements 요소 스냅샷
func (h *BoardHandler) GetElements(c *fiber.Ctx) error {
	elements, err := h.Elements(c.UserContext(), c.Params("projectId"))
	if err != nil {
		return writeError(c, err, "load board")
	}
	if elements == nil {
		elements = []model.Element{}
	}
	return c.JSON(elements)
}

// CreateElement 요소 생성, 201 + 할당된 id
func (h *BoardHandler) CreateElement(c *fiber.Ctx) error {
	var draft backend.ElementDraft
	if err := c.BodyParser(&draft); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	projectID := c.Params("projectId")
	memberID, _ := c.Locals("memberID").(string)
	el, err := h.store.InsertElement(c.UserContext(), projectID, memberID, draft)
	if err != nil {
		return writeError(c, err, "create element")
	}
	h.elementsChanged(c.UserContext(), projectID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": el.ID, "element": el})
}

// PatchElement 부분 업데이트
func (h *BoardHandler) PatchElement(c *fiber.Ctx) error {
	var patch model.ElementPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	projectID := c.Params("projectId")
	if err := h.store.PatchElement(c.UserContext(), projectID, c.Params("id"), patch); err != nil {
		return writeError(c, err, "update element")
	}
	h.elementsChanged(c.UserContext(), projectID)
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteElement 요소 삭제
func (h *BoardHandler) DeleteElement(c *fiber.Ctx) error {
	projectID := c.Params("projectId")
	if err := h.store.DeleteElement(c.UserContext(), projectID, c.Params("id")); err != nil {
		return writeError(c, err, "delete element")
	}
	h.elementsChanged(c.UserContext(), projectID)
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleVote 투표 토글
func (h *BoardHandler) ToggleVote(c *fiber.Ctx) error {
	projectID := c.Params("projectId")
	memberID, _ := c.Locals("memberID").(string)
	voted, err := h.store.ToggleVote(c.UserContext(), projectID, c.Params("id"), memberID)
	if err != nil {
		return writeError(c, err, "toggle vote")
	}
	h.elementsChanged(c.UserContext(), projectID)
	return c.JSON(fiber.Map{"voted": voted})
}

// AddComment 댓글 추가
func (h *BoardHandler) AddComment(c *fiber.Ctx) error {
	var req commentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	projectID := c.Params("projectId")
	memberID, _ := c.Locals("memberID").(string)
	comment, err := h.store.AddComment(c.UserContext(), projectID, c.Params("id"), memberID, req.Content)
	if err != nil {
		return writeError(c, err, "add comment")
	}
	h.elementsChanged(c.UserContext(), projectID)
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetComments 댓글 목록
func (h *BoardHandler) GetComments(c *fiber.Ctx) error {
	comments, err := h.store.ListComments(c.UserContext(), c.Params("projectId"), c.Params("id"))
	if err != nil {
		return writeError(c, err, "list comments")
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	return c.JSON(comments)
}

// GetPresence presence 목록
func (h *BoardHandler) GetPresence(c *fiber.Ctx) error {
	rows, err := h.Presence(c.UserContext(), c.Params("projectId"))
	if err != nil {
		return writeError(c, err, "load presence")
	}
	if rows == nil {
		rows = []model.PresenceRecord{}
	}
	return c.JSON(rows)
}

// PutPresence 접속 상태 upsert (cursor 없으면 heartbeat)
func (h *BoardHandler) PutPresence(c *fiber.Ctx) error {
	var req presenceRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}

	memberID, _ := c.Locals("memberID").(string)
	rec, err := h.presence.Upsert(c.UserContext(), c.Params("projectId"), memberID, req.Cursor)
	if err != nil {
		return writeError(c, err, "update presence")
	}
	h.presenceChanged(c.Params("projectId"))
	return c.JSON(rec)
}

// DeletePresence 보드 이탈
func (h *BoardHandler) DeletePresence(c *fiber.Ctx) error {
	memberID, _ := c.Locals("memberID").(string)
	if err := h.presence.Remove(c.UserContext(), c.Params("projectId"), memberID); err != nil {
		return writeError(c, err, "remove presence")
	}
	h.presenceChanged(c.Params("projectId"))
	return c.SendStatus(fiber.StatusNoContent)
}

// =============================================================================
// WebSocket
// =============================================================================

// StreamElements 요소 스냅샷 구독
func (h *BoardHandler) StreamElements(c *websocket.Conn) {
	h.stream(c, TopicElements)
}

// StreamPresence presence 목록 구독
func (h *BoardHandler) StreamPresence(c *websocket.Conn) {
	h.stream(c, TopicPresence)
}

func (h *BoardHandler) stream(c *websocket.Conn, topic Topic) {
	projectID, ok1 := c.Locals("projectID").(string)
	memberID, ok2 := c.Locals("memberID").(string)
	if !ok1 || !ok2 {
		c.WriteMessage(websocket.TextMessage, errorEvent("invalid session"))
		c.Close()
		return
	}

	sub := &Subscriber{
		ID:       uuid.NewString(),
		MemberID: memberID,
		Topic:    topic,
		Conn:     c,
	}
	room := h.hub.Join(context.Background(), projectID, sub)

	stop := make(chan struct{})
	defer func() {
		close(stop)
		room.RemoveSubscriber(sub.ID)
		c.Close()
	}()

	// keepalive ping
	go func() {
		ticker := time.NewTicker(constants.WSPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := sub.Write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// 클라이언트 → 서버 메시지는 없음; 연결 종료 감지용 읽기 루프
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}
