package handler

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/Blackmamoth/collably-sub000/internal/backend"
	"github.com/Blackmamoth/collably-sub000/internal/model"
	"github.com/Blackmamoth/collably-sub000/internal/presence"
)

// =============================================================================
// Board Hub - 프로젝트 단위 WebSocket 구독 관리
// =============================================================================

// Topic 구독 대상 (요소 스냅샷 / presence 목록)
type Topic string

const (
	TopicElements Topic = backend.EventElements
	TopicPresence Topic = backend.EventPresence
)

// SnapshotSource 브로드캐스트할 전체 스냅샷 로더
type SnapshotSource interface {
	Elements(ctx context.Context, projectID string) ([]model.Element, error)
	Presence(ctx context.Context, projectID string) ([]model.PresenceRecord, error)
}

// ChangeBus 인스턴스 간 변경 알림 (*redis.Client)
type ChangeBus interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// MessageWriter 는 websocket 연결의 쓰기 측
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// BoardHub manages all board rooms and their subscribers
type BoardHub struct {
	rooms  map[string]*BoardRoom
	mu     sync.RWMutex
	source SnapshotSource
	bus    ChangeBus
}

// BoardRoom 하나의 프로젝트를 보고 있는 구독자 집합
type BoardRoom struct {
	ID          string
	Subscribers map[string]*Subscriber
	dirty       map[Topic]chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	mu          sync.RWMutex
	hub         *BoardHub
	isRunning   bool
}

// Subscriber 한 topic 을 구독하는 websocket 연결
type Subscriber struct {
	ID       string
	MemberID string
	Topic    Topic
	Conn     MessageWriter
	writeMu  sync.Mutex
}

// NewBoardHub creates a hub. bus may be nil (single instance, no presence fan-out).
func NewBoardHub(source SnapshotSource, bus ChangeBus) *BoardHub {
	return &BoardHub{
		rooms:  make(map[string]*BoardRoom),
		source: source,
		bus:    bus,
	}
}

// elementsChannel 요소 변경 알림 채널
func elementsChannel(projectID string) string {
	return "board:" + projectID + ":elements"
}

// GetOrCreateRoom gets an existing room or creates a new one
func (h *BoardHub) GetOrCreateRoom(projectID string) *BoardRoom {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.roomLocked(projectID)
}

func (h *BoardHub) roomLocked(projectID string) *BoardRoom {
	if room, exists := h.rooms[projectID]; exists {
		return room
	}

	ctx, cancel := context.WithCancel(context.Background())
	room := &BoardRoom{
		ID:          projectID,
		Subscribers: make(map[string]*Subscriber),
		dirty: map[Topic]chan struct{}{
			TopicElements: make(chan struct{}, 1),
			TopicPresence: make(chan struct{}, 1),
		},
		ctx:    ctx,
		cancel: cancel,
		hub:    h,
	}
	h.rooms[projectID] = room
	log.Printf("[BoardHub] Created room: %s", projectID)
	return room
}

// RemoveRoom removes a room if it is still empty
func (h *BoardHub) RemoveRoom(projectID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, exists := h.rooms[projectID]
	if !exists {
		return
	}
	room.mu.RLock()
	empty := len(room.Subscribers) == 0
	room.mu.RUnlock()
	if !empty {
		return
	}

	room.Shutdown()
	delete(h.rooms, projectID)
	log.Printf("[BoardHub] Removed room: %s", projectID)
}

// Room returns the room for projectID, if any
func (h *BoardHub) Room(projectID string) (*BoardRoom, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[projectID]
	return room, ok
}

// Join 구독자 등록 후 현재 스냅샷을 바로 전송
func (h *BoardHub) Join(ctx context.Context, projectID string, sub *Subscriber) *BoardRoom {
	// 빈 방 정리(RemoveRoom)와 경쟁하지 않도록 hub 락 안에서 등록
	h.mu.Lock()
	room := h.roomLocked(projectID)
	room.AddSubscriber(sub)
	h.mu.Unlock()

	if payload, err := room.load(ctx, sub.Topic); err != nil {
		log.Printf("[Room %s] Initial %s snapshot failed: %v", projectID, sub.Topic, err)
		room.send(sub, errorEvent("failed to load board"))
	} else {
		room.send(sub, payload)
	}
	return room
}

// Changed 프로젝트의 topic 이 바뀌었음을 알림. bus 가 있으면 모든 인스턴스로 전파한다.
func (h *BoardHub) Changed(ctx context.Context, projectID string, topic Topic) {
	if h.bus != nil {
		channel := elementsChannel(projectID)
		if topic == TopicPresence {
			channel = presence.Channel(projectID)
		}
		err := h.bus.Publish(ctx, channel, string(topic)).Err()
		if err == nil {
			return
		}
		log.Printf("[BoardHub] Publish %s failed, notifying locally: %v", channel, err)
	}
	if room, ok := h.Room(projectID); ok {
		room.Notify(topic)
	}
}

// Shutdown closes every room
func (h *BoardHub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, room := range h.rooms {
		room.Shutdown()
		delete(h.rooms, id)
	}
}

// =============================================================================
// Room Methods
// =============================================================================

// AddSubscriber adds a subscriber to the room
func (r *BoardRoom) AddSubscriber(sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Subscribers[sub.ID] = sub
	log.Printf("[Room %s] Added %s subscriber: %s (member %s), total: %d",
		r.ID, sub.Topic, sub.ID, sub.MemberID, len(r.Subscribers))

	if !r.isRunning {
		r.isRunning = true
		go r.runBroadcaster()
		if r.hub.bus != nil {
			go r.runChangeListener()
		}
	}
}

// RemoveSubscriber removes a subscriber from the room
func (r *BoardRoom) RemoveSubscriber(id string) {
	r.mu.Lock()
	delete(r.Subscribers, id)
	remaining := len(r.Subscribers)
	r.mu.Unlock()

	log.Printf("[Room %s] Removed subscriber: %s, remaining: %d", r.ID, id, remaining)

	if remaining == 0 {
		go r.hub.RemoveRoom(r.ID)
	}
}

// Notify marks topic dirty. Pending notifications coalesce.
func (r *BoardRoom) Notify(topic Topic) {
	ch, ok := r.dirty[topic]
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Shutdown stops the room goroutines
func (r *BoardRoom) Shutdown() {
	r.cancel()
	r.mu.Lock()
	r.isRunning = false
	r.mu.Unlock()
	log.Printf("[Room %s] Shutdown complete", r.ID)
}

// =============================================================================
// Room Goroutines
// =============================================================================

// runBroadcaster reloads and fans out a topic each time it is marked dirty
func (r *BoardRoom) runBroadcaster() {
	log.Printf("[Room %s] Broadcaster started", r.ID)
	defer log.Printf("[Room %s] Broadcaster stopped", r.ID)

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.dirty[TopicElements]:
			r.broadcast(TopicElements)
		case <-r.dirty[TopicPresence]:
			r.broadcast(TopicPresence)
		}
	}
}

// runChangeListener turns bus messages into local notifications
func (r *BoardRoom) runChangeListener() {
	ps := r.hub.bus.Subscribe(r.ctx, elementsChannel(r.ID), presence.Channel(r.ID))
	defer ps.Close()

	log.Printf("[Room %s] Change listener started", r.ID)
	defer log.Printf("[Room %s] Change listener stopped", r.ID)

	ch := ps.Channel()
	for {
		select {
		case <-r.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Channel == presence.Channel(r.ID) {
				r.Notify(TopicPresence)
			} else {
				r.Notify(TopicElements)
			}
		}
	}
}

func (r *BoardRoom) broadcast(topic Topic) {
	ctx, cancel := context.WithTimeout(r.ctx, 5*time.Second)
	defer cancel()

	payload, err := r.load(ctx, topic)
	if err != nil {
		log.Printf("[Room %s] Failed to load %s snapshot: %v", r.ID, topic, err)
		return
	}

	r.mu.RLock()
	subs := make([]*Subscriber, 0, len(r.Subscribers))
	for _, s := range r.Subscribers {
		if s.Topic == topic {
			subs = append(subs, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range subs {
		r.send(s, payload)
	}
}

// load 스냅샷을 읽어 전송용 JSON 으로 직렬화
func (r *BoardRoom) load(ctx context.Context, topic Topic) ([]byte, error) {
	var (
		data any
		err  error
	)
	switch topic {
	case TopicPresence:
		var rows []model.PresenceRecord
		rows, err = r.hub.source.Presence(ctx, r.ID)
		if rows == nil {
			rows = []model.PresenceRecord{}
		}
		data = rows
	default:
		var elements []model.Element
		elements, err = r.hub.source.Elements(ctx, r.ID)
		if elements == nil {
			elements = []model.Element{}
		}
		data = elements
	}
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(backend.Event{Type: string(topic), Payload: payload})
}

// Write serializes writes to the connection
func (s *Subscriber) Write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.Conn.WriteMessage(messageType, data)
}

func (r *BoardRoom) send(s *Subscriber, data []byte) {
	if err := s.Write(websocket.TextMessage, data); err != nil {
		log.Printf("[Room %s] Failed to send to subscriber %s: %v", r.ID, s.ID, err)
	}
}

func errorEvent(message string) []byte {
	payload, _ := json.Marshal(message)
	data, _ := json.Marshal(backend.Event{Type: backend.EventError, Payload: payload})
	return data
}
