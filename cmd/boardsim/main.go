package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Blackmamoth/collably-sub000/internal/canvas"
	"github.com/Blackmamoth/collably-sub000/internal/client"
	"github.com/Blackmamoth/collably-sub000/internal/config"
	"github.com/Blackmamoth/collably-sub000/internal/livepresence"
	"github.com/Blackmamoth/collably-sub000/internal/model"
	"github.com/Blackmamoth/collably-sub000/internal/reconcile"
)

// boardsim 은 보드를 열어 노트를 하나 만들고 무작위 드래그를 반복하는 헤드리스 클라이언트
func main() {
	cfg := config.LoadClient()
	if cfg.Client.Token == "" || cfg.Client.ProjectID == "" {
		log.Fatal("❌ BOARD_TOKEN and BOARD_PROJECT_ID are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cli, err := client.New(cfg.Client.ServerURL, cfg.Client.Token, nil)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	me, err := cli.Me(ctx)
	if err != nil {
		log.Fatalf("❌ Failed to resolve identity: %v", err)
	}
	members, err := cli.GetWorkspaceMembers(ctx)
	if err != nil {
		log.Fatalf("❌ Failed to load workspace members: %v", err)
	}
	log.Printf("✅ Signed in as %s (%s), %d workspace members", me.Name, me.MemberID, len(members))

	engine := reconcile.New(reconcile.Options{
		ProjectID: cfg.Client.ProjectID,
		MemberID:  me.MemberID,
		Store:     cli,
		Notifier:  reconcile.LogNotifier{},
		PatchWait: cfg.Board.PatchDebounce,
	})
	tracker := livepresence.New(livepresence.Options{
		ProjectID:  cfg.Client.ProjectID,
		MemberID:   me.MemberID,
		Store:      cli,
		Members:    members,
		Heartbeat:  cfg.Board.Heartbeat,
		CursorWait: cfg.Board.CursorDebounce,
		StaleAfter: cfg.Board.StaleAfter,
	})
	ctrl := canvas.New(canvas.Options{Board: engine, Cursor: tracker, Context: ctx})

	loaded := make(chan struct{})
	var once sync.Once
	engine.OnChange(func() { once.Do(func() { close(loaded) }) })

	wg := new(sync.WaitGroup)
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
			errs <- fmt.Errorf("board: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := tracker.Run(ctx); err != nil && ctx.Err() == nil {
			errs <- fmt.Errorf("presence: %w", err)
		}
	}()

	select {
	case <-loaded:
		log.Printf("📦 Board loaded: %d elements", len(engine.Elements()))
	case err := <-errs:
		log.Fatalf("❌ Failed to open board: %v", err)
	case <-time.After(10 * time.Second):
		log.Fatal("❌ Timed out waiting for the board snapshot")
	}

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)

	sim := &simulator{engine: engine, ctrl: ctrl, tracker: tracker, name: me.Name}
	done := make(chan struct{})
	go func() {
		defer close(done)
		sim.run(ctx, cfg.Client.Moves)
	}()

	select {
	case sig := <-exit:
		log.Printf("🛑 Signal caught: %v", sig)
	case err := <-errs:
		log.Printf("❌ %v", err)
	case <-done:
		log.Println("✅ Script finished")
	}

	cancel()
	engine.Close()
	wg.Wait()
}

type simulator struct {
	engine  *reconcile.Engine
	ctrl    *canvas.Controller
	tracker *livepresence.Tracker
	name    string
}

func (s *simulator) run(ctx context.Context, moves int) {
	s.placeNote(ctx)

	for i := 0; i < moves; i++ {
		t := time.NewTimer(time.Second + time.Duration(rand.Intn(2000))*time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		s.dragRandom()
		log.Printf("🖱️ move %d/%d: %d elements, %d members online", i+1, moves, len(s.engine.Elements()), len(s.tracker.ActiveMembers()))
	}
}

// placeNote 노트 도구로 클릭해 노트를 만들고 내용을 입력
func (s *simulator) placeNote(ctx context.Context) {
	s.engine.SetTool(reconcile.ToolNote)
	at := canvas.Point{X: 100 + rand.Float64()*600, Y: 100 + rand.Float64()*400}
	s.ctrl.PointerDown(canvas.PointerEvent{Screen: at})
	s.ctrl.PointerUp(canvas.PointerEvent{Screen: at})

	// 생성은 비동기; 편집 세션이 열릴 때까지 대기
	deadline := time.Now().Add(5 * time.Second)
	for s.engine.Editing() == "" && time.Now().Before(deadline) && ctx.Err() == nil {
		time.Sleep(20 * time.Millisecond)
	}
	if s.engine.Editing() == "" {
		log.Println("⚠️ Note was not created, continuing with drags only")
		return
	}
	s.engine.EditInput("Hello from " + s.name)
	s.ctrl.Blur()
}

// dragRandom 무작위 요소를 몇 단계에 걸쳐 끌어 옮긴다
func (s *simulator) dragRandom() {
	elements := s.engine.Elements()
	if len(elements) == 0 {
		return
	}
	el := elements[rand.Intn(len(elements))]
	if model.IsTempID(el.ID) {
		return
	}

	vp := s.ctrl.Viewport()
	from := vp.ToScreen(canvas.Point{X: el.X + 5, Y: el.Y + 5})
	step := canvas.Point{X: float64(rand.Intn(41) - 20), Y: float64(rand.Intn(41) - 20)}

	s.ctrl.PointerDown(canvas.PointerEvent{Screen: from, Target: el.ID})
	at := from
	for i := 0; i < 5; i++ {
		at = at.Add(step)
		s.ctrl.PointerMove(canvas.PointerEvent{Screen: at})
		time.Sleep(30 * time.Millisecond)
	}
	s.ctrl.PointerUp(canvas.PointerEvent{Screen: at})
}
