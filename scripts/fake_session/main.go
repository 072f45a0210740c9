package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/queuesync/internal/proto"
)

// server is a stand-in session server for local runs: one shared queue,
// edited from stdin and broadcast to every connected client.
type server struct {
	mu     sync.Mutex
	queue  []proto.Entry
	nextID int64
	conns  map[*websocket.Conn]struct{}
}

func main() {
	addr := flag.String("addr", ":8000", "HTTP listen address")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &server{conns: make(map[*websocket.Conn]struct{})}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/", s.handleStream)
	mux.HandleFunc("/api/session/", s.handleQueue)

	httpServer := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()
	go s.commandLoop(ctx)

	log.Printf("fake session server on %s", *addr)
	fmt.Println("Commands: add <title>, vote <id> <total>, remove <id>, join <name>, pause, play, drop")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("listen: %v", err)
	}
}

func (s *server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/queue") {
		http.NotFound(w, r)
		return
	}
	s.mu.Lock()
	body := map[string]any{"queue": append([]proto.Entry{}, s.queue...)}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func (s *server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("accept: %v", err)
		return
	}
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	log.Printf("client connected to %s", r.URL.Path)

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	for {
		var msg struct {
			Type    string            `json:"type"`
			Payload proto.VotePayload `json:"payload"`
		}
		if err := wsjson.Read(r.Context(), conn, &msg); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				log.Printf("read error: %v", err)
			}
			return
		}
		log.Printf("client sent %s", msg.Type)
		if msg.Type == proto.OutboundTypeVote {
			delta := 1
			if msg.Payload.Vote == "down" {
				delta = -1
			}
			s.adjustVotes(r.Context(), msg.Payload.QueueItemID, delta)
		}
	}
}

func (s *server) adjustVotes(ctx context.Context, id int64, delta int) {
	s.mu.Lock()
	total, ok := 0, false
	for i := range s.queue {
		if s.queue[i].ID == id {
			s.queue[i].Votes += delta
			total, ok = s.queue[i].Votes, true
		}
	}
	s.mu.Unlock()
	if ok {
		s.broadcast(ctx, map[string]any{"type": proto.TypeVoteUpdated, "queue_item_id": id, "new_votes": total})
	}
}

func (s *server) commandLoop(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if err := s.run(ctx, fields[0], fields[1:]); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func (s *server) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "add":
		s.mu.Lock()
		s.nextID++
		e := proto.Entry{ID: s.nextID, Title: strings.Join(args, " "), AddedBy: "console"}
		s.queue = append(s.queue, e)
		s.mu.Unlock()
		s.broadcast(ctx, map[string]any{"type": proto.TypeQueueUpdated, "queue_item": e})
		s.broadcast(ctx, map[string]any{"type": proto.TypeSongAdded, "song_title": e.Title})
	case "vote":
		if len(args) != 2 {
			return fmt.Errorf("usage: vote <id> <total>")
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}
		total, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		s.broadcast(ctx, map[string]any{"type": proto.TypeVoteUpdated, "queue_item_id": id, "new_votes": total})
	case "remove":
		if len(args) != 1 {
			return fmt.Errorf("usage: remove <id>")
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}
		s.mu.Lock()
		for i := range s.queue {
			if s.queue[i].ID == id {
				s.queue = append(s.queue[:i], s.queue[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		s.broadcast(ctx, map[string]any{"type": proto.TypeQueueUpdated, "action": proto.ActionRemoved, "queue_item_id": id})
	case "join":
		s.broadcast(ctx, map[string]any{"type": proto.TypeUserJoined, "username": strings.Join(args, " ")})
	case "pause", "play":
		s.broadcast(ctx, map[string]any{"type": proto.TypePlaybackControl, "data": map[string]string{"action": cmd}})
	case "drop":
		s.closeAll(websocket.StatusGoingAway, "server restarting")
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (s *server) broadcast(ctx context.Context, v any) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := wsjson.Write(writeCtx, c, v); err != nil {
			log.Printf("send error: %v", err)
		}
		cancel()
	}
}

func (s *server) closeAll(code websocket.StatusCode, reason string) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close(code, reason)
	}
}
