package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/queuesync/internal/client"
	"github.com/vovakirdan/queuesync/internal/proto"
)

func main() {
	server := flag.String("server", "http://localhost:8000", "session server base URL")
	session := flag.String("session", "TEST1234", "session code")
	user := flag.String("user", "smoke-tester", "participant id to vote as")
	vote := flag.Int64("vote", 0, "queue item id to upvote after connecting (0 = none)")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	addr, err := client.StreamURL(*server, *session)
	if err != nil {
		log.Fatalf("stream url: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "Normal closure")
	fmt.Printf("Connected to %s\n", addr)

	if *vote != 0 {
		msg := proto.Outbound{
			Type:    proto.OutboundTypeVote,
			Payload: proto.VotePayload{QueueItemID: *vote, Vote: "up", UserID: *user},
		}
		if err := wsjson.Write(ctx, conn, msg); err != nil {
			log.Fatalf("send: %v", err)
		}
	}

	for {
		var frame json.RawMessage
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || ctx.Err() != nil {
				return
			}
			log.Fatalf("read: %v", err)
		}

		msg, err := proto.Decode(frame)
		if err != nil {
			fmt.Printf("Malformed frame: %v\n", err)
			continue
		}
		fmt.Printf("Received %s: %+v\n", msg.Kind(), msg)
	}
}
