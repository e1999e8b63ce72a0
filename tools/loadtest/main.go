package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/devaloi/socialchat/internal/auth"
	"github.com/devaloi/socialchat/internal/domain"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	secret := flag.String("secret", "change-me-in-production", "JWT secret shared with the server")
	clients := flag.Int("clients", 10, "Number of concurrent clients")
	room := flag.String("room", "loadtest", "Group to join")
	messages := flag.Int("messages", 10, "Messages per client")
	flag.Parse()

	log.Printf("Load test: %d clients, %d messages each, group=%s", *clients, *messages, *room)

	var (
		connected int64
		sent      int64
		received  int64
		errors    int64
		latencies []time.Duration
		latencyMu sync.Mutex
		wg        sync.WaitGroup
	)

	start := time.Now()

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			user := fmt.Sprintf("user_%d", id)
			tok, err := auth.Sign(*secret, user, jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			})
			if err != nil {
				atomic.AddInt64(&errors, 1)
				log.Printf("client %d: sign error: %v", id, err)
				return
			}
			conn, _, err := websocket.DefaultDialer.Dial(*url+"?token="+tok, nil)
			if err != nil {
				atomic.AddInt64(&errors, 1)
				log.Printf("client %d: dial error: %v", id, err)
				return
			}
			defer conn.Close()
			atomic.AddInt64(&connected, 1)

			// Read goroutine.
			done := make(chan struct{})
			go func() {
				defer close(done)
				for {
					_, data, err := conn.ReadMessage()
					if err != nil {
						return
					}
					var env domain.Envelope
					if json.Unmarshal(data, &env) == nil && env.Event == domain.EvReceiveGroupMessage {
						atomic.AddInt64(&received, 1)
					}
				}
			}()

			join, _ := domain.Encode(domain.EvJoinGroup, *room)
			conn.WriteMessage(websocket.TextMessage, join)
			time.Sleep(100 * time.Millisecond)

			for j := 0; j < *messages; j++ {
				sendTime := time.Now()
				frame, _ := domain.Encode(domain.EvSendMessageInGroup, domain.SendGroupPayload{
					GroupID: *room,
					Message: fmt.Sprintf("msg %d from %s", j, user),
				})
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					atomic.AddInt64(&errors, 1)
					return
				}
				atomic.AddInt64(&sent, 1)
				lat := time.Since(sendTime)
				latencyMu.Lock()
				latencies = append(latencies, lat)
				latencyMu.Unlock()
				time.Sleep(10 * time.Millisecond)
			}

			// Wait a bit for remaining messages.
			time.Sleep(500 * time.Millisecond)
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Println("\n=== Load Test Results ===")
	fmt.Printf("Duration:    %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Clients:     %d connected\n", connected)
	fmt.Printf("Sent:        %d messages\n", sent)
	fmt.Printf("Received:    %d group messages\n", received)
	fmt.Printf("Errors:      %d\n", errors)
	if len(latencies) > 0 {
		fmt.Printf("Latency p50: %s\n", percentile(latencies, 50))
		fmt.Printf("Latency p95: %s\n", percentile(latencies, 95))
		fmt.Printf("Latency p99: %s\n", percentile(latencies, 99))
	}
	fmt.Printf("Throughput:  %.0f msgs/sec\n", float64(sent)/elapsed.Seconds())
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
