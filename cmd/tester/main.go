package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	addr := flag.String("addr", "localhost:8080", "Server host:port")
	flag.Parse()

	httpBase := fmt.Sprintf("http://%s", *addr)
	wsURL := fmt.Sprintf("ws://%s/ws", *addr)
	suffix := uuid.New().String()[:8]

	// 1. Register two throwaway accounts
	step("Register accounts")
	aliceToken := register(httpBase, "alice-"+suffix)
	bobToken := register(httpBase, "bob-"+suffix)

	// 2. Open both sockets and authenticate to learn the user IDs
	step("WebSocket handshake")
	alice, aliceID := connect(wsURL, aliceToken)
	defer alice.Close()
	bob, bobID := connect(wsURL, bobToken)
	defer bob.Close()
	fmt.Printf("Alice: %s\nBob:   %s\n", aliceID, bobID)

	// 3. Create a shared room, then join it on both live connections.
	// Rooms created after the handshake are not auto joined.
	step("Create room")
	roomID := createRoom(httpBase, aliceToken, "smoke-"+suffix, []string{bobID})
	fmt.Printf("Room: %s\n", roomID)
	send(alice, "join_room", map[string]string{"roomId": roomID})
	send(bob, "join_room", map[string]string{"roomId": roomID})

	// 4. Alice posts, both sides must see the fan-out
	step("Send message")
	send(alice, "send_message", map[string]string{
		"roomId":  roomID,
		"content": "hello from the smoke tester",
	})
	expect(alice, "new_message")
	expect(alice, "room_updated")
	expect(bob, "new_message")
	expect(bob, "room_updated")

	// 5. Bob marks the room read, the receipt reaches Alice too
	step("Read receipt")
	send(bob, "mark_read", map[string]string{"roomId": roomID})
	expect(bob, "messages_read")
	expect(alice, "messages_read")

	// 6. Same content again inside the window. Nothing must come back.
	// Last step on purpose, the read timeout poisons Bob's connection.
	step("Duplicate suppression")
	send(alice, "send_message", map[string]string{
		"roomId":  roomID,
		"content": "hello from the smoke tester",
	})
	expectSilence(bob, 2*time.Second)

	color.Green.Println("\nAll steps passed")
}

func step(name string) {
	color.New(color.BgBlack, color.FgGreen).Printf("\n  ====== %s ======\n", name)
}

func register(base, name string) string {
	body, _ := json.Marshal(map[string]string{
		"email":       name + "@example.com",
		"displayName": name,
		"password":    "Tester-Passw0rd!",
	})
	resp, err := http.Post(base+"/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Register call failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		log.Fatalf("Register returned %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatalf("Register decode failed: %v", err)
	}
	return out.Token
}

func createRoom(base, token, name string, participants []string) string {
	body, _ := json.Marshal(map[string]any{
		"name":         name,
		"kind":         "group",
		"participants": participants,
	})
	req, _ := http.NewRequest(http.MethodPost, base+"/rooms", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Create room call failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		log.Fatalf("Create room returned %d", resp.StatusCode)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatalf("Create room decode failed: %v", err)
	}
	return out.ID
}

// connect dials, authenticates and returns the user ID announced by the
// server in the authenticated_ok frame.
func connect(wsURL, token string) (*websocket.Conn, string) {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	send(conn, "authenticate", map[string]string{"token": token})
	payload := expect(conn, "authenticated_ok")

	var out struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		log.Fatalf("authenticated_ok decode failed: %v", err)
	}
	return conn, out.UserID
}

func send(conn *websocket.Conn, kind string, payload any) {
	raw, _ := json.Marshal(payload)
	if err := conn.WriteJSON(envelope{Type: kind, Payload: raw}); err != nil {
		log.Fatalf("Write %s failed: %v", kind, err)
	}
}

// expect reads frames until the wanted type shows up, skipping presence
// noise from other connected clients.
func expect(conn *websocket.Conn, kind string) json.RawMessage {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			log.Fatalf("Waiting for %s: %v", kind, err)
		}
		if env.Type == kind {
			fmt.Printf("Received %s: %s\n", env.Type, string(env.Payload))
			return env.Payload
		}
		if env.Type == "user_online" || env.Type == "user_offline" {
			continue
		}
		log.Fatalf("Expected %s, got %s: %s", kind, env.Type, string(env.Payload))
	}
}

func expectSilence(conn *websocket.Conn, window time.Duration) {
	_ = conn.SetReadDeadline(time.Now().Add(window))
	var env envelope
	err := conn.ReadJSON(&env)
	if err == nil {
		log.Fatalf("Expected silence, got %s: %s", env.Type, string(env.Payload))
	}
	fmt.Println("No frame received, duplicate was dropped")
}
