package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

// Envelope mirrors the wire frame exchanged over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type BaseChatSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseChatSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("SERVER_ADDR not set, skipping end to end suite")
	}
}

func (s *BaseChatSuite) header(name string) {
	// 1. Print a colorized header for the step in logs
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Account is a throwaway user registered for a single suite run.
type Account struct {
	Email       string
	DisplayName string
	Password    string
	Token       string
}

// RegisterAccount creates a fresh user through the REST surface and keeps
// the returned token for the WebSocket handshake.
func (s *BaseChatSuite) RegisterAccount(name string) Account {
	s.header("Register " + name)
	account := Account{
		Email:       fmt.Sprintf("%s-%s@example.com", name, uuid.New().String()[:8]),
		DisplayName: name,
		Password:    "E2e-Passw0rd." + name,
	}
	body := s.postJSON("/auth/register", "", map[string]string{
		"email":       account.Email,
		"displayName": account.DisplayName,
		"password":    account.Password,
	}, http.StatusCreated)

	var out struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(body, &out))
	s.Require().NotEmpty(out.Token)
	account.Token = out.Token
	return account
}

// CreateRoom calls the REST endpoint and returns the new room ID.
func (s *BaseChatSuite) CreateRoom(creator Account, name, kind string, participants []string) string {
	s.header("Create room " + name)
	body := s.postJSON("/rooms", creator.Token, map[string]any{
		"name":         name,
		"kind":         kind,
		"participants": participants,
	}, http.StatusCreated)

	var out struct {
		ID string `json:"id"`
	}
	s.Require().NoError(json.Unmarshal(body, &out))
	s.Require().NotEmpty(out.ID)
	return out.ID
}

func (s *BaseChatSuite) postJSON(path, token string, payload any, wantStatus int) []byte {
	raw, err := json.Marshal(payload)
	s.Require().NoError(err)

	req, err := http.NewRequest(http.MethodPost,
		fmt.Sprintf("http://%s%s", s.Config.ServerAddr, path), bytes.NewReader(raw))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	buffer := bytes.Buffer{}
	_, err = buffer.ReadFrom(resp.Body)
	s.Require().NoError(err)

	s.T().Logf("POST %s [%d] in %v", path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		s.T().Logf("REQUEST:\n%s\nRESPONSE:\n%s", string(raw), buffer.String())
	}
	s.Require().Equal(wantStatus, resp.StatusCode)
	return buffer.Bytes()
}

// Socket wraps a live WebSocket connection with helpers that assert on the
// frame sequence.
type Socket struct {
	suite *BaseChatSuite
	conn  *websocket.Conn
}

// Connect dials the WebSocket endpoint and authenticates with the account
// token. The authenticated_ok frame is consumed and returned.
func (s *BaseChatSuite) Connect(name string, account Account) (*Socket, json.RawMessage) {
	s.header("Connect " + name)
	conn, _, err := websocket.DefaultDialer.Dial(
		fmt.Sprintf("ws://%s/ws", s.Config.ServerAddr), nil)
	s.Require().NoError(err, "Failed to reach WebSocket endpoint at "+s.Config.ServerAddr)

	socket := &Socket{suite: s, conn: conn}
	socket.Send("authenticate", map[string]string{"token": account.Token})
	payload := socket.Expect("authenticated_ok")
	return socket, payload
}

func (sock *Socket) Close() {
	_ = sock.conn.Close()
}

func (sock *Socket) Send(kind string, payload any) {
	raw, err := json.Marshal(payload)
	sock.suite.Require().NoError(err)
	err = sock.conn.WriteJSON(Envelope{Type: kind, Payload: raw})
	sock.suite.Require().NoError(err)
	if sock.suite.Config.DebugJSON {
		sock.suite.T().Logf("WS SEND %s: %s", kind, string(raw))
	}
}

// Expect reads frames until the wanted type arrives. Presence frames from
// unrelated connections are skipped, anything else fails the test.
func (sock *Socket) Expect(kind string) json.RawMessage {
	sock.suite.T().Helper()
	err := sock.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	sock.suite.Require().NoError(err)
	for {
		var env Envelope
		err := sock.conn.ReadJSON(&env)
		sock.suite.Require().NoError(err, "Waiting for "+kind)
		if sock.suite.Config.DebugJSON {
			sock.suite.T().Logf("WS RECV %s: %s", env.Type, string(env.Payload))
		}
		if env.Type == kind {
			return env.Payload
		}
		if env.Type == "user_online" || env.Type == "user_offline" {
			continue
		}
		sock.suite.Require().FailNowf("Unexpected frame",
			"Expected %s, got %s: %s", kind, env.Type, string(env.Payload))
	}
}

// ExpectNothing asserts that no frame arrives inside the window.
func (sock *Socket) ExpectNothing(window time.Duration) {
	sock.suite.T().Helper()
	err := sock.conn.SetReadDeadline(time.Now().Add(window))
	sock.suite.Require().NoError(err)
	var env Envelope
	readErr := sock.conn.ReadJSON(&env)
	sock.suite.Require().Error(readErr,
		"Expected silence, got %s: %s", env.Type, string(env.Payload))
	_ = sock.conn.SetReadDeadline(time.Time{})
}
