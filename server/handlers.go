package server

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"chat-hub/domain/chat"
	"chat-hub/errors"
	"chat-hub/search"
)

const defaultSearchLimit = 20

type credentialsRequest struct {
	Email       string `json:"email" binding:"required"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password" binding:"required"`
}

type createRoomRequest struct {
	Name         string   `json:"name" binding:"required"`
	Kind         string   `json:"kind" binding:"required,oneof=direct group channel"`
	Participants []string `json:"participants"`
}

type roomResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Kind         string          `json:"kind"`
	Participants []string        `json:"participants"`
	LastMessage  summaryResponse `json:"lastMessage"`
	CreatedBy    string          `json:"createdBy"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type summaryResponse struct {
	Content  string    `json:"content"`
	SenderID string    `json:"senderId"`
	At       time.Time `json:"at"`
}

type messageResponse struct {
	ID        string            `json:"id"`
	SenderID  string            `json:"senderId"`
	Content   string            `json:"content"`
	Kind      string            `json:"kind"`
	ReadBy    []receiptResponse `json:"readBy"`
	CreatedAt time.Time         `json:"createdAt"`
}

type receiptResponse struct {
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

type hitResponse struct {
	MessageID string    `json:"messageId"`
	RoomID    string    `json:"roomId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r *Router) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	token, err := r.authService.Register(c.Request.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		r.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token})
}

func (r *Router) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	token, err := r.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		r.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (r *Router) listRooms(c *gin.Context) {
	rooms, err := r.chatService.RoomsForUser(c.Request.Context(), currentUser(c))
	if err != nil {
		r.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(rooms, func(room chat.Room, _ int) roomResponse {
		return toRoomResponse(room)
	}))
}

func (r *Router) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	// The creator is always a participant, listed or not.
	participants := req.Participants
	if !lo.Contains(participants, currentUser(c)) {
		participants = append(participants, currentUser(c))
	}
	room, err := r.chatService.CreateRoom(c.Request.Context(), req.Name,
		chat.RoomKind(req.Kind), participants, currentUser(c))
	if err != nil {
		r.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRoomResponse(room))
}

func (r *Router) history(c *gin.Context) {
	messages, err := r.chatService.History(c.Request.Context(), currentUser(c), chat.RoomID(c.Param("id")))
	if err != nil {
		r.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(messages, func(m chat.Message, _ int) messageResponse {
		return toMessageResponse(m)
	}))
}

func (r *Router) search(c *gin.Context) {
	terms := c.Query("q")
	if terms == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}
	limit := defaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	hits, err := r.chatService.Search(c.Request.Context(), currentUser(c), chat.RoomID(c.Param("id")), terms, limit)
	if err != nil {
		r.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(hits, func(h search.Hit, _ int) hitResponse {
		return toHitResponse(h)
	}))
}

// fail maps domain errors onto HTTP statuses without leaking internals.
func (r *Router) fail(c *gin.Context, err error) {
	switch errors.MapToReason(err) {
	case errors.ReasonRoomNotFound, errors.ReasonMessageNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.ReasonNotParticipant:
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.ReasonInvalidToken:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	default:
		switch {
		case isBadRequest(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case isConflict(err):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			r.log.Error("request failed", "path", c.FullPath(), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
	}
}

func isBadRequest(err error) bool {
	return stderrors.Is(err, errors.ErrInvalidPassword) ||
		stderrors.Is(err, errors.ErrDirectRoomSize) ||
		stderrors.Is(err, errors.ErrInvalidPayload)
}

func isConflict(err error) bool {
	return stderrors.Is(err, errors.ErrUserAlreadyExists)
}

func toRoomResponse(room chat.Room) roomResponse {
	return roomResponse{
		ID:           string(room.ID),
		Name:         room.Name,
		Kind:         string(room.Kind),
		Participants: room.Participants,
		LastMessage: summaryResponse{
			Content:  room.LastMessage.Content,
			SenderID: room.LastMessage.SenderID,
			At:       room.LastMessage.At,
		},
		CreatedBy: room.CreatedBy,
		CreatedAt: room.CreatedAt,
	}
}

func toHitResponse(h search.Hit) hitResponse {
	return hitResponse{
		MessageID: string(h.MessageID),
		RoomID:    string(h.Room),
		SenderID:  h.SenderID,
		Content:   h.Content,
		CreatedAt: h.CreatedAt,
	}
}

func toMessageResponse(m chat.Message) messageResponse {
	return messageResponse{
		ID:       string(m.ID),
		SenderID: m.SenderID,
		Content:  m.Content,
		Kind:     string(m.Kind),
		ReadBy: lo.Map(m.ReadBy, func(receipt chat.ReadReceipt, _ int) receiptResponse {
			return receiptResponse{UserID: receipt.UserID, ReadAt: receipt.ReadAt}
		}),
		CreatedAt: m.CreatedAt,
	}
}
