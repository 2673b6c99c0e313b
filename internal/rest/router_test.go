package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideateGudy/chat-backend/internal/store"
	"github.com/ideateGudy/chat-backend/pkg/config"
	"github.com/ideateGudy/chat-backend/pkg/room"
)

const testSecret = "test-secret"

type fakeMessageStore struct {
	store.MessageStore

	createFn        func(ctx context.Context, msg *store.Message) error
	updateStatusFn  func(ctx context.Context, messageID string, status store.MessageStatus) (*store.Message, error)
	markDeliveredFn func(ctx context.Context, userID, partnerID string) (int64, error)
	markReadFn      func(ctx context.Context, userID, partnerID string) (int64, error)
	privateRoomsFn  func(ctx context.Context, userID string) ([]store.PrivateRoomSummary, error)
	groupRoomsFn    func(ctx context.Context, userID string) ([]store.GroupRoomSummary, error)
}

func (f *fakeMessageStore) Create(ctx context.Context, msg *store.Message) error {
	if f.createFn != nil {
		return f.createFn(ctx, msg)
	}
	msg.ID = uuid.New().String()
	msg.ChatRoomID = room.ID(msg.SenderID, msg.ReceiverID)
	msg.Status = store.StatusSent
	return nil
}

func (f *fakeMessageStore) RoomMessages(ctx context.Context, roomID string, page, limit int) ([]store.Message, error) {
	return nil, nil
}

func (f *fakeMessageStore) MarkDeliveredOnFetch(ctx context.Context, roomID, userID string) ([]string, error) {
	return nil, nil
}

func (f *fakeMessageStore) Undelivered(ctx context.Context, userID string) ([]store.Message, error) {
	return nil, nil
}

func (f *fakeMessageStore) UpdateStatus(ctx context.Context, messageID string, status store.MessageStatus) (*store.Message, error) {
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, messageID, status)
	}
	return nil, store.ErrNotFound
}

func (f *fakeMessageStore) MarkDelivered(ctx context.Context, userID, partnerID string) (int64, error) {
	if f.markDeliveredFn != nil {
		return f.markDeliveredFn(ctx, userID, partnerID)
	}
	return 0, nil
}

func (f *fakeMessageStore) MarkRead(ctx context.Context, userID, partnerID string) (int64, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, userID, partnerID)
	}
	return 0, nil
}

func (f *fakeMessageStore) PrivateRooms(ctx context.Context, userID string) ([]store.PrivateRoomSummary, error) {
	if f.privateRoomsFn != nil {
		return f.privateRoomsFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeMessageStore) GroupRooms(ctx context.Context, userID string) ([]store.GroupRoomSummary, error) {
	if f.groupRoomsFn != nil {
		return f.groupRoomsFn(ctx, userID)
	}
	return nil, nil
}

type fakeGroupStore struct {
	store.GroupStore

	createFn       func(ctx context.Context, g *store.Group) error
	deactivateFn   func(ctx context.Context, groupID, actorID string) error
	joinByCodeFn   func(ctx context.Context, code, userID string) (*store.Group, error)
	memberGroupsFn func(ctx context.Context, userID string) ([]store.Group, error)
	searchFn       func(ctx context.Context, query string) ([]store.Group, error)
	isMemberFn     func(ctx context.Context, groupID, userID string) (bool, error)
}

func (f *fakeGroupStore) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	if f.isMemberFn != nil {
		return f.isMemberFn(ctx, groupID, userID)
	}
	return false, nil
}

func (f *fakeGroupStore) Search(ctx context.Context, query string) ([]store.Group, error) {
	if f.searchFn != nil {
		return f.searchFn(ctx, query)
	}
	return nil, nil
}

func (f *fakeGroupStore) Create(ctx context.Context, g *store.Group) error {
	if f.createFn != nil {
		return f.createFn(ctx, g)
	}
	g.ID = uuid.New().String()
	g.InviteCode = "code12345678"
	g.IsActive = true
	return nil
}

func (f *fakeGroupStore) Deactivate(ctx context.Context, groupID, actorID string) error {
	if f.deactivateFn != nil {
		return f.deactivateFn(ctx, groupID, actorID)
	}
	return nil
}

func (f *fakeGroupStore) JoinByInviteCode(ctx context.Context, code, userID string) (*store.Group, error) {
	if f.joinByCodeFn != nil {
		return f.joinByCodeFn(ctx, code, userID)
	}
	return nil, store.ErrNotFound
}

func (f *fakeGroupStore) MemberGroups(ctx context.Context, userID string) ([]store.Group, error) {
	if f.memberGroupsFn != nil {
		return f.memberGroupsFn(ctx, userID)
	}
	return nil, nil
}

type fakePresenceStore struct {
	store.PresenceStore
}

func (f *fakePresenceStore) Get(ctx context.Context, userID string) (*store.Presence, error) {
	return &store.Presence{UserID: userID, IsOnline: false, LastSeen: time.Now().UTC()}, nil
}

func (f *fakePresenceStore) UpdateLastSeen(ctx context.Context, userID string, at time.Time) (*store.Presence, error) {
	return &store.Presence{UserID: userID, IsOnline: false, LastSeen: at}, nil
}

type testEnv struct {
	router   http.Handler
	messages *fakeMessageStore
	groups   *fakeGroupStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	messages := &fakeMessageStore{}
	groups := &fakeGroupStore{}
	h := NewHandler(logger, messages, groups, &fakePresenceStore{})

	cfg := &config.Config{}
	cfg.Server.Auth.JWTSecret = testSecret
	cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
	return &testEnv{router: h.Router(cfg), messages: messages, groups: groups}
}

func signToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/api/chat-rooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing token")

	w = e.do(t, http.MethodGet, "/api/chat-rooms", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid token")
}

func TestCreateMessageUsesAuthenticatedSender(t *testing.T) {
	e := newTestEnv(t)

	var persisted *store.Message
	e.messages.createFn = func(ctx context.Context, msg *store.Message) error {
		msg.ID = "m1"
		persisted = msg
		return nil
	}

	w := e.do(t, http.MethodPost, "/api/messages", signToken(t, "zara"), map[string]any{
		"chatType": "private",
		"receiver": "amir",
		"body":     "hi",
		"sender":   "mallory",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, persisted)
	assert.Equal(t, "zara", persisted.SenderID)
}

func TestCreateGroupMessageRequiresMembership(t *testing.T) {
	e := newTestEnv(t)

	persisted := false
	e.messages.createFn = func(ctx context.Context, msg *store.Message) error {
		persisted = true
		return nil
	}
	e.groups.isMemberFn = func(ctx context.Context, groupID, userID string) (bool, error) {
		return false, nil
	}

	w := e.do(t, http.MethodPost, "/api/messages", signToken(t, "mallory"), map[string]any{
		"chatType": "group",
		"groupId":  "g1",
		"body":     "let me in",
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, persisted, "a non-member's message must never be persisted")
}

func TestRoomMessagesRequiresParticipation(t *testing.T) {
	e := newTestEnv(t)
	e.groups.isMemberFn = func(ctx context.Context, groupID, userID string) (bool, error) {
		return userID == "zara", nil
	}

	// A participant of the private pair reads their own history.
	w := e.do(t, http.MethodGet, "/api/messages/room/"+room.ID("zara", "amir"), signToken(t, "zara"), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// An outsider supplying someone else's room id is refused.
	w = e.do(t, http.MethodGet, "/api/messages/room/"+room.ID("zara", "amir"), signToken(t, "mallory"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Group rooms are gated on membership.
	w = e.do(t, http.MethodGet, "/api/messages/room/"+room.GroupID("g1"), signToken(t, "zara"), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/api/messages/room/"+room.GroupID("g1"), signToken(t, "mallory"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateMessageInvalidPayload(t *testing.T) {
	e := newTestEnv(t)
	e.messages.createFn = func(ctx context.Context, msg *store.Message) error {
		return store.ErrInvalid
	}

	w := e.do(t, http.MethodPost, "/api/messages", signToken(t, "zara"), map[string]any{
		"chatType": "private",
		"body":     "no receiver",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateStatusMapsNotFound(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPatch, "/api/messages/status/missing", signToken(t, "zara"), map[string]any{
		"status": "delivered",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBulkMarkDeliveredReportsCount(t *testing.T) {
	e := newTestEnv(t)

	var gotUser, gotPartner string
	e.messages.markDeliveredFn = func(ctx context.Context, userID, partnerID string) (int64, error) {
		gotUser, gotPartner = userID, partnerID
		return 3, nil
	}

	w := e.do(t, http.MethodPost, "/api/messages/mark-delivered", signToken(t, "amir"), map[string]any{
		"partnerId": "zara",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "amir", gotUser)
	assert.Equal(t, "zara", gotPartner)
	assert.Contains(t, w.Body.String(), `"updated":3`)
}

func TestChatRoomsAggregatesBothShapes(t *testing.T) {
	e := newTestEnv(t)

	e.messages.privateRoomsFn = func(ctx context.Context, userID string) ([]store.PrivateRoomSummary, error) {
		return []store.PrivateRoomSummary{{ChatRoomID: "amir_zara", PartnerID: "amir", UnreadCount: 2}}, nil
	}
	e.messages.groupRoomsFn = func(ctx context.Context, userID string) ([]store.GroupRoomSummary, error) {
		return []store.GroupRoomSummary{{ChatRoomID: "group:g1", GroupID: "g1", GroupName: "gophers"}}, nil
	}

	w := e.do(t, http.MethodGet, "/api/chat-rooms", signToken(t, "zara"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Private []store.PrivateRoomSummary `json:"private"`
		Groups  []store.GroupRoomSummary   `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Private, 1)
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, int64(2), resp.Private[0].UnreadCount)
	assert.Equal(t, "gophers", resp.Groups[0].GroupName)
}

func TestDeactivateGroupMapsUnauthorized(t *testing.T) {
	e := newTestEnv(t)
	e.groups.deactivateFn = func(ctx context.Context, groupID, actorID string) error {
		return store.ErrUnauthorized
	}

	w := e.do(t, http.MethodDelete, "/api/groups/g1", signToken(t, "mallory"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestJoinByInviteCodeMapsConflict(t *testing.T) {
	e := newTestEnv(t)
	e.groups.joinByCodeFn = func(ctx context.Context, code, userID string) (*store.Group, error) {
		return nil, store.ErrConflict
	}

	w := e.do(t, http.MethodPost, "/api/invites/abc123/join", signToken(t, "zara"), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestJoinByInviteCode(t *testing.T) {
	e := newTestEnv(t)
	e.groups.joinByCodeFn = func(ctx context.Context, code, userID string) (*store.Group, error) {
		assert.Equal(t, "abc123", code)
		assert.Equal(t, "zara", userID)
		return &store.Group{ID: "g1", Name: "gophers", IsActive: true}, nil
	}

	w := e.do(t, http.MethodPost, "/api/invites/abc123/join", signToken(t, "zara"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"gophers"`)
}

func TestUpdateLastSeenForcesOffline(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPut, "/api/presence/last-seen", signToken(t, "zara"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isOnline":false`)
}

func TestGroupListRoutesSearchSeparately(t *testing.T) {
	e := newTestEnv(t)
	var searched string
	memberListed := false
	e.groups.searchFn = func(ctx context.Context, query string) ([]store.Group, error) {
		searched = query
		return []store.Group{{ID: "g1", Name: "gophers"}}, nil
	}
	e.groups.memberGroupsFn = func(ctx context.Context, userID string) ([]store.Group, error) {
		memberListed = true
		return nil, nil
	}

	w := e.do(t, http.MethodGet, "/api/groups?search=gop", signToken(t, "zara"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gop", searched)
	assert.False(t, memberListed)

	w = e.do(t, http.MethodGet, "/api/groups", signToken(t, "zara"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, memberListed)
}
