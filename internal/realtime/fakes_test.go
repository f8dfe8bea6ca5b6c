package realtime

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-realtime/internal/broadcast"
	"github.com/spec-kit/storefront-realtime/internal/channels"
	"github.com/spec-kit/storefront-realtime/internal/domain"
	"github.com/spec-kit/storefront-realtime/internal/service"
	apperrors "github.com/spec-kit/storefront-realtime/pkg/util/errorutil"
)

var (
	customer = &domain.User{ID: "cust-1", Name: "Cara", IsActive: true}
	outsider = &domain.User{ID: "cust-2", Name: "Otto", IsActive: true}
	staff    = &domain.User{ID: "staff-1", Name: "Sam", IsStaff: true, IsActive: true}
)

type fakeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.in:
		return textMessage, data, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType != textMessage {
		return nil
	}
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	case c.out <- append([]byte(nil), data...):
		return nil
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) sendRaw(data string) {
	c.in <- []byte(data)
}

func (c *fakeConn) send(t *testing.T, cmd map[string]any) {
	t.Helper()
	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	c.in <- data
}

func (c *fakeConn) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case data := <-c.out:
		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("decode frame %s: %v", data, err)
		}
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return nil
}

func (c *fakeConn) expect(t *testing.T, frameType string) map[string]any {
	t.Helper()
	frame := c.next(t)
	if frame["type"] != frameType {
		t.Fatalf("expected %s frame, got %v", frameType, frame)
	}
	return frame
}

func (c *fakeConn) expectSilence(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case data := <-c.out:
		t.Fatalf("expected no frame, got %s", data)
	case <-time.After(wait):
	}
}

// countingLayer records joins so tests can assert nothing was joined.
type countingLayer struct {
	*channels.MemoryLayer
	mu    sync.Mutex
	joins int
}

func (l *countingLayer) GroupAdd(ctx context.Context, group string, member channels.Member) error {
	l.mu.Lock()
	l.joins++
	l.mu.Unlock()
	return l.MemoryLayer.GroupAdd(ctx, group, member)
}

func (l *countingLayer) joinCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.joins
}

type fakeOrders struct{}

func (fakeOrders) Stats(context.Context) (domain.OrderStats, error) {
	return domain.OrderStats{TotalOrders: 4, PendingOrders: 3}, nil
}

func (fakeOrders) ListRecent(context.Context, int) ([]domain.Order, error) {
	return []domain.Order{{ID: "order-1", Status: domain.OrderStatusPending}}, nil
}

type fakeContacts struct{}

func (fakeContacts) Stats(context.Context) (domain.ContactStats, error) {
	return domain.ContactStats{UnreadCount: 2, TotalCount: 5}, nil
}

func (fakeContacts) ListRecent(context.Context, int) ([]domain.Contact, error) {
	return nil, nil
}

// fakeChat keeps conversations in memory and emits the group messages the
// notification pipeline would produce for a new message.
type fakeChat struct {
	layer channels.Layer

	mu         sync.Mutex
	convs      map[string]*domain.Conversation
	sent       []domain.Message
	presence   map[string]bool
	everywhere map[string]bool
}

func newFakeChat(layer channels.Layer, convs ...*domain.Conversation) *fakeChat {
	f := &fakeChat{
		layer:      layer,
		convs:      make(map[string]*domain.Conversation),
		presence:   make(map[string]bool),
		everywhere: make(map[string]bool),
	}
	for _, conv := range convs {
		f.convs[conv.ID] = conv
	}
	return f
}

func (f *fakeChat) Conversation(_ context.Context, user *domain.User, id string) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[id]
	if !ok {
		return nil, apperrors.NewNotFound("conversation", nil)
	}
	if !conv.CanAccess(user) {
		return nil, apperrors.ErrAccessDenied
	}
	copied := *conv
	return &copied, nil
}

func (f *fakeChat) SendMessage(ctx context.Context, sender *domain.User, conversationID, content string, msgType domain.MessageType) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.ErrEmptyMessage
	}
	if msgType == "" {
		msgType = domain.MessageTypeText
	}
	msg := domain.Message{
		ID:             "msg-1",
		ConversationID: conversationID,
		SenderID:       sender.ID,
		SenderName:     sender.DisplayName(),
		SenderIsStaff:  sender.IsAdmin(),
		MessageType:    msgType,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()

	event := channels.Message{Type: channels.EventChatMessage, Origin: sender.ID, Payload: service.ChatMessagePayload(msg)}
	_ = f.layer.GroupSend(ctx, channels.ChatGroup(conversationID), event)
	_ = f.layer.GroupSend(ctx, channels.GroupAdminInbox, event)
	return &msg, nil
}

func (f *fakeChat) MarkRead(ctx context.Context, reader *domain.User, conversationID string) (*domain.Conversation, error) {
	return f.Conversation(ctx, reader, conversationID)
}

func (f *fakeChat) MarkViewed(context.Context, *domain.User, string) (bool, error) {
	return true, nil
}

func (f *fakeChat) SetPresence(_ context.Context, user *domain.User, conversationID string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presence[conversationID+"|"+user.ID] = online
	return nil
}

func (f *fakeChat) SetOnlineEverywhere(_ context.Context, user *domain.User) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.everywhere[user.ID] = true
	return []string{"conv-1"}, nil
}

func (f *fakeChat) SetOfflineEverywhere(_ context.Context, user *domain.User) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.everywhere[user.ID] = false
	return []string{"conv-1"}, nil
}

func (f *fakeChat) OnlineUsers(context.Context) ([]domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Participant
	for id, online := range f.everywhere {
		if online {
			out = append(out, domain.Participant{UserID: id, IsOnline: true})
		}
	}
	return out, nil
}

func (f *fakeChat) OnlineParticipants(context.Context, string) ([]domain.Participant, error) {
	return nil, nil
}

func (f *fakeChat) InboxStats(context.Context) (domain.InboxStats, error) {
	return domain.InboxStats{TotalConversations: 1, OpenConversations: 1}, nil
}

func (f *fakeChat) ListConversations(context.Context, int) ([]domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Conversation, 0, len(f.convs))
	for _, conv := range f.convs {
		out = append(out, *conv)
	}
	return out, nil
}

func (f *fakeChat) isOnline(conversationID, userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.presence[conversationID+"|"+userID]
}

type testEnv struct {
	layer *countingLayer
	chat  *fakeChat
	hub   *Hub
	conv  *domain.Conversation
}

func newTestEnv(opts Options) *testEnv {
	layer := &countingLayer{MemoryLayer: channels.NewMemoryLayer()}
	conv := &domain.Conversation{ID: "conv-1", CustomerID: customer.ID, Status: domain.ConversationStatusOpen}
	chat := newFakeChat(layer, conv)
	logger := zap.NewNop()
	hub := NewHub(HubDependencies{
		Layer:       layer,
		Broadcaster: broadcast.New(layer, logger, time.Second),
		Logger:      logger,
		Orders:      fakeOrders{},
		Contacts:    fakeContacts{},
		Chat:        chat,
	}, opts)
	return &testEnv{layer: layer, chat: chat, hub: hub, conv: conv}
}

// start runs serve in the background and returns the client side plus a
// channel that yields Run's result.
func start(serve func(Conn) error) (*fakeConn, <-chan error) {
	conn := newFakeConn()
	done := make(chan error, 1)
	go func() { done <- serve(conn) }()
	return conn, done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
	return nil
}
