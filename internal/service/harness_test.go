package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-realtime/internal/broadcast"
	"github.com/spec-kit/storefront-realtime/internal/channels"
	"github.com/spec-kit/storefront-realtime/internal/domain"
)

var (
	customer  = &domain.User{ID: "cust-1", Name: "Cara", Email: "cara@example.com", IsActive: true}
	outsider  = &domain.User{ID: "cust-2", Name: "Otto", Email: "otto@example.com", IsActive: true}
	staff     = &domain.User{ID: "staff-1", Name: "Sam", Email: "sam@example.com", IsStaff: true, IsActive: true}
	superuser = &domain.User{ID: "root-1", Name: "Rita", Email: "rita@example.com", IsSuperuser: true, IsActive: true}
)

type harness struct {
	bus      *syncDispatcher
	layer    *channels.MemoryLayer
	orders   *OrderService
	contacts *ContactService
	chat     *ChatService

	convs    *fakeConversations
	messages *fakeMessages
	parts    *fakeParticipants
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	convs := newFakeConversations()
	h := &harness{
		bus:      newSyncDispatcher(),
		layer:    channels.NewMemoryLayer(),
		convs:    convs,
		messages: &fakeMessages{convs: convs},
		parts:    newFakeParticipants(customer, outsider, staff, superuser),
	}
	logger := zap.NewNop()
	h.orders = NewOrderService(newFakeOrders(), h.bus, logger)
	h.contacts = NewContactService(newFakeContacts(), h.bus, logger)
	h.chat = NewChatService(ChatDependencies{
		ConversationRepo: h.convs,
		MessageRepo:      h.messages,
		ParticipantRepo:  h.parts,
		UserRepo:         newFakeUsers(customer, outsider, staff, superuser),
		Dispatcher:       h.bus,
		Logger:           logger,
	})

	broadcaster := broadcast.New(h.layer, logger, time.Second)
	NewNotificationService(h.bus, broadcaster, h.orders, h.contacts, logger).RegisterHandlers()
	return h
}

func (h *harness) join(t *testing.T, group string) *recordingMember {
	t.Helper()
	member := &recordingMember{name: "member-" + group}
	if err := h.layer.GroupAdd(context.Background(), group, member); err != nil {
		t.Fatalf("GroupAdd: %v", err)
	}
	return member
}

func (h *harness) openConversation(t *testing.T) *domain.Conversation {
	t.Helper()
	conv, _, err := h.chat.OpenConversation(context.Background(), customer, "Where is my parcel?")
	if err != nil {
		t.Fatalf("OpenConversation: %v", err)
	}
	return conv
}

func assertTypes(t *testing.T, got []channels.EventName, want ...channels.EventName) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	}
}
