package channels

import (
	"context"
	"encoding/json"
	"testing"
)

type fakeMember struct {
	name     string
	capacity int
	got      []Message
}

func (m *fakeMember) ChannelName() string { return m.name }

func (m *fakeMember) Deliver(msg Message) bool {
	if m.capacity >= 0 && len(m.got) >= m.capacity {
		return false
	}
	m.got = append(m.got, msg)
	return true
}

func TestChatGroupName(t *testing.T) {
	if got := ChatGroup("42"); got != "chat_42" {
		t.Fatalf("ChatGroup = %q", got)
	}
}

func TestMemoryLayerFanOut(t *testing.T) {
	ctx := context.Background()
	layer := NewMemoryLayer()
	a := &fakeMember{name: "a", capacity: -1}
	b := &fakeMember{name: "b", capacity: -1}
	other := &fakeMember{name: "c", capacity: -1}

	for _, m := range []*fakeMember{a, b} {
		if err := layer.GroupAdd(ctx, GroupAdminOrders, m); err != nil {
			t.Fatalf("GroupAdd: %v", err)
		}
	}
	_ = layer.GroupAdd(ctx, GroupAdminContacts, other)

	msg := Message{Type: EventNewOrder, Payload: map[string]any{"id": "o1"}}
	if err := layer.GroupSend(ctx, GroupAdminOrders, msg); err != nil {
		t.Fatalf("GroupSend: %v", err)
	}

	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("expected one delivery each, got a=%d b=%d", len(a.got), len(b.got))
	}
	if len(other.got) != 0 {
		t.Fatalf("message leaked to another group")
	}
}

func TestMemoryLayerDiscard(t *testing.T) {
	ctx := context.Background()
	layer := NewMemoryLayer()
	a := &fakeMember{name: "a", capacity: -1}
	_ = layer.GroupAdd(ctx, GroupAdminInbox, a)
	_ = layer.GroupAdd(ctx, GroupAdminInbox, a)

	if got := layer.Members(GroupAdminInbox); len(got) != 1 {
		t.Fatalf("double add should keep one membership, got %v", got)
	}
	if err := layer.GroupDiscard(ctx, GroupAdminInbox, "a"); err != nil {
		t.Fatalf("GroupDiscard: %v", err)
	}
	if err := layer.GroupDiscard(ctx, GroupAdminInbox, "a"); err != nil {
		t.Fatalf("second GroupDiscard: %v", err)
	}
	_ = layer.GroupSend(ctx, GroupAdminInbox, Message{Type: EventNewMessage})
	if len(a.got) != 0 {
		t.Fatalf("discarded member still received messages")
	}
}

func TestMemoryLayerSlowMemberDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	layer := NewMemoryLayer()
	slow := &fakeMember{name: "slow", capacity: 0}
	fast := &fakeMember{name: "fast", capacity: -1}
	_ = layer.GroupAdd(ctx, ChatGroup("1"), slow)
	_ = layer.GroupAdd(ctx, ChatGroup("1"), fast)

	if err := layer.GroupSend(ctx, ChatGroup("1"), Message{Type: EventChatMessage}); err != nil {
		t.Fatalf("GroupSend: %v", err)
	}
	if len(fast.got) != 1 {
		t.Fatalf("fast member missed the message")
	}
	if len(slow.got) != 0 {
		t.Fatalf("slow member should have dropped the message")
	}
}

func TestMemoryLayerRejectsEmptyGroup(t *testing.T) {
	layer := NewMemoryLayer()
	if err := layer.GroupSend(context.Background(), "", Message{Type: EventNewOrder}); err != ErrInvalidGroup {
		t.Fatalf("err = %v, want ErrInvalidGroup", err)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	data, _ := json.Marshal(Message{Type: EventTypingStart, Origin: "u1", Payload: map[string]any{"user_id": "u1"}})

	group, msg, err := decodeEnvelope("channels:", "channels:chat_9", string(data))
	if err != nil {
		t.Fatalf("decodeEnvelope: %v", err)
	}
	if group != "chat_9" || msg.Type != EventTypingStart || msg.Origin != "u1" {
		t.Fatalf("unexpected decode: group=%q msg=%+v", group, msg)
	}

	if _, _, err := decodeEnvelope("channels:", "other:chat_9", string(data)); err == nil {
		t.Fatal("expected error for foreign channel")
	}
	if _, _, err := decodeEnvelope("channels:", "channels:chat_9", "{}"); err == nil {
		t.Fatal("expected error for message without type")
	}
}
