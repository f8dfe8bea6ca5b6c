package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/storefront-realtime/internal/channels"
	"github.com/spec-kit/storefront-realtime/internal/domain"
	"github.com/spec-kit/storefront-realtime/internal/events"
)

// syncDispatcher runs handlers inline so tests observe effects immediately.
type syncDispatcher struct {
	mu        sync.Mutex
	listeners map[events.EventType][]events.EventHandler
	published []events.Event
	errs      []error
}

func newSyncDispatcher() *syncDispatcher {
	return &syncDispatcher{listeners: make(map[events.EventType][]events.EventHandler)}
}

func (d *syncDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

func (d *syncDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	d.published = append(d.published, event)
	handlers := append([]events.EventHandler(nil), d.listeners[event.Type]...)
	d.mu.Unlock()
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			d.mu.Lock()
			d.errs = append(d.errs, err)
			d.mu.Unlock()
		}
	}
	return nil
}

func (d *syncDispatcher) count(eventType events.EventType) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, event := range d.published {
		if event.Type == eventType {
			n++
		}
	}
	return n
}

type recordingMember struct {
	name string
	mu   sync.Mutex
	msgs []channels.Message
}

func (m *recordingMember) ChannelName() string { return m.name }

func (m *recordingMember) Deliver(msg channels.Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return true
}

func (m *recordingMember) types() []channels.EventName {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]channels.EventName, 0, len(m.msgs))
	for _, msg := range m.msgs {
		out = append(out, msg.Type)
	}
	return out
}

func (m *recordingMember) last(name channels.EventName) (channels.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.msgs) - 1; i >= 0; i-- {
		if m.msgs[i].Type == name {
			return m.msgs[i], true
		}
	}
	return channels.Message{}, false
}

type fakeOrders struct {
	mu     sync.Mutex
	seq    int
	orders map[string]domain.Order
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: make(map[string]domain.Order)}
}

func (f *fakeOrders) Create(_ context.Context, order *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	order.ID = fmt.Sprintf("order-%d", f.seq)
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	f.orders[order.ID] = *order
	return nil
}

func (f *fakeOrders) Update(_ context.Context, order *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[order.ID]; !ok {
		return pgx.ErrNoRows
	}
	order.UpdatedAt = time.Now()
	f.orders[order.ID] = *order
	return nil
}

func (f *fakeOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &order, nil
}

func (f *fakeOrders) ListRecent(_ context.Context, limit int) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Order, 0, len(f.orders))
	for _, order := range f.orders {
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeOrders) Stats(_ context.Context, _ time.Time) (domain.OrderStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stats domain.OrderStats
	for _, order := range f.orders {
		stats.TotalOrders++
		stats.TodayOrders++
		switch order.Status {
		case domain.OrderStatusPending:
			stats.PendingOrders++
		case domain.OrderStatusConfirmed:
			stats.ConfirmedOrders++
		case domain.OrderStatusProcessing:
			stats.ProcessingOrders++
		case domain.OrderStatusShipped:
			stats.ShippedOrders++
		case domain.OrderStatusDelivered:
			stats.DeliveredOrders++
		case domain.OrderStatusCancelled:
			stats.CancelledOrders++
		case domain.OrderStatusRefunded:
			stats.RefundedOrders++
		}
	}
	return stats, nil
}

type fakeContacts struct {
	mu       sync.Mutex
	seq      int
	contacts map[string]domain.Contact
}

func newFakeContacts() *fakeContacts {
	return &fakeContacts{contacts: make(map[string]domain.Contact)}
}

func (f *fakeContacts) Create(_ context.Context, contact *domain.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	contact.ID = fmt.Sprintf("contact-%d", f.seq)
	contact.CreatedAt = time.Now()
	contact.UpdatedAt = contact.CreatedAt
	f.contacts[contact.ID] = *contact
	return nil
}

func (f *fakeContacts) Update(_ context.Context, contact *domain.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.contacts[contact.ID]; !ok {
		return pgx.ErrNoRows
	}
	f.contacts[contact.ID] = *contact
	return nil
}

func (f *fakeContacts) GetByID(_ context.Context, id string) (*domain.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	contact, ok := f.contacts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &contact, nil
}

func (f *fakeContacts) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.contacts[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.contacts, id)
	return nil
}

func (f *fakeContacts) ListRecent(_ context.Context, limit int) ([]domain.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Contact, 0, len(f.contacts))
	for _, contact := range f.contacts {
		out = append(out, contact)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeContacts) Stats(_ context.Context) (domain.ContactStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stats domain.ContactStats
	for _, contact := range f.contacts {
		stats.TotalCount++
		if !contact.IsRead {
			stats.UnreadCount++
		}
		if !contact.IsReplied {
			stats.UnrepliedCount++
		}
	}
	return stats, nil
}

type fakeConversations struct {
	mu    sync.Mutex
	seq   int
	convs map[string]*domain.Conversation
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{convs: make(map[string]*domain.Conversation)}
}

func (f *fakeConversations) Create(_ context.Context, conv *domain.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	conv.ID = fmt.Sprintf("conv-%d", f.seq)
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = conv.CreatedAt
	stored := *conv
	f.convs[conv.ID] = &stored
	return nil
}

func (f *fakeConversations) Update(_ context.Context, conv *domain.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.convs[conv.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.AssignedStaffID = conv.AssignedStaffID
	stored.Subject = conv.Subject
	stored.Status = conv.Status
	return nil
}

func (f *fakeConversations) GetByID(_ context.Context, id string) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.convs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	conv := *stored
	return &conv, nil
}

func (f *fakeConversations) FindOpenByCustomer(_ context.Context, customerID string) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stored := range f.convs {
		if stored.CustomerID == customerID && stored.Status == domain.ConversationStatusOpen {
			conv := *stored
			return &conv, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeConversations) ListRecent(_ context.Context, limit int) ([]domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Conversation, 0, len(f.convs))
	for _, stored := range f.convs {
		out = append(out, *stored)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeConversations) mutate(id string, fn func(*domain.Conversation)) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.convs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	fn(stored)
	conv := *stored
	return &conv, nil
}

func (f *fakeConversations) incrementUnread(id string, side domain.UnreadSide, at time.Time) (*domain.Conversation, error) {
	return f.mutate(id, func(c *domain.Conversation) {
		if side == domain.UnreadSideStaff {
			c.UnreadStaffCount++
		} else {
			c.UnreadUserCount++
		}
		c.LastMessageAt = &at
	})
}

func (f *fakeConversations) DecrementUnread(_ context.Context, id string, side domain.UnreadSide) (*domain.Conversation, error) {
	return f.mutate(id, func(c *domain.Conversation) {
		counter := &c.UnreadUserCount
		if side == domain.UnreadSideStaff {
			counter = &c.UnreadStaffCount
		}
		if *counter > 0 {
			*counter--
		}
	})
}

func (f *fakeConversations) ResetUnread(_ context.Context, id string, side domain.UnreadSide) (*domain.Conversation, error) {
	return f.mutate(id, func(c *domain.Conversation) {
		if side == domain.UnreadSideStaff {
			c.UnreadStaffCount = 0
		} else {
			c.UnreadUserCount = 0
		}
	})
}

func (f *fakeConversations) Stats(_ context.Context) (domain.InboxStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stats domain.InboxStats
	for _, c := range f.convs {
		stats.TotalConversations++
		switch c.Status {
		case domain.ConversationStatusOpen:
			stats.OpenConversations++
		case domain.ConversationStatusPending:
			stats.PendingConversations++
		}
		if c.UnreadStaffCount > 0 {
			stats.UnreadConversations++
		}
		stats.TotalUnread += int64(c.UnreadStaffCount)
	}
	return stats, nil
}

// fakeMessages shares the conversation store so Create can commit the
// message and its counter together, or neither when failUnread is set.
type fakeMessages struct {
	mu         sync.Mutex
	seq        int
	msgs       []*domain.Message
	convs      *fakeConversations
	failUnread error
}

func (f *fakeMessages) Create(_ context.Context, msg *domain.Message, recipient domain.UnreadSide) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUnread != nil {
		return nil, f.failUnread
	}
	created := time.Now()
	conv, err := f.convs.incrementUnread(msg.ConversationID, recipient, created)
	if err != nil {
		return nil, err
	}
	f.seq++
	msg.ID = fmt.Sprintf("msg-%d", f.seq)
	msg.CreatedAt = created
	stored := *msg
	f.msgs = append(f.msgs, &stored)
	return conv, nil
}

func (f *fakeMessages) GetByID(_ context.Context, id string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.ID == id {
			msg := *m
			return &msg, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeMessages) ListByConversation(_ context.Context, conversationID string, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Message
	for _, m := range f.msgs {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeMessages) MarkReadFromSide(_ context.Context, conversationID string, senderIsStaff bool, at time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, m := range f.msgs {
		if m.ConversationID == conversationID && m.SenderIsStaff == senderIsStaff && !m.IsRead {
			m.IsRead = true
			m.ReadAt = &at
			m.DeliveryStatus = domain.DeliveryStatusRead
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (f *fakeMessages) MarkRead(_ context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.ID == id {
			if m.IsRead {
				return false, nil
			}
			m.IsRead = true
			m.ReadAt = &at
			m.DeliveryStatus = domain.DeliveryStatusRead
			return true, nil
		}
	}
	return false, pgx.ErrNoRows
}

type fakeParticipants struct {
	mu    sync.Mutex
	users map[string]*domain.User
	rows  map[string]*domain.Participant
}

func newFakeParticipants(users ...*domain.User) *fakeParticipants {
	f := &fakeParticipants{users: make(map[string]*domain.User), rows: make(map[string]*domain.Participant)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeParticipants) SetPresence(_ context.Context, conversationID, userID string, online bool, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := conversationID + "|" + userID
	row, ok := f.rows[key]
	if !ok {
		user := f.users[userID]
		row = &domain.Participant{
			ConversationID: conversationID,
			UserID:         userID,
			UserName:       user.DisplayName(),
			IsStaff:        user.IsAdmin(),
			IsActive:       true,
			JoinedAt:       at,
		}
		f.rows[key] = row
	}
	row.IsOnline = online
	row.LastSeenAt = &at
	return nil
}

func (f *fakeParticipants) SetPresenceForUser(_ context.Context, userID string, online bool, at time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, row := range f.rows {
		if row.UserID == userID && row.IsActive {
			row.IsOnline = online
			row.LastSeenAt = &at
			ids = append(ids, row.ConversationID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeParticipants) ListOnline(_ context.Context, conversationID string) ([]domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Participant
	for _, row := range f.rows {
		if row.ConversationID == conversationID && row.IsOnline {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeParticipants) ListOnlineUsers(_ context.Context) ([]domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	var out []domain.Participant
	for _, row := range f.rows {
		if row.IsOnline && !seen[row.UserID] {
			seen[row.UserID] = true
			out = append(out, *row)
		}
	}
	return out, nil
}

type fakeUsers struct {
	mu    sync.Mutex
	seq   int
	users map[string]*domain.User
}

func newFakeUsers(users ...*domain.User) *fakeUsers {
	f := &fakeUsers{users: make(map[string]*domain.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	user.ID = fmt.Sprintf("user-%d", f.seq)
	f.users[user.ID] = user
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.users[id]; ok {
		return user, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) ListActiveStaff(_ context.Context) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.User
	for _, user := range f.users {
		if user.IsActive && user.IsAdmin() {
			out = append(out, *user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return nil, pgx.ErrNoRows
}
