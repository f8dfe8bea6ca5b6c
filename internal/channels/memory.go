package channels

import (
	"context"
	"sync"
)

// MemoryLayer is an in-process group registry for single instance
// deployments. It also backs the local fan-out of RedisLayer.
type MemoryLayer struct {
	mu     sync.RWMutex
	groups map[string]map[string]Member
}

// NewMemoryLayer creates an empty registry.
func NewMemoryLayer() *MemoryLayer {
	return &MemoryLayer{groups: make(map[string]map[string]Member)}
}

// GroupAdd subscribes member to group. Adding twice is a no-op.
func (l *MemoryLayer) GroupAdd(_ context.Context, group string, member Member) error {
	if group == "" {
		return ErrInvalidGroup
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	members, ok := l.groups[group]
	if !ok {
		members = make(map[string]Member)
		l.groups[group] = members
	}
	if _, exists := members[member.ChannelName()]; !exists {
		groupMembers.Inc()
	}
	members[member.ChannelName()] = member
	return nil
}

// GroupDiscard removes the named channel from group.
func (l *MemoryLayer) GroupDiscard(_ context.Context, group string, channelName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	members, ok := l.groups[group]
	if !ok {
		return nil
	}
	if _, exists := members[channelName]; exists {
		delete(members, channelName)
		groupMembers.Dec()
	}
	if len(members) == 0 {
		delete(l.groups, group)
	}
	return nil
}

// GroupSend delivers msg to every current member of group.
func (l *MemoryLayer) GroupSend(_ context.Context, group string, msg Message) error {
	if group == "" {
		return ErrInvalidGroup
	}
	l.mu.RLock()
	members := make([]Member, 0, len(l.groups[group]))
	for _, m := range l.groups[group] {
		members = append(members, m)
	}
	l.mu.RUnlock()

	for _, m := range members {
		if m.Deliver(msg) {
			messagesDelivered.Inc()
		} else {
			messagesDropped.Inc()
		}
	}
	return nil
}

// Members returns the channel names currently joined to group.
func (l *MemoryLayer) Members(group string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.groups[group]))
	for name := range l.groups[group] {
		names = append(names, name)
	}
	return names
}
