package service

import (
	"context"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-realtime/internal/domain"
)

// StaffDirectory lists the accounts new conversations may be routed to.
type StaffDirectory interface {
	ListActiveStaff(ctx context.Context) ([]domain.User, error)
}

// pickAssignee maps key onto one of staff. The same key keeps landing on
// the same person while the staff list is unchanged.
func pickAssignee(key string, staff []domain.User) *domain.User {
	if len(staff) == 0 {
		return nil
	}
	idx := xxhash.Sum64String(key) % uint64(len(staff))
	return &staff[idx]
}

// autoAssign fills AssignedStaffID on a conversation about to be created.
// Failing to find someone leaves it unassigned for staff to pick up.
func (s *ChatService) autoAssign(ctx context.Context, conv *domain.Conversation) {
	if s.staff == nil {
		return
	}
	staff, err := s.staff.ListActiveStaff(ctx)
	if err != nil {
		s.logger.Warn("auto-assign skipped", zap.Error(err))
		return
	}
	if assignee := pickAssignee(conv.CustomerID, staff); assignee != nil {
		id := assignee.ID
		conv.AssignedStaffID = &id
	}
}
