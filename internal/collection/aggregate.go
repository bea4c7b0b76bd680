package collection

import (
	"context"
	"fmt"

	"archive/api/internal/role"
	"archive/api/internal/store"
)

// Participant aggregation: roles cascade down from the parent, so a child
// collection's effective staff is its own participants merged with its
// parent's, deduplicated by pseud.

func (s *Service) participantsByRole(ctx context.Context, col store.Collection, keep func(role.Role) bool) ([]store.CollectionParticipant, error) {
	own, err := s.store.ListParticipants(ctx, col.ID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	merged := own
	if col.ParentID != "" {
		inherited, err := s.store.ListParticipants(ctx, col.ParentID)
		if err != nil {
			return nil, fmt.Errorf("list parent participants: %w", err)
		}
		merged = append(merged, inherited...)
	}

	seen := make(map[string]bool, len(merged))
	var out []store.CollectionParticipant
	for _, p := range merged {
		if !keep(role.Normalize(p.Role)) {
			continue
		}
		if seen[p.PseudID] {
			continue
		}
		seen[p.PseudID] = true
		out = append(out, p)
	}
	return out, nil
}

// AllOwners returns the collection's owners plus its parent's, one entry per
// pseud.
func (s *Service) AllOwners(ctx context.Context, col store.Collection) ([]store.CollectionParticipant, error) {
	return s.participantsByRole(ctx, col, role.Role.IsOwner)
}

// AllModerators returns the collection's moderators plus its parent's.
func (s *Service) AllModerators(ctx context.Context, col store.Collection) ([]store.CollectionParticipant, error) {
	return s.participantsByRole(ctx, col, role.Role.IsModerator)
}

// AllMembers returns plain members, own and inherited.
func (s *Service) AllMembers(ctx context.Context, col store.Collection) ([]store.CollectionParticipant, error) {
	return s.participantsByRole(ctx, col, func(r role.Role) bool { return r == role.Member })
}

// Maintainers returns everyone with owner or moderator authority over the
// collection, including inherited staff.
func (s *Service) Maintainers(ctx context.Context, col store.Collection) ([]store.CollectionParticipant, error) {
	return s.participantsByRole(ctx, col, role.Role.IsMaintainer)
}

// AllPostingParticipants returns everyone allowed to post to the collection.
func (s *Service) AllPostingParticipants(ctx context.Context, col store.Collection) ([]store.CollectionParticipant, error) {
	return s.participantsByRole(ctx, col, role.Role.IsPosting)
}

// AllParticipants returns every participant regardless of role, own and
// inherited, including pending ones.
func (s *Service) AllParticipants(ctx context.Context, col store.Collection) ([]store.CollectionParticipant, error) {
	return s.participantsByRole(ctx, col, func(role.Role) bool { return true })
}

// Content aggregation: a parent collection presents its own approved items
// merged with every child's, deduplicated per item.

func (s *Service) approvedAcrossChildren(ctx context.Context, col store.Collection, kind string) ([]store.CollectionItem, error) {
	items, err := s.store.ListApprovedItems(ctx, col.ID, kind)
	if err != nil {
		return nil, fmt.Errorf("list approved items: %w", err)
	}
	children, err := s.store.ListChildren(ctx, col.ID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	for _, child := range children {
		childItems, err := s.store.ListApprovedItems(ctx, child.ID, kind)
		if err != nil {
			return nil, fmt.Errorf("list approved items: %w", err)
		}
		items = append(items, childItems...)
	}

	seen := make(map[string]bool, len(items))
	var out []store.CollectionItem
	for _, item := range items {
		if seen[item.ItemID] {
			continue
		}
		seen[item.ItemID] = true
		out = append(out, item)
	}
	return out, nil
}

// AllApprovedWorks returns fully approved, posted works of the collection and
// all of its children, each work appearing once.
func (s *Service) AllApprovedWorks(ctx context.Context, col store.Collection) ([]store.CollectionItem, error) {
	return s.approvedAcrossChildren(ctx, col, store.ItemWork)
}

// AllApprovedBookmarks returns fully approved bookmarks of the collection and
// all of its children, each bookmark appearing once.
func (s *Service) AllApprovedBookmarks(ctx context.Context, col store.Collection) ([]store.CollectionItem, error) {
	return s.approvedAcrossChildren(ctx, col, store.ItemBookmark)
}

func (s *Service) approvedCountAcrossChildren(ctx context.Context, col store.Collection, kind string) (int, error) {
	total, err := s.store.CountApprovedItems(ctx, col.ID, kind)
	if err != nil {
		return 0, fmt.Errorf("count approved items: %w", err)
	}
	children, err := s.store.ListChildren(ctx, col.ID)
	if err != nil {
		return 0, fmt.Errorf("list children: %w", err)
	}
	for _, child := range children {
		n, err := s.store.CountApprovedItems(ctx, child.ID, kind)
		if err != nil {
			return 0, fmt.Errorf("count approved items: %w", err)
		}
		total += n
	}
	return total, nil
}

// AllApprovedWorksCount sums the collection's approved work count with each
// child's. A work in both the parent and a child counts twice; the summed
// count is cheap and the small overstatement is accepted.
func (s *Service) AllApprovedWorksCount(ctx context.Context, col store.Collection) (int, error) {
	return s.approvedCountAcrossChildren(ctx, col, store.ItemWork)
}

// AllApprovedBookmarksCount sums approved bookmark counts the same way as
// AllApprovedWorksCount.
func (s *Service) AllApprovedBookmarksCount(ctx context.Context, col store.Collection) (int, error) {
	return s.approvedCountAcrossChildren(ctx, col, store.ItemBookmark)
}

// AllFandoms returns the distinct fandoms of approved works in the
// collection and its children.
func (s *Service) AllFandoms(ctx context.Context, col store.Collection) ([]store.Fandom, error) {
	ids := []string{col.ID}
	children, err := s.store.ListChildren(ctx, col.ID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	for _, child := range children {
		ids = append(ids, child.ID)
	}
	return s.store.ListFandoms(ctx, ids)
}

// AllFandomsCount counts the distinct fandoms across the collection and its
// children.
func (s *Service) AllFandomsCount(ctx context.Context, col store.Collection) (int, error) {
	fandoms, err := s.AllFandoms(ctx, col)
	if err != nil {
		return 0, err
	}
	return len(fandoms), nil
}

// NotEmpty reports whether the collection holds any approved content or has
// at least one subcollection.
func (s *Service) NotEmpty(ctx context.Context, col store.Collection) (bool, error) {
	works, err := s.AllApprovedWorksCount(ctx, col)
	if err != nil {
		return false, err
	}
	if works > 0 {
		return true, nil
	}
	bookmarks, err := s.AllApprovedBookmarksCount(ctx, col)
	if err != nil {
		return false, err
	}
	if bookmarks > 0 {
		return true, nil
	}
	children, err := s.store.ListChildren(ctx, col.ID)
	if err != nil {
		return false, fmt.Errorf("list children: %w", err)
	}
	return len(children) > 0, nil
}

// Per-user predicates. A zero user never holds any role.

func (s *Service) userHasRole(ctx context.Context, col store.Collection, user store.User, keep func(role.Role) bool) (bool, error) {
	if user.ID == "" {
		return false, nil
	}
	participants, err := s.participantsByRole(ctx, col, keep)
	if err != nil {
		return false, err
	}
	pseuds, err := s.store.ListPseudsForUser(ctx, user.ID)
	if err != nil {
		return false, fmt.Errorf("list pseuds: %w", err)
	}
	owned := make(map[string]bool, len(pseuds))
	for _, p := range pseuds {
		owned[p.ID] = true
	}
	for _, participant := range participants {
		if owned[participant.PseudID] {
			return true, nil
		}
	}
	return false, nil
}

// UserIsOwner reports whether any of the user's pseuds owns the collection,
// directly or via the parent.
func (s *Service) UserIsOwner(ctx context.Context, col store.Collection, user store.User) (bool, error) {
	return s.userHasRole(ctx, col, user, role.Role.IsOwner)
}

// UserIsModerator reports whether any of the user's pseuds moderates the
// collection.
func (s *Service) UserIsModerator(ctx context.Context, col store.Collection, user store.User) (bool, error) {
	return s.userHasRole(ctx, col, user, role.Role.IsModerator)
}

// UserIsMaintainer reports whether the user owns or moderates the collection.
func (s *Service) UserIsMaintainer(ctx context.Context, col store.Collection, user store.User) (bool, error) {
	return s.userHasRole(ctx, col, user, role.Role.IsMaintainer)
}

// UserIsParticipant reports whether the user takes part in the collection in
// any role.
func (s *Service) UserIsParticipant(ctx context.Context, col store.Collection, user store.User) (bool, error) {
	return s.userHasRole(ctx, col, user, func(role.Role) bool { return true })
}

// UserIsPostingParticipant reports whether the user may post to the
// collection.
func (s *Service) UserIsPostingParticipant(ctx context.Context, col store.Collection, user store.User) (bool, error) {
	return s.userHasRole(ctx, col, user, role.Role.IsPosting)
}

// ParticipatingPseudsForUser returns the user's pseuds that take part in the
// collection, own or inherited.
func (s *Service) ParticipatingPseudsForUser(ctx context.Context, col store.Collection, user store.User) ([]store.Pseud, error) {
	if user.ID == "" {
		return nil, nil
	}
	participants, err := s.AllParticipants(ctx, col)
	if err != nil {
		return nil, err
	}
	participating := make(map[string]bool, len(participants))
	for _, p := range participants {
		participating[p.PseudID] = true
	}
	pseuds, err := s.store.ListPseudsForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list pseuds: %w", err)
	}
	var out []store.Pseud
	for _, p := range pseuds {
		if participating[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}
