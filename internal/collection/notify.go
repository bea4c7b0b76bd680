package collection

import (
	"context"
	"fmt"

	"archive/api/internal/store"
)

// MaintainersEmail resolves where mail for the collection's staff should go:
// the collection's own address, then the parent's, then the individual
// account addresses of every maintainer.
func (s *Service) MaintainersEmail(ctx context.Context, col store.Collection) ([]string, error) {
	if col.Email != "" {
		return []string{col.Email}, nil
	}
	if col.ParentID != "" {
		parent, err := s.store.GetCollection(ctx, col.ParentID)
		if err == nil && parent.Email != "" {
			return []string{parent.Email}, nil
		}
	}

	maintainers, err := s.Maintainers(ctx, col)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(maintainers))
	var emails []string
	for _, m := range maintainers {
		if m.UserEmail == "" || seen[m.UserEmail] {
			continue
		}
		seen[m.UserEmail] = true
		emails = append(emails, m.UserEmail)
	}
	return emails, nil
}

// NotifyMaintainers sends a message to the collection's staff using the
// resolved address chain.
func (s *Service) NotifyMaintainers(ctx context.Context, col store.Collection, subject, message string) error {
	if s.mail == nil || !s.mail.IsConfigured() {
		return nil
	}
	emails, err := s.MaintainersEmail(ctx, col)
	if err != nil {
		return err
	}
	if len(emails) == 0 {
		return nil
	}
	if err := s.mail.SendCollectionNotification(emails, subject, message, col.Title); err != nil {
		return fmt.Errorf("notify maintainers: %w", err)
	}
	return nil
}

// AssignmentNotification returns the collection's assignment notification
// text, falling back to the parent's profile when its own is blank.
func (s *Service) AssignmentNotification(ctx context.Context, col store.Collection) (string, error) {
	return s.profileText(ctx, col, func(p store.CollectionProfile) string { return p.AssignmentNotification })
}

// GiftNotification returns the collection's gift notification text, falling
// back to the parent's profile when its own is blank.
func (s *Service) GiftNotification(ctx context.Context, col store.Collection) (string, error) {
	return s.profileText(ctx, col, func(p store.CollectionProfile) string { return p.GiftNotification })
}

func (s *Service) profileText(ctx context.Context, col store.Collection, pick func(store.CollectionProfile) string) (string, error) {
	profile, err := s.store.GetProfile(ctx, col.ID)
	if err != nil {
		return "", fmt.Errorf("load collection profile: %w", err)
	}
	if text := pick(profile); text != "" {
		return text, nil
	}
	if col.ParentID == "" {
		return "", nil
	}
	parentProfile, err := s.store.GetProfile(ctx, col.ParentID)
	if err != nil {
		return "", fmt.Errorf("load parent collection profile: %w", err)
	}
	return pick(parentProfile), nil
}
