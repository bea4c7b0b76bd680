package collection

import (
	"context"
	"testing"

	"archive/api/internal/store"
)

func TestMaintainersEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("own address wins", func(t *testing.T) {
		svc, _, _, _ := newTestService(&fakeStore{})
		emails, err := svc.MaintainersEmail(ctx, store.Collection{ID: "col_1", Email: "mods@example.com"})
		if err != nil {
			t.Fatalf("MaintainersEmail: %v", err)
		}
		if len(emails) != 1 || emails[0] != "mods@example.com" {
			t.Errorf("emails = %v", emails)
		}
	})

	t.Run("falls back to parent address", func(t *testing.T) {
		st := &fakeStore{
			getCollectionFn: func(_ context.Context, id string) (store.Collection, error) {
				return store.Collection{ID: id, Email: "parent-mods@example.com"}, nil
			},
		}
		svc, _, _, _ := newTestService(st)
		emails, err := svc.MaintainersEmail(ctx, store.Collection{ID: "col_child", ParentID: "col_parent"})
		if err != nil {
			t.Fatalf("MaintainersEmail: %v", err)
		}
		if len(emails) != 1 || emails[0] != "parent-mods@example.com" {
			t.Errorf("emails = %v", emails)
		}
	})

	t.Run("falls back to maintainer accounts deduplicated", func(t *testing.T) {
		st := &fakeStore{
			listParticipantsFn: func(context.Context, string) ([]store.CollectionParticipant, error) {
				return []store.CollectionParticipant{
					{ID: "ptc_1", PseudID: "psd_1", Role: "Owner", UserEmail: "alice@example.com"},
					{ID: "ptc_2", PseudID: "psd_2", Role: "Moderator", UserEmail: "alice@example.com"},
					{ID: "ptc_3", PseudID: "psd_3", Role: "Moderator", UserEmail: "bob@example.com"},
					{ID: "ptc_4", PseudID: "psd_4", Role: "Member", UserEmail: "carol@example.com"},
				}, nil
			},
		}
		svc, _, _, _ := newTestService(st)
		emails, err := svc.MaintainersEmail(ctx, store.Collection{ID: "col_1"})
		if err != nil {
			t.Fatalf("MaintainersEmail: %v", err)
		}
		if len(emails) != 2 || emails[0] != "alice@example.com" || emails[1] != "bob@example.com" {
			t.Errorf("emails = %v", emails)
		}
	})
}

func TestNotifyMaintainers(t *testing.T) {
	ctx := context.Background()
	col := store.Collection{ID: "col_1", Title: "Yuletide", Email: "mods@example.com"}

	t.Run("sends to the resolved addresses", func(t *testing.T) {
		svc, _, _, mail := newTestService(&fakeStore{})
		if err := svc.NotifyMaintainers(ctx, col, "New application", "Someone applied."); err != nil {
			t.Fatalf("NotifyMaintainers: %v", err)
		}
		if len(mail.notifications) != 1 || mail.notifications[0] != "mods@example.com" {
			t.Errorf("notifications = %v", mail.notifications)
		}
	})

	t.Run("silent with no addresses", func(t *testing.T) {
		svc, _, _, mail := newTestService(&fakeStore{})
		if err := svc.NotifyMaintainers(ctx, store.Collection{ID: "col_1"}, "s", "m"); err != nil {
			t.Fatalf("NotifyMaintainers: %v", err)
		}
		if len(mail.notifications) != 0 {
			t.Errorf("notifications = %v, want none", mail.notifications)
		}
	})
}

func TestProfileNotificationFallback(t *testing.T) {
	ctx := context.Background()
	child := store.Collection{ID: "col_child", ParentID: "col_parent"}

	st := &fakeStore{
		getProfileFn: func(_ context.Context, id string) (store.CollectionProfile, error) {
			switch id {
			case "col_parent":
				return store.CollectionProfile{
					CollectionID:           id,
					AssignmentNotification: "Assignments are out!",
					GiftNotification:       "You have a gift!",
				}, nil
			default:
				return store.CollectionProfile{
					CollectionID:     id,
					GiftNotification: "A gift just for this subcollection.",
				}, nil
			}
		},
	}
	svc, _, _, _ := newTestService(st)

	t.Run("blank template falls back to parent", func(t *testing.T) {
		got, err := svc.AssignmentNotification(ctx, child)
		if err != nil {
			t.Fatalf("AssignmentNotification: %v", err)
		}
		if got != "Assignments are out!" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("own template wins", func(t *testing.T) {
		got, err := svc.GiftNotification(ctx, child)
		if err != nil {
			t.Fatalf("GiftNotification: %v", err)
		}
		if got != "A gift just for this subcollection." {
			t.Errorf("got %q", got)
		}
	})

	t.Run("top level has no fallback", func(t *testing.T) {
		blank := &fakeStore{}
		svc, _, _, _ := newTestService(blank)
		got, err := svc.AssignmentNotification(ctx, store.Collection{ID: "col_top"})
		if err != nil {
			t.Fatalf("AssignmentNotification: %v", err)
		}
		if got != "" {
			t.Errorf("got %q, want empty", got)
		}
	})
}
