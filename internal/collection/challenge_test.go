package collection

import (
	"context"
	"errors"
	"testing"

	"archive/api/internal/queue"
	"archive/api/internal/store"
)

func TestChallengePredicates(t *testing.T) {
	plain := store.Collection{ID: "col_1"}
	exchange := store.Collection{ID: "col_2", ChallengeKind: store.ChallengeGiftExchange, ChallengeID: "gex_1"}
	meme := store.Collection{ID: "col_3", ChallengeKind: store.ChallengePromptMeme, ChallengeID: "pme_1"}

	if IsChallenge(plain) || IsGiftExchange(plain) || IsPromptMeme(plain) {
		t.Error("plain collection should not report a challenge")
	}
	if !IsChallenge(exchange) || !IsGiftExchange(exchange) || IsPromptMeme(exchange) {
		t.Error("gift exchange predicates wrong")
	}
	if !IsChallenge(meme) || IsGiftExchange(meme) || !IsPromptMeme(meme) {
		t.Error("prompt meme predicates wrong")
	}
}

func TestSetChallenge(t *testing.T) {
	ctx := context.Background()
	owner := store.User{ID: "usr_owner"}
	col := store.Collection{ID: "col_1", Name: "yuletide"}

	t.Run("attaches and saves", func(t *testing.T) {
		st := ownerStore(col, owner, "psd_owner")
		var updated store.Collection
		st.updateCollectionFn = func(_ context.Context, c store.Collection) error {
			updated = c
			return nil
		}
		cleanups := 0
		st.deleteChallengeRecordsFn = func(context.Context, string) error {
			cleanups++
			return nil
		}
		svc, _, _, _ := newTestService(st)

		got, err := svc.SetChallenge(ctx, owner, "col_1", store.ChallengeGiftExchange, "gex_1")
		if err != nil {
			t.Fatalf("SetChallenge: %v", err)
		}
		if updated.ChallengeKind != store.ChallengeGiftExchange || updated.ChallengeID != "gex_1" {
			t.Errorf("updated = %+v", updated)
		}
		if !IsGiftExchange(got) {
			t.Errorf("got = %+v", got)
		}
		if cleanups != 0 {
			t.Errorf("cleanup ran %d times while attaching, want 0", cleanups)
		}
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		svc, _, _, _ := newTestService(ownerStore(col, owner, "psd_owner"))
		_, err := svc.SetChallenge(ctx, owner, "col_1", "Raffle", "raf_1")
		if !IsValidation(err) {
			t.Fatalf("err = %v, want validation error", err)
		}
	})
}

func TestDetachChallenge(t *testing.T) {
	ctx := context.Background()
	owner := store.User{ID: "usr_owner"}
	col := store.Collection{ID: "col_1", Name: "yuletide", ChallengeKind: store.ChallengeGiftExchange, ChallengeID: "gex_1"}

	st := ownerStore(col, owner, "psd_owner")
	var updated store.Collection
	st.updateCollectionFn = func(_ context.Context, c store.Collection) error {
		updated = c
		return nil
	}
	var cleaned []string
	st.deleteChallengeRecordsFn = func(_ context.Context, id string) error {
		cleaned = append(cleaned, id)
		return nil
	}
	svc, _, _, _ := newTestService(st)

	got, err := svc.DetachChallenge(ctx, owner, "col_1")
	if err != nil {
		t.Fatalf("DetachChallenge: %v", err)
	}
	if IsChallenge(got) || updated.ChallengeKind != "" || updated.ChallengeID != "" {
		t.Errorf("challenge not cleared: %+v", updated)
	}
	if len(cleaned) != 1 || cleaned[0] != "col_1" {
		t.Errorf("cleanup ran for %v, want [col_1]", cleaned)
	}
}

func TestReveal(t *testing.T) {
	ctx := context.Background()
	owner := store.User{ID: "usr_owner"}
	col := store.Collection{ID: "col_1", Name: "yuletide", Title: "Yuletide"}

	t.Run("bulk reveals and queues the fanout", func(t *testing.T) {
		st := ownerStore(col, owner, "psd_owner")
		st.getPreferenceFn = func(_ context.Context, id string) (store.CollectionPreference, error) {
			return store.CollectionPreference{CollectionID: id, Unrevealed: true, Anonymous: true}, nil
		}
		st.revealItemsFn = func(context.Context, string) (int64, error) { return 12, nil }
		var savedPref store.CollectionPreference
		st.updatePreferenceFn = func(_ context.Context, pref store.CollectionPreference) error {
			savedPref = pref
			return nil
		}
		svc, _, jobs, _ := newTestService(st)

		if err := svc.Reveal(ctx, owner, "col_1"); err != nil {
			t.Fatalf("Reveal: %v", err)
		}
		if savedPref.Unrevealed {
			t.Error("unrevealed flag should be cleared")
		}
		if !savedPref.Anonymous {
			t.Error("anonymous flag must survive a reveal")
		}
		if len(jobs.jobs) != 1 || jobs.jobs[0].Op != queue.OpRevealNotifications || jobs.jobs[0].CollectionID != "col_1" {
			t.Errorf("jobs = %+v", jobs.jobs)
		}
	})

	t.Run("no fanout when nothing was hidden", func(t *testing.T) {
		st := ownerStore(col, owner, "psd_owner")
		svc, _, jobs, _ := newTestService(st)
		if err := svc.Reveal(ctx, owner, "col_1"); err != nil {
			t.Fatalf("Reveal: %v", err)
		}
		if len(jobs.jobs) != 0 {
			t.Errorf("jobs = %+v, want none", jobs.jobs)
		}
	})

	t.Run("reveal survives a queue failure", func(t *testing.T) {
		st := ownerStore(col, owner, "psd_owner")
		st.revealItemsFn = func(context.Context, string) (int64, error) { return 3, nil }
		svc, _, jobs, _ := newTestService(st)
		jobs.enqueueFn = func(context.Context, queue.Job) error {
			return errors.New("redis gone")
		}
		if err := svc.Reveal(ctx, owner, "col_1"); err != nil {
			t.Fatalf("Reveal: %v", err)
		}
	})

	t.Run("author reveal clears anonymity only", func(t *testing.T) {
		st := ownerStore(col, owner, "psd_owner")
		st.getPreferenceFn = func(_ context.Context, id string) (store.CollectionPreference, error) {
			return store.CollectionPreference{CollectionID: id, Unrevealed: true, Anonymous: true}, nil
		}
		st.revealItemAuthorsFn = func(context.Context, string) (int64, error) { return 4, nil }
		var savedPref store.CollectionPreference
		st.updatePreferenceFn = func(_ context.Context, pref store.CollectionPreference) error {
			savedPref = pref
			return nil
		}
		svc, _, jobs, _ := newTestService(st)

		if err := svc.RevealAuthors(ctx, owner, "col_1"); err != nil {
			t.Fatalf("RevealAuthors: %v", err)
		}
		if savedPref.Anonymous {
			t.Error("anonymous flag should be cleared")
		}
		if !savedPref.Unrevealed {
			t.Error("unrevealed flag must survive an author reveal")
		}
		if len(jobs.jobs) != 1 || jobs.jobs[0].Op != queue.OpAuthorRevealNotifications {
			t.Errorf("jobs = %+v", jobs.jobs)
		}
	})

	t.Run("member may not reveal", func(t *testing.T) {
		st := ownerStore(col, owner, "psd_owner")
		svc, _, _, _ := newTestService(st)
		err := svc.Reveal(ctx, store.User{ID: "usr_member"}, "col_1")
		if !IsPermission(err) {
			t.Fatalf("err = %v, want permission error", err)
		}
	})
}

func TestSendRevealNotifications(t *testing.T) {
	ctx := context.Background()
	col := store.Collection{ID: "col_1", Name: "yuletide", Title: "Yuletide"}

	t.Run("mails every contact", func(t *testing.T) {
		st := &fakeStore{
			getCollectionFn: func(context.Context, string) (store.Collection, error) { return col, nil },
			listApprovedItemContactsFn: func(context.Context, string) ([]store.ItemContact, error) {
				return []store.ItemContact{
					{ItemKind: store.ItemWork, ItemTitle: "A Study in Winter", Email: "one@example.com"},
					{ItemKind: store.ItemWork, ItemTitle: "Second Snow", Email: "two@example.com"},
					{ItemKind: store.ItemWork, ItemTitle: "Orphaned", Email: ""},
				}, nil
			},
		}
		svc, _, _, mail := newTestService(st)
		if err := svc.SendRevealNotifications(ctx, "col_1"); err != nil {
			t.Fatalf("SendRevealNotifications: %v", err)
		}
		if len(mail.reveals) != 2 {
			t.Errorf("sent to %v, want 2 recipients", mail.reveals)
		}
	})

	t.Run("unconfigured mailer is a no-op", func(t *testing.T) {
		st := &fakeStore{
			getCollectionFn: func(context.Context, string) (store.Collection, error) { return col, nil },
		}
		svc, _, _, mail := newTestService(st)
		mail.configured = false
		if err := svc.SendAuthorRevealNotifications(ctx, "col_1"); err != nil {
			t.Fatalf("SendAuthorRevealNotifications: %v", err)
		}
		if len(mail.authorReveals) != 0 {
			t.Errorf("sent to %v, want none", mail.authorReveals)
		}
	})

	t.Run("reports partial failure", func(t *testing.T) {
		st := &fakeStore{
			getCollectionFn: func(context.Context, string) (store.Collection, error) { return col, nil },
			listApprovedItemContactsFn: func(context.Context, string) ([]store.ItemContact, error) {
				return []store.ItemContact{{ItemTitle: "A Study in Winter", Email: "one@example.com"}}, nil
			},
		}
		svc, _, _, mail := newTestService(st)
		mail.sendErr = errors.New("smtp down")
		if err := svc.SendRevealNotifications(ctx, "col_1"); err == nil {
			t.Fatal("expected an error when every send fails")
		}
	})
}
