package collection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"archive/api/internal/queue"
	"archive/api/internal/store"
)

// IsChallenge reports whether a challenge is attached to the collection.
func IsChallenge(col store.Collection) bool {
	return col.ChallengeKind != ""
}

// IsGiftExchange reports whether the attached challenge is a gift exchange.
func IsGiftExchange(col store.Collection) bool {
	return col.ChallengeKind == store.ChallengeGiftExchange
}

// IsPromptMeme reports whether the attached challenge is a prompt meme.
func IsPromptMeme(col store.Collection) bool {
	return col.ChallengeKind == store.ChallengePromptMeme
}

// SetChallenge attaches a challenge of the given kind to the collection.
func (s *Service) SetChallenge(ctx context.Context, actor store.User, collectionID, kind, challengeID string) (store.Collection, error) {
	if kind != store.ChallengeGiftExchange && kind != store.ChallengePromptMeme {
		return store.Collection{}, validationError(fmt.Sprintf("%q is not a valid challenge type.", kind))
	}

	col, err := s.store.GetCollection(ctx, collectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Collection{}, notFoundError("collection not found")
		}
		return store.Collection{}, fmt.Errorf("load collection: %w", err)
	}
	if err := s.requireMaintainer(ctx, col, actor); err != nil {
		return store.Collection{}, err
	}

	col.ChallengeKind = kind
	col.ChallengeID = challengeID
	if err := s.saveCollection(ctx, col); err != nil {
		return store.Collection{}, err
	}
	return col, nil
}

// DetachChallenge removes the challenge from the collection. The save runs
// the cleanup that deletes signups, assignments, potential matches, and
// prompts, so no challenge-scoped rows outlive the challenge.
func (s *Service) DetachChallenge(ctx context.Context, actor store.User, collectionID string) (store.Collection, error) {
	col, err := s.store.GetCollection(ctx, collectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Collection{}, notFoundError("collection not found")
		}
		return store.Collection{}, fmt.Errorf("load collection: %w", err)
	}
	if err := s.requireMaintainer(ctx, col, actor); err != nil {
		return store.Collection{}, err
	}

	col.ChallengeKind = ""
	col.ChallengeID = ""
	if err := s.saveCollection(ctx, col); err != nil {
		return store.Collection{}, err
	}
	return col, nil
}

// Reveal makes every approved item in the collection visible in one bulk
// update, clears the unrevealed preference, and queues the notification
// fanout for a worker.
func (s *Service) Reveal(ctx context.Context, actor store.User, collectionID string) error {
	return s.reveal(ctx, actor, collectionID, queue.OpRevealNotifications, func(ctx context.Context) (int64, error) {
		return s.store.RevealItems(ctx, collectionID)
	}, func(pref *store.CollectionPreference) {
		pref.Unrevealed = false
	})
}

// RevealAuthors lifts anonymity from every approved item in one bulk update,
// clears the anonymous preference, and queues the author notification
// fanout.
func (s *Service) RevealAuthors(ctx context.Context, actor store.User, collectionID string) error {
	return s.reveal(ctx, actor, collectionID, queue.OpAuthorRevealNotifications, func(ctx context.Context) (int64, error) {
		return s.store.RevealItemAuthors(ctx, collectionID)
	}, func(pref *store.CollectionPreference) {
		pref.Anonymous = false
	})
}

func (s *Service) reveal(ctx context.Context, actor store.User, collectionID string, op queue.Op, update func(context.Context) (int64, error), clear func(*store.CollectionPreference)) error {
	col, err := s.store.GetCollection(ctx, collectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundError("collection not found")
		}
		return fmt.Errorf("load collection: %w", err)
	}
	if err := s.requireMaintainer(ctx, col, actor); err != nil {
		return err
	}

	revealed, err := update(ctx)
	if err != nil {
		return fmt.Errorf("reveal collection items: %w", err)
	}

	pref, err := s.store.GetPreference(ctx, collectionID)
	if err != nil {
		return fmt.Errorf("load collection preference: %w", err)
	}
	clear(&pref)
	if err := s.store.UpdatePreference(ctx, pref); err != nil {
		return fmt.Errorf("update collection preference: %w", err)
	}

	if revealed == 0 || s.queue == nil {
		return nil
	}
	if err := s.queue.Enqueue(ctx, queue.Job{Op: op, CollectionID: collectionID}); err != nil {
		// The reveal itself stands; the fanout can be re-run by hand.
		log.Printf("enqueue %s for collection %s: %v", op, collectionID, err)
	}
	return nil
}

// SendRevealNotifications mails every creator of an approved item that the
// collection revealed their item. One bad address does not stop the rest.
func (s *Service) SendRevealNotifications(ctx context.Context, collectionID string) error {
	return s.sendItemNotifications(ctx, collectionID, func(contact store.ItemContact, title string) error {
		return s.mail.SendRevealNotification(contact.Email, contact.ItemTitle, title)
	})
}

// SendAuthorRevealNotifications mails every creator of an approved item that
// their name is now visible on it.
func (s *Service) SendAuthorRevealNotifications(ctx context.Context, collectionID string) error {
	return s.sendItemNotifications(ctx, collectionID, func(contact store.ItemContact, title string) error {
		return s.mail.SendAuthorRevealNotification(contact.Email, contact.ItemTitle, title)
	})
}

func (s *Service) sendItemNotifications(ctx context.Context, collectionID string, send func(store.ItemContact, string) error) error {
	if s.mail == nil || !s.mail.IsConfigured() {
		return nil
	}
	col, err := s.store.GetCollection(ctx, collectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundError("collection not found")
		}
		return fmt.Errorf("load collection: %w", err)
	}
	contacts, err := s.store.ListApprovedItemContacts(ctx, collectionID)
	if err != nil {
		return fmt.Errorf("list item contacts: %w", err)
	}
	var failed int
	for _, contact := range contacts {
		if contact.Email == "" {
			continue
		}
		if err := send(contact, col.Title); err != nil {
			failed++
			log.Printf("notify %s for collection %s: %v", contact.Email, collectionID, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("send notifications: %d of %d failed", failed, len(contacts))
	}
	return nil
}
