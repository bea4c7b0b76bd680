package collection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"archive/api/internal/store"
	"archive/api/internal/util"
)

// AddItem associates a work or bookmark with a collection. Each side of the
// dual approval is granted up front when the actor can speak for it: the
// collection side when the collection is unmoderated or the actor maintains
// it, the user side when the actor created the item. Whatever the actor
// can't grant stays unreviewed. The item inherits the collection's
// unrevealed and anonymous flags.
func (s *Service) AddItem(ctx context.Context, actor store.User, collectionID, kind, itemID string) (store.CollectionItem, error) {
	if kind != store.ItemWork && kind != store.ItemBookmark {
		return store.CollectionItem{}, validationError(fmt.Sprintf("%q is not a valid collection item type.", kind))
	}

	col, err := s.store.GetCollection(ctx, collectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.CollectionItem{}, notFoundError("collection not found")
		}
		return store.CollectionItem{}, fmt.Errorf("load collection: %w", err)
	}
	pref, err := s.store.GetPreference(ctx, collectionID)
	if err != nil {
		return store.CollectionItem{}, fmt.Errorf("load collection preference: %w", err)
	}

	creatorPseudID, err := s.itemCreatorPseud(ctx, kind, itemID)
	if err != nil {
		return store.CollectionItem{}, err
	}

	isMaintainer, err := s.UserIsMaintainer(ctx, col, actor)
	if err != nil {
		return store.CollectionItem{}, err
	}
	actorOwnsItem, err := s.userOwnsPseud(ctx, actor, creatorPseudID)
	if err != nil {
		return store.CollectionItem{}, err
	}

	item := store.CollectionItem{
		ID:                       util.NewID("itm"),
		CollectionID:             collectionID,
		ItemKind:                 kind,
		ItemID:                   itemID,
		UserApprovalStatus:       store.ApprovalUnreviewed,
		CollectionApprovalStatus: store.ApprovalUnreviewed,
		Unrevealed:               pref.Unrevealed,
		Anonymous:                pref.Anonymous,
	}
	if !pref.Moderated || isMaintainer {
		item.CollectionApprovalStatus = store.ApprovalApproved
	}
	if actorOwnsItem {
		item.UserApprovalStatus = store.ApprovalApproved
	}

	if err := s.store.InsertItem(ctx, item); err != nil {
		if store.IsUniqueViolation(err) {
			return store.CollectionItem{}, validationError("That item has already been added to this collection.")
		}
		return store.CollectionItem{}, fmt.Errorf("insert collection item: %w", err)
	}
	s.reindex(ctx, col)
	return item, nil
}

// SetCollectionApproval records the collection's decision on an item. Only a
// maintainer may decide for the collection.
func (s *Service) SetCollectionApproval(ctx context.Context, actor store.User, itemID, status string) (store.CollectionItem, error) {
	return s.setApproval(ctx, actor, itemID, status, false)
}

// SetUserApproval records the item creator's decision. Only a user who
// created the underlying work or bookmark may decide for it.
func (s *Service) SetUserApproval(ctx context.Context, actor store.User, itemID, status string) (store.CollectionItem, error) {
	return s.setApproval(ctx, actor, itemID, status, true)
}

func (s *Service) setApproval(ctx context.Context, actor store.User, itemID, status string, userSide bool) (store.CollectionItem, error) {
	if status != store.ApprovalApproved && status != store.ApprovalRejected {
		return store.CollectionItem{}, validationError(fmt.Sprintf("%q is not a valid approval status.", status))
	}

	item, err := s.findItem(ctx, itemID)
	if err != nil {
		return store.CollectionItem{}, err
	}
	col, err := s.store.GetCollection(ctx, item.CollectionID)
	if err != nil {
		return store.CollectionItem{}, fmt.Errorf("load collection: %w", err)
	}

	if userSide {
		creatorPseudID, err := s.itemCreatorPseud(ctx, item.ItemKind, item.ItemID)
		if err != nil {
			return store.CollectionItem{}, err
		}
		owns, err := s.userOwnsPseud(ctx, actor, creatorPseudID)
		if err != nil {
			return store.CollectionItem{}, err
		}
		if !owns {
			return store.CollectionItem{}, permissionError("only the item's creator may approve or reject it")
		}
		item.UserApprovalStatus = status
	} else {
		if err := s.requireMaintainer(ctx, col, actor); err != nil {
			return store.CollectionItem{}, err
		}
		item.CollectionApprovalStatus = status
	}

	if err := s.store.UpdateItemApproval(ctx, item.ID, item.UserApprovalStatus, item.CollectionApprovalStatus); err != nil {
		return store.CollectionItem{}, fmt.Errorf("update item approval: %w", err)
	}
	s.reindex(ctx, col)
	return item, nil
}

func (s *Service) findItem(ctx context.Context, itemID string) (store.CollectionItem, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.CollectionItem{}, notFoundError("collection item not found")
		}
		return store.CollectionItem{}, fmt.Errorf("load collection item: %w", err)
	}
	return item, nil
}

func (s *Service) itemCreatorPseud(ctx context.Context, kind, itemID string) (string, error) {
	switch kind {
	case store.ItemWork:
		work, err := s.store.GetWork(ctx, itemID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", notFoundError("work not found")
			}
			return "", fmt.Errorf("load work: %w", err)
		}
		return work.PseudID, nil
	default:
		bookmark, err := s.store.GetBookmark(ctx, itemID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", notFoundError("bookmark not found")
			}
			return "", fmt.Errorf("load bookmark: %w", err)
		}
		return bookmark.PseudID, nil
	}
}

func (s *Service) userOwnsPseud(ctx context.Context, user store.User, pseudID string) (bool, error) {
	if user.ID == "" || pseudID == "" {
		return false, nil
	}
	pseud, err := s.store.GetPseud(ctx, pseudID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("load pseud: %w", err)
	}
	return pseud.UserID == user.ID, nil
}
