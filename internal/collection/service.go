// Package collection implements the archive's collection domain: membership
// roles, the two-level collection hierarchy, approval-gated content, and
// challenge attachments.
package collection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"archive/api/internal/config"
	"archive/api/internal/queue"
	"archive/api/internal/role"
	"archive/api/internal/search"
	"archive/api/internal/store"
	"archive/api/internal/util"
)

type dataStore interface {
	CreateCollection(context.Context, store.Collection, store.CollectionPreference, store.CollectionProfile, store.CollectionParticipant) error
	GetCollection(context.Context, string) (store.Collection, error)
	FindCollectionByName(context.Context, string) (store.Collection, error)
	UpdateCollection(context.Context, store.Collection) error
	DeleteCollection(context.Context, string) error
	ListChildren(context.Context, string) ([]store.Collection, error)
	ListTopLevel(context.Context, store.CollectionFilter) ([]store.Collection, error)
	GetPreference(context.Context, string) (store.CollectionPreference, error)
	UpdatePreference(context.Context, store.CollectionPreference) error
	GetProfile(context.Context, string) (store.CollectionProfile, error)
	UpdateProfile(context.Context, store.CollectionProfile) error
	InsertParticipant(context.Context, store.CollectionParticipant) error
	GetParticipant(context.Context, string) (store.CollectionParticipant, error)
	GetParticipantByPseud(context.Context, string, string) (store.CollectionParticipant, error)
	UpdateParticipantRole(context.Context, string, string) error
	ReassignParticipantPseud(context.Context, string, string) error
	DeleteParticipant(context.Context, string) error
	ListParticipants(context.Context, string) ([]store.CollectionParticipant, error)
	GetPseud(context.Context, string) (store.Pseud, error)
	GetWork(context.Context, string) (store.Work, error)
	GetBookmark(context.Context, string) (store.Bookmark, error)
	ListPseudsForUser(context.Context, string) ([]store.Pseud, error)
	InsertItem(context.Context, store.CollectionItem) error
	GetItem(context.Context, string) (store.CollectionItem, error)
	UpdateItemApproval(context.Context, string, string, string) error
	ListItems(context.Context, string) ([]store.CollectionItem, error)
	ListApprovedItems(context.Context, string, string) ([]store.CollectionItem, error)
	CountApprovedItems(context.Context, string, string) (int, error)
	RevealItems(context.Context, string) (int64, error)
	RevealItemAuthors(context.Context, string) (int64, error)
	ListApprovedItemContacts(context.Context, string) ([]store.ItemContact, error)
	ListFandoms(context.Context, []string) ([]store.Fandom, error)
	DeleteChallengeRecords(context.Context, string) error
	Ping(ctx context.Context) error
}

type searchIndex interface {
	IndexCollection(rec search.Record)
	DeleteCollection(id string)
}

type jobQueue interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

type mailer interface {
	IsConfigured() bool
	SendCollectionNotification(to []string, subject, message, collectionTitle string) error
	SendRevealNotification(to, itemTitle, collectionTitle string) error
	SendAuthorRevealNotification(to, itemTitle, collectionTitle string) error
}

// Service exposes every mutating and aggregate operation over collections.
// Mutating operations take the acting user explicitly; nothing reads an
// ambient current user.
type Service struct {
	cfg    config.Config
	store  dataStore
	search searchIndex
	queue  jobQueue
	mail   mailer
}

func New(cfg config.Config, dataStore dataStore, search searchIndex, jobs jobQueue, mail mailer) *Service {
	return &Service{
		cfg:    cfg,
		store:  dataStore,
		search: search,
		queue:  jobs,
		mail:   mail,
	}
}

// CreateCollectionInput carries everything needed to create a collection.
// OwnerPseudID may be blank only when the collection is created under a
// parent that already has owners.
type CreateCollectionInput struct {
	Name           string
	Title          string
	Description    string
	Email          string
	HeaderImageURL string
	ParentName     string
	OwnerPseudID   string
	Closed         bool
	Moderated      bool
	Unrevealed     bool
	Anonymous      bool

	AssignmentNotification string
	GiftNotification       string
}

// CreateCollection validates the input and persists the collection together
// with its preference, profile, and initial owner in one transaction.
func (s *Service) CreateCollection(ctx context.Context, actor store.User, in CreateCollectionInput) (store.Collection, error) {
	messages := s.validateFields(in.Name, in.Title, in.Description, in.Email, in.HeaderImageURL)

	if taken, err := s.nameTaken(ctx, in.Name, ""); err != nil {
		return store.Collection{}, err
	} else if taken {
		messages = append(messages, "Sorry, that name is already taken. Try again, please!")
	}

	var parent *store.Collection
	if in.ParentName != "" {
		resolved, err := s.resolveParent(ctx, actor, in.ParentName)
		if err != nil {
			return store.Collection{}, err
		}
		parent = resolved
	}

	if in.OwnerPseudID == "" {
		parentHasOwner := false
		if parent != nil {
			owners, err := s.AllOwners(ctx, *parent)
			if err != nil {
				return store.Collection{}, err
			}
			parentHasOwner = len(owners) > 0
		}
		if !parentHasOwner {
			messages = append(messages, "Collection has no valid owners.")
		}
	}

	if len(messages) > 0 {
		return store.Collection{}, validationError(messages...)
	}

	col := store.Collection{
		ID:             util.NewID("col"),
		Name:           in.Name,
		Title:          in.Title,
		Description:    in.Description,
		Email:          in.Email,
		HeaderImageURL: in.HeaderImageURL,
	}
	if parent != nil {
		col.ParentID = parent.ID
	}
	pref := store.CollectionPreference{
		CollectionID: col.ID,
		Closed:       in.Closed,
		Moderated:    in.Moderated,
		Unrevealed:   in.Unrevealed,
		Anonymous:    in.Anonymous,
	}
	profile := store.CollectionProfile{
		CollectionID:           col.ID,
		AssignmentNotification: in.AssignmentNotification,
		GiftNotification:       in.GiftNotification,
	}
	var owner store.CollectionParticipant
	if in.OwnerPseudID != "" {
		owner = store.CollectionParticipant{
			ID:           util.NewID("ptc"),
			CollectionID: col.ID,
			PseudID:      in.OwnerPseudID,
			Role:         string(role.Owner),
		}
	}

	if err := s.store.CreateCollection(ctx, col, pref, profile, owner); err != nil {
		if store.IsUniqueViolation(err) {
			return store.Collection{}, validationError("Sorry, that name is already taken. Try again, please!")
		}
		return store.Collection{}, fmt.Errorf("create collection: %w", err)
	}

	s.reindex(ctx, col)
	return col, nil
}

// UpdateCollection saves new attributes for a collection. The actor must
// maintain it. Structural invariants are re-checked against the new state,
// and the challenge cleanup runs after the save.
func (s *Service) UpdateCollection(ctx context.Context, actor store.User, col store.Collection) (store.Collection, error) {
	existing, err := s.store.GetCollection(ctx, col.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Collection{}, notFoundError("collection not found")
		}
		return store.Collection{}, fmt.Errorf("load collection: %w", err)
	}

	if err := s.requireMaintainer(ctx, existing, actor); err != nil {
		return store.Collection{}, err
	}

	messages := s.validateFields(col.Name, col.Title, col.Description, col.Email, col.HeaderImageURL)
	if col.Name != existing.Name {
		if taken, err := s.nameTaken(ctx, col.Name, col.ID); err != nil {
			return store.Collection{}, err
		} else if taken {
			messages = append(messages, "Sorry, that name is already taken. Try again, please!")
		}
	}
	messages = append(messages, s.validateStructure(ctx, col)...)

	// Moving under a new parent takes the parent maintainers' consent, the
	// same rule resolveParent applies on create.
	if col.ParentID != "" && col.ParentID != existing.ParentID {
		parent, err := s.store.GetCollection(ctx, col.ParentID)
		if err == nil {
			isMaintainer, err := s.UserIsMaintainer(ctx, parent, actor)
			if err != nil {
				return store.Collection{}, err
			}
			if !isMaintainer {
				messages = append(messages, fmt.Sprintf("You don't have permission to add subcollections to %s.", parent.Name))
			}
		}
	}

	if len(messages) > 0 {
		return store.Collection{}, validationError(messages...)
	}

	if err := s.saveCollection(ctx, col); err != nil {
		return store.Collection{}, err
	}
	return col, nil
}

// DestroyCollection removes a collection and everything it owns. Only an
// owner may do this.
func (s *Service) DestroyCollection(ctx context.Context, actor store.User, collectionID string) error {
	col, err := s.store.GetCollection(ctx, collectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundError("collection not found")
		}
		return fmt.Errorf("load collection: %w", err)
	}

	isOwner, err := s.UserIsOwner(ctx, col, actor)
	if err != nil {
		return err
	}
	if !isOwner {
		return permissionError("only an owner may delete a collection")
	}

	if err := s.store.DeleteCollection(ctx, collectionID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteCollection(collectionID)
	}
	return nil
}

// GetCollection loads a collection by id.
func (s *Service) GetCollection(ctx context.Context, collectionID string) (store.Collection, error) {
	col, err := s.store.GetCollection(ctx, collectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Collection{}, notFoundError("collection not found")
		}
		return store.Collection{}, fmt.Errorf("load collection: %w", err)
	}
	return col, nil
}

// FindByName resolves a collection by its url-safe name.
func (s *Service) FindByName(ctx context.Context, name string) (store.Collection, error) {
	col, err := s.store.FindCollectionByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Collection{}, notFoundError(fmt.Sprintf("We couldn't find a collection with name %s.", name))
		}
		return store.Collection{}, fmt.Errorf("find collection by name: %w", err)
	}
	return col, nil
}

// ListTopLevel lists top-level collections, optionally filtered by the
// closed/moderated preference flags and ordered by title or item count.
func (s *Service) ListTopLevel(ctx context.Context, filter store.CollectionFilter) ([]store.Collection, error) {
	return s.store.ListTopLevel(ctx, filter)
}

// SetIconURL records where a collection's icon now lives. The upload itself
// happens in the icon store; this only persists the pointer.
func (s *Service) SetIconURL(ctx context.Context, actor store.User, collectionID, iconURL string) (store.Collection, error) {
	col, err := s.GetCollection(ctx, collectionID)
	if err != nil {
		return store.Collection{}, err
	}
	if err := s.requireMaintainer(ctx, col, actor); err != nil {
		return store.Collection{}, err
	}
	col.IconURL = iconURL
	if err := s.saveCollection(ctx, col); err != nil {
		return store.Collection{}, err
	}
	return col, nil
}

// UpdatePreference saves new preference flags for a collection. The closed
// flag feeds the search index, so the record is refreshed after the save.
func (s *Service) UpdatePreference(ctx context.Context, actor store.User, pref store.CollectionPreference) error {
	col, err := s.GetCollection(ctx, pref.CollectionID)
	if err != nil {
		return err
	}
	if err := s.requireMaintainer(ctx, col, actor); err != nil {
		return err
	}
	if err := s.store.UpdatePreference(ctx, pref); err != nil {
		return fmt.Errorf("update collection preference: %w", err)
	}
	s.reindex(ctx, col)
	return nil
}

// UpdateProfile saves new notification templates for a collection.
func (s *Service) UpdateProfile(ctx context.Context, actor store.User, profile store.CollectionProfile) error {
	col, err := s.GetCollection(ctx, profile.CollectionID)
	if err != nil {
		return err
	}
	if err := s.requireMaintainer(ctx, col, actor); err != nil {
		return err
	}
	if err := s.store.UpdateProfile(ctx, profile); err != nil {
		return fmt.Errorf("update collection profile: %w", err)
	}
	return nil
}

// Preference loads a collection's preference flags.
func (s *Service) Preference(ctx context.Context, collectionID string) (store.CollectionPreference, error) {
	return s.store.GetPreference(ctx, collectionID)
}

// Profile loads a collection's notification templates without parent
// fallback; AssignmentNotification and GiftNotification apply it.
func (s *Service) Profile(ctx context.Context, collectionID string) (store.CollectionProfile, error) {
	return s.store.GetProfile(ctx, collectionID)
}

// Items returns every item association regardless of approval state, for
// moderation views.
func (s *Service) Items(ctx context.Context, collectionID string) ([]store.CollectionItem, error) {
	return s.store.ListItems(ctx, collectionID)
}

// ApprovedItems returns the items of the given kind that count as part of the
// collection: both approval statuses approved, and works publicly posted.
func (s *Service) ApprovedItems(ctx context.Context, collectionID, kind string) ([]store.CollectionItem, error) {
	return s.store.ListApprovedItems(ctx, collectionID, kind)
}

// ItemApproved is the dual-approval predicate on a single association.
// Posted-ness of works is enforced by the store queries, not here.
func ItemApproved(item store.CollectionItem) bool {
	return item.UserApprovalStatus == store.ApprovalApproved &&
		item.CollectionApprovalStatus == store.ApprovalApproved
}

// saveCollection persists the collection, then runs the cleanup that must
// follow every save: a collection without a challenge keeps no
// challenge-scoped children. Finally the search index is refreshed.
func (s *Service) saveCollection(ctx context.Context, col store.Collection) error {
	if err := s.store.UpdateCollection(ctx, col); err != nil {
		return err
	}
	if col.ChallengeKind == "" {
		if err := s.store.DeleteChallengeRecords(ctx, col.ID); err != nil {
			return err
		}
	}
	s.reindex(ctx, col)
	return nil
}

func (s *Service) reindex(ctx context.Context, col store.Collection) {
	if s.search == nil {
		return
	}
	rec := search.Record{
		ID:    col.ID,
		Name:  col.Name,
		Title: col.Title,
	}
	if works, err := s.AllApprovedWorksCount(ctx, col); err == nil {
		rec.Score += works
	}
	if bookmarks, err := s.AllApprovedBookmarksCount(ctx, col); err == nil {
		rec.Score += bookmarks
	}
	if pref, err := s.store.GetPreference(ctx, col.ID); err == nil {
		rec.Closed = pref.Closed
	}
	s.search.IndexCollection(rec)
}

func (s *Service) requireMaintainer(ctx context.Context, col store.Collection, actor store.User) error {
	isMaintainer, err := s.UserIsMaintainer(ctx, col, actor)
	if err != nil {
		return err
	}
	if !isMaintainer {
		return permissionError(fmt.Sprintf("you don't have permission to work on %s", col.Name))
	}
	return nil
}
