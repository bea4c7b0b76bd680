package collection

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgconn"

	"archive/api/internal/config"
	"archive/api/internal/queue"
	"archive/api/internal/search"
	"archive/api/internal/store"
)

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505"}
}

type fakeStore struct {
	createCollectionFn         func(context.Context, store.Collection, store.CollectionPreference, store.CollectionProfile, store.CollectionParticipant) error
	getCollectionFn            func(context.Context, string) (store.Collection, error)
	findCollectionByNameFn     func(context.Context, string) (store.Collection, error)
	updateCollectionFn         func(context.Context, store.Collection) error
	deleteCollectionFn         func(context.Context, string) error
	listChildrenFn             func(context.Context, string) ([]store.Collection, error)
	listTopLevelFn             func(context.Context, store.CollectionFilter) ([]store.Collection, error)
	getPreferenceFn            func(context.Context, string) (store.CollectionPreference, error)
	updatePreferenceFn         func(context.Context, store.CollectionPreference) error
	getProfileFn               func(context.Context, string) (store.CollectionProfile, error)
	updateProfileFn            func(context.Context, store.CollectionProfile) error
	insertParticipantFn        func(context.Context, store.CollectionParticipant) error
	getParticipantFn           func(context.Context, string) (store.CollectionParticipant, error)
	getParticipantByPseudFn    func(context.Context, string, string) (store.CollectionParticipant, error)
	updateParticipantRoleFn    func(context.Context, string, string) error
	reassignParticipantFn      func(context.Context, string, string) error
	deleteParticipantFn        func(context.Context, string) error
	listParticipantsFn         func(context.Context, string) ([]store.CollectionParticipant, error)
	getPseudFn                 func(context.Context, string) (store.Pseud, error)
	getWorkFn                  func(context.Context, string) (store.Work, error)
	getBookmarkFn              func(context.Context, string) (store.Bookmark, error)
	listPseudsForUserFn        func(context.Context, string) ([]store.Pseud, error)
	insertItemFn               func(context.Context, store.CollectionItem) error
	getItemFn                  func(context.Context, string) (store.CollectionItem, error)
	updateItemApprovalFn       func(context.Context, string, string, string) error
	listItemsFn                func(context.Context, string) ([]store.CollectionItem, error)
	listApprovedItemsFn        func(context.Context, string, string) ([]store.CollectionItem, error)
	countApprovedItemsFn       func(context.Context, string, string) (int, error)
	revealItemsFn              func(context.Context, string) (int64, error)
	revealItemAuthorsFn        func(context.Context, string) (int64, error)
	listApprovedItemContactsFn func(context.Context, string) ([]store.ItemContact, error)
	listFandomsFn              func(context.Context, []string) ([]store.Fandom, error)
	deleteChallengeRecordsFn   func(context.Context, string) error
}

func (f *fakeStore) CreateCollection(ctx context.Context, col store.Collection, pref store.CollectionPreference, profile store.CollectionProfile, owner store.CollectionParticipant) error {
	if f.createCollectionFn != nil {
		return f.createCollectionFn(ctx, col, pref, profile, owner)
	}
	return nil
}
func (f *fakeStore) GetCollection(ctx context.Context, id string) (store.Collection, error) {
	if f.getCollectionFn != nil {
		return f.getCollectionFn(ctx, id)
	}
	return store.Collection{}, sql.ErrNoRows
}
func (f *fakeStore) FindCollectionByName(ctx context.Context, name string) (store.Collection, error) {
	if f.findCollectionByNameFn != nil {
		return f.findCollectionByNameFn(ctx, name)
	}
	return store.Collection{}, sql.ErrNoRows
}
func (f *fakeStore) UpdateCollection(ctx context.Context, col store.Collection) error {
	if f.updateCollectionFn != nil {
		return f.updateCollectionFn(ctx, col)
	}
	return nil
}
func (f *fakeStore) DeleteCollection(ctx context.Context, id string) error {
	if f.deleteCollectionFn != nil {
		return f.deleteCollectionFn(ctx, id)
	}
	return nil
}
func (f *fakeStore) ListChildren(ctx context.Context, parentID string) ([]store.Collection, error) {
	if f.listChildrenFn != nil {
		return f.listChildrenFn(ctx, parentID)
	}
	return nil, nil
}
func (f *fakeStore) ListTopLevel(ctx context.Context, filter store.CollectionFilter) ([]store.Collection, error) {
	if f.listTopLevelFn != nil {
		return f.listTopLevelFn(ctx, filter)
	}
	return nil, nil
}
func (f *fakeStore) GetPreference(ctx context.Context, id string) (store.CollectionPreference, error) {
	if f.getPreferenceFn != nil {
		return f.getPreferenceFn(ctx, id)
	}
	return store.CollectionPreference{CollectionID: id}, nil
}
func (f *fakeStore) UpdatePreference(ctx context.Context, pref store.CollectionPreference) error {
	if f.updatePreferenceFn != nil {
		return f.updatePreferenceFn(ctx, pref)
	}
	return nil
}
func (f *fakeStore) GetProfile(ctx context.Context, id string) (store.CollectionProfile, error) {
	if f.getProfileFn != nil {
		return f.getProfileFn(ctx, id)
	}
	return store.CollectionProfile{CollectionID: id}, nil
}
func (f *fakeStore) UpdateProfile(ctx context.Context, profile store.CollectionProfile) error {
	if f.updateProfileFn != nil {
		return f.updateProfileFn(ctx, profile)
	}
	return nil
}
func (f *fakeStore) InsertParticipant(ctx context.Context, p store.CollectionParticipant) error {
	if f.insertParticipantFn != nil {
		return f.insertParticipantFn(ctx, p)
	}
	return nil
}
func (f *fakeStore) GetParticipant(ctx context.Context, id string) (store.CollectionParticipant, error) {
	if f.getParticipantFn != nil {
		return f.getParticipantFn(ctx, id)
	}
	return store.CollectionParticipant{}, sql.ErrNoRows
}
func (f *fakeStore) GetParticipantByPseud(ctx context.Context, collectionID, pseudID string) (store.CollectionParticipant, error) {
	if f.getParticipantByPseudFn != nil {
		return f.getParticipantByPseudFn(ctx, collectionID, pseudID)
	}
	return store.CollectionParticipant{}, sql.ErrNoRows
}
func (f *fakeStore) UpdateParticipantRole(ctx context.Context, id, participantRole string) error {
	if f.updateParticipantRoleFn != nil {
		return f.updateParticipantRoleFn(ctx, id, participantRole)
	}
	return nil
}
func (f *fakeStore) ReassignParticipantPseud(ctx context.Context, oldPseudID, newPseudID string) error {
	if f.reassignParticipantFn != nil {
		return f.reassignParticipantFn(ctx, oldPseudID, newPseudID)
	}
	return nil
}
func (f *fakeStore) DeleteParticipant(ctx context.Context, id string) error {
	if f.deleteParticipantFn != nil {
		return f.deleteParticipantFn(ctx, id)
	}
	return nil
}
func (f *fakeStore) ListParticipants(ctx context.Context, collectionID string) ([]store.CollectionParticipant, error) {
	if f.listParticipantsFn != nil {
		return f.listParticipantsFn(ctx, collectionID)
	}
	return nil, nil
}
func (f *fakeStore) GetPseud(ctx context.Context, id string) (store.Pseud, error) {
	if f.getPseudFn != nil {
		return f.getPseudFn(ctx, id)
	}
	return store.Pseud{}, sql.ErrNoRows
}
func (f *fakeStore) GetWork(ctx context.Context, id string) (store.Work, error) {
	if f.getWorkFn != nil {
		return f.getWorkFn(ctx, id)
	}
	return store.Work{}, sql.ErrNoRows
}
func (f *fakeStore) GetBookmark(ctx context.Context, id string) (store.Bookmark, error) {
	if f.getBookmarkFn != nil {
		return f.getBookmarkFn(ctx, id)
	}
	return store.Bookmark{}, sql.ErrNoRows
}
func (f *fakeStore) ListPseudsForUser(ctx context.Context, userID string) ([]store.Pseud, error) {
	if f.listPseudsForUserFn != nil {
		return f.listPseudsForUserFn(ctx, userID)
	}
	return nil, nil
}
func (f *fakeStore) InsertItem(ctx context.Context, item store.CollectionItem) error {
	if f.insertItemFn != nil {
		return f.insertItemFn(ctx, item)
	}
	return nil
}
func (f *fakeStore) GetItem(ctx context.Context, id string) (store.CollectionItem, error) {
	if f.getItemFn != nil {
		return f.getItemFn(ctx, id)
	}
	return store.CollectionItem{}, sql.ErrNoRows
}
func (f *fakeStore) UpdateItemApproval(ctx context.Context, id, userStatus, collectionStatus string) error {
	if f.updateItemApprovalFn != nil {
		return f.updateItemApprovalFn(ctx, id, userStatus, collectionStatus)
	}
	return nil
}
func (f *fakeStore) ListItems(ctx context.Context, collectionID string) ([]store.CollectionItem, error) {
	if f.listItemsFn != nil {
		return f.listItemsFn(ctx, collectionID)
	}
	return nil, nil
}
func (f *fakeStore) ListApprovedItems(ctx context.Context, collectionID, kind string) ([]store.CollectionItem, error) {
	if f.listApprovedItemsFn != nil {
		return f.listApprovedItemsFn(ctx, collectionID, kind)
	}
	return nil, nil
}
func (f *fakeStore) CountApprovedItems(ctx context.Context, collectionID, kind string) (int, error) {
	if f.countApprovedItemsFn != nil {
		return f.countApprovedItemsFn(ctx, collectionID, kind)
	}
	return 0, nil
}
func (f *fakeStore) RevealItems(ctx context.Context, collectionID string) (int64, error) {
	if f.revealItemsFn != nil {
		return f.revealItemsFn(ctx, collectionID)
	}
	return 0, nil
}
func (f *fakeStore) RevealItemAuthors(ctx context.Context, collectionID string) (int64, error) {
	if f.revealItemAuthorsFn != nil {
		return f.revealItemAuthorsFn(ctx, collectionID)
	}
	return 0, nil
}
func (f *fakeStore) ListApprovedItemContacts(ctx context.Context, collectionID string) ([]store.ItemContact, error) {
	if f.listApprovedItemContactsFn != nil {
		return f.listApprovedItemContactsFn(ctx, collectionID)
	}
	return nil, nil
}
func (f *fakeStore) ListFandoms(ctx context.Context, collectionIDs []string) ([]store.Fandom, error) {
	if f.listFandomsFn != nil {
		return f.listFandomsFn(ctx, collectionIDs)
	}
	return nil, nil
}
func (f *fakeStore) DeleteChallengeRecords(ctx context.Context, collectionID string) error {
	if f.deleteChallengeRecordsFn != nil {
		return f.deleteChallengeRecordsFn(ctx, collectionID)
	}
	return nil
}
func (f *fakeStore) Ping(context.Context) error { return nil }

type fakeSearch struct {
	indexed []search.Record
	deleted []string
}

func (f *fakeSearch) IndexCollection(rec search.Record) { f.indexed = append(f.indexed, rec) }
func (f *fakeSearch) DeleteCollection(id string)        { f.deleted = append(f.deleted, id) }

type fakeQueue struct {
	jobs      []queue.Job
	enqueueFn func(context.Context, queue.Job) error
}

func (f *fakeQueue) Enqueue(ctx context.Context, job queue.Job) error {
	if f.enqueueFn != nil {
		return f.enqueueFn(ctx, job)
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeMailer struct {
	configured    bool
	notifications []string
	reveals       []string
	authorReveals []string
	sendErr       error
}

func (f *fakeMailer) IsConfigured() bool { return f.configured }
func (f *fakeMailer) SendCollectionNotification(to []string, subject, message, collectionTitle string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.notifications = append(f.notifications, to...)
	return nil
}
func (f *fakeMailer) SendRevealNotification(to, itemTitle, collectionTitle string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.reveals = append(f.reveals, to)
	return nil
}
func (f *fakeMailer) SendAuthorRevealNotification(to, itemTitle, collectionTitle string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.authorReveals = append(f.authorReveals, to)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		NameMin:    2,
		NameMax:    255,
		TitleMin:   1,
		TitleMax:   255,
		SummaryMax: 1250,
	}
}

func newTestService(st *fakeStore) (*Service, *fakeSearch, *fakeQueue, *fakeMailer) {
	idx := &fakeSearch{}
	jobs := &fakeQueue{}
	mail := &fakeMailer{configured: true}
	return New(testConfig(), st, idx, jobs, mail), idx, jobs, mail
}

// ownerStore builds a fakeStore where the given user owns the collection
// through one pseud. Tests layer their own overrides on top.
func ownerStore(col store.Collection, owner store.User, pseudID string) *fakeStore {
	return &fakeStore{
		getCollectionFn: func(_ context.Context, id string) (store.Collection, error) {
			if id == col.ID {
				return col, nil
			}
			return store.Collection{}, sql.ErrNoRows
		},
		listParticipantsFn: func(_ context.Context, id string) ([]store.CollectionParticipant, error) {
			if id == col.ID {
				return []store.CollectionParticipant{{ID: "ptc_owner", CollectionID: col.ID, PseudID: pseudID, Role: "Owner"}}, nil
			}
			return nil, nil
		},
		listPseudsForUserFn: func(_ context.Context, userID string) ([]store.Pseud, error) {
			if userID == owner.ID {
				return []store.Pseud{{ID: pseudID, UserID: owner.ID, Name: "owner"}}, nil
			}
			return nil, nil
		},
	}
}
