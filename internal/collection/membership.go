package collection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"archive/api/internal/role"
	"archive/api/internal/store"
	"archive/api/internal/util"
)

// JoinCollection adds a pseud to a collection. An open collection grants
// membership immediately; otherwise the participant waits with no role until
// a maintainer approves them.
func (s *Service) JoinCollection(ctx context.Context, col store.Collection, pseudID string) (store.CollectionParticipant, error) {
	if _, err := s.store.GetPseud(ctx, pseudID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.CollectionParticipant{}, notFoundError("pseud not found")
		}
		return store.CollectionParticipant{}, fmt.Errorf("load pseud: %w", err)
	}

	pref, err := s.store.GetPreference(ctx, col.ID)
	if err != nil {
		return store.CollectionParticipant{}, fmt.Errorf("load collection preference: %w", err)
	}

	participant := store.CollectionParticipant{
		ID:           util.NewID("ptc"),
		CollectionID: col.ID,
		PseudID:      pseudID,
		Role:         string(role.None),
	}
	if !pref.Closed {
		participant.Role = string(role.Member)
	}

	if err := s.store.InsertParticipant(ctx, participant); err != nil {
		if store.IsUniqueViolation(err) {
			return store.CollectionParticipant{}, validationError("This pseud is already part of that collection.")
		}
		return store.CollectionParticipant{}, fmt.Errorf("insert participant: %w", err)
	}
	return participant, nil
}

// ApproveMembership grants full membership to an invited or applied
// participant. Approving an existing member is a no-op; maintainer roles are
// never downgraded by approval.
func (s *Service) ApproveMembership(ctx context.Context, actor store.User, participantID string) (store.CollectionParticipant, error) {
	participant, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.CollectionParticipant{}, notFoundError("participant not found")
		}
		return store.CollectionParticipant{}, fmt.Errorf("load participant: %w", err)
	}

	col, err := s.store.GetCollection(ctx, participant.CollectionID)
	if err != nil {
		return store.CollectionParticipant{}, fmt.Errorf("load collection: %w", err)
	}
	if err := s.requireMaintainer(ctx, col, actor); err != nil {
		return store.CollectionParticipant{}, err
	}

	current := role.Normalize(participant.Role)
	if current.IsPosting() {
		return participant, nil
	}
	if err := s.store.UpdateParticipantRole(ctx, participant.ID, string(role.Member)); err != nil {
		return store.CollectionParticipant{}, fmt.Errorf("approve membership: %w", err)
	}
	participant.Role = string(role.Member)
	return participant, nil
}

// UserAllowedToPromote reports whether the actor may move a participant to
// the target role. Granting maintainer authority takes an owner; anything
// below that takes a maintainer.
func (s *Service) UserAllowedToPromote(ctx context.Context, col store.Collection, actor store.User, target role.Role) (bool, error) {
	if target.IsModerator() || target.IsOwner() {
		return s.UserIsOwner(ctx, col, actor)
	}
	return s.UserIsMaintainer(ctx, col, actor)
}

// PromoteParticipant changes a participant's role, enforcing the promotion
// permissions and the last-owner guard.
func (s *Service) PromoteParticipant(ctx context.Context, actor store.User, participantID string, target role.Role) (store.CollectionParticipant, error) {
	if !target.Valid() {
		return store.CollectionParticipant{}, validationError(fmt.Sprintf("%q is not a valid participant role.", target))
	}

	participant, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.CollectionParticipant{}, notFoundError("participant not found")
		}
		return store.CollectionParticipant{}, fmt.Errorf("load participant: %w", err)
	}
	col, err := s.store.GetCollection(ctx, participant.CollectionID)
	if err != nil {
		return store.CollectionParticipant{}, fmt.Errorf("load collection: %w", err)
	}

	allowed, err := s.UserAllowedToPromote(ctx, col, actor, target)
	if err != nil {
		return store.CollectionParticipant{}, err
	}
	if !allowed {
		return store.CollectionParticipant{}, permissionError("you don't have permission to change that participant's role")
	}

	if role.Normalize(participant.Role).IsOwner() && !target.IsOwner() {
		if err := s.ensureNotLastOwner(ctx, col, participant.ID); err != nil {
			return store.CollectionParticipant{}, err
		}
	}

	if err := s.store.UpdateParticipantRole(ctx, participant.ID, string(target)); err != nil {
		return store.CollectionParticipant{}, fmt.Errorf("update participant role: %w", err)
	}
	participant.Role = string(target)
	return participant, nil
}

// UserAllowedToDestroy reports whether the actor may remove a participant:
// maintainers may remove anyone, and users may always remove their own
// pseuds.
func (s *Service) UserAllowedToDestroy(ctx context.Context, col store.Collection, actor store.User, participant store.CollectionParticipant) (bool, error) {
	isMaintainer, err := s.UserIsMaintainer(ctx, col, actor)
	if err != nil {
		return false, err
	}
	if isMaintainer {
		return true, nil
	}
	pseud, err := s.store.GetPseud(ctx, participant.PseudID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("load pseud: %w", err)
	}
	return actor.ID != "" && pseud.UserID == actor.ID, nil
}

// RemoveParticipant deletes a participant, refusing to strip a collection of
// its last owner.
func (s *Service) RemoveParticipant(ctx context.Context, actor store.User, participantID string) error {
	participant, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundError("participant not found")
		}
		return fmt.Errorf("load participant: %w", err)
	}
	col, err := s.store.GetCollection(ctx, participant.CollectionID)
	if err != nil {
		return fmt.Errorf("load collection: %w", err)
	}

	allowed, err := s.UserAllowedToDestroy(ctx, col, actor, participant)
	if err != nil {
		return err
	}
	if !allowed {
		return permissionError("you don't have permission to remove that participant")
	}

	if role.Normalize(participant.Role).IsOwner() {
		if err := s.ensureNotLastOwner(ctx, col, participant.ID); err != nil {
			return err
		}
	}

	return s.store.DeleteParticipant(ctx, participantID)
}

// ChangeMembership moves every participant row from one of a user's pseuds
// onto another, across all collections the old pseud takes part in. Both
// pseuds must belong to the same user.
func (s *Service) ChangeMembership(ctx context.Context, actor store.User, oldPseudID, newPseudID string) error {
	oldPseud, err := s.store.GetPseud(ctx, oldPseudID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundError("pseud not found")
		}
		return fmt.Errorf("load pseud: %w", err)
	}
	newPseud, err := s.store.GetPseud(ctx, newPseudID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundError("pseud not found")
		}
		return fmt.Errorf("load pseud: %w", err)
	}
	if oldPseud.UserID != actor.ID || newPseud.UserID != actor.ID {
		return permissionError("you can only move memberships between your own pseuds")
	}
	return s.store.ReassignParticipantPseud(ctx, oldPseudID, newPseudID)
}

// ensureNotLastOwner checks the raw own and parent rows rather than the
// deduplicated owner aggregate: a pseud owning both the collection and its
// parent still covers ownership after one of its rows goes.
func (s *Service) ensureNotLastOwner(ctx context.Context, col store.Collection, participantID string) error {
	rows, err := s.store.ListParticipants(ctx, col.ID)
	if err != nil {
		return fmt.Errorf("list participants: %w", err)
	}
	if col.ParentID != "" {
		parentRows, err := s.store.ListParticipants(ctx, col.ParentID)
		if err != nil {
			return fmt.Errorf("list parent participants: %w", err)
		}
		rows = append(rows, parentRows...)
	}
	for _, p := range rows {
		if p.ID != participantID && role.Normalize(p.Role).IsOwner() {
			return nil
		}
	}
	return validationError("Collection has no valid owners.")
}
