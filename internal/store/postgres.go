package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// IsUniqueViolation reports whether err is a storage-level duplicate-key
// rejection. Membership uniqueness relies on this rather than a
// check-then-write in the application.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const collectionColumns = `c.id, c.name, c.title, c.description, c.email, c.header_image_url, c.icon_url, COALESCE(c.parent_id, ''), c.challenge_kind, c.challenge_id, c.created_at, c.updated_at`

func scanCollection(row interface{ Scan(...any) error }) (Collection, error) {
	var c Collection
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Title,
		&c.Description,
		&c.Email,
		&c.HeaderImageURL,
		&c.IconURL,
		&c.ParentID,
		&c.ChallengeKind,
		&c.ChallengeID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

// CreateCollection persists a collection together with its preference,
// profile, and initial owner participant in one transaction. There is no
// valid persisted collection without all three.
func (s *PostgresStore) CreateCollection(ctx context.Context, col Collection, pref CollectionPreference, profile CollectionProfile, owner CollectionParticipant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create collection: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO collections (id, name, title, description, email, header_image_url, icon_url, parent_id, challenge_kind, challenge_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)
	`, col.ID, col.Name, col.Title, col.Description, col.Email, col.HeaderImageURL, col.IconURL, col.ParentID, col.ChallengeKind, col.ChallengeID); err != nil {
		return fmt.Errorf("insert collection: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO collection_preferences (collection_id, closed, moderated, unrevealed, anonymous)
		VALUES ($1, $2, $3, $4, $5)
	`, col.ID, pref.Closed, pref.Moderated, pref.Unrevealed, pref.Anonymous); err != nil {
		return fmt.Errorf("insert collection preference: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO collection_profiles (collection_id, assignment_notification, gift_notification)
		VALUES ($1, $2, $3)
	`, col.ID, profile.AssignmentNotification, profile.GiftNotification); err != nil {
		return fmt.Errorf("insert collection profile: %w", err)
	}

	if owner.ID != "" {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO collection_participants (id, collection_id, pseud_id, participant_role)
			VALUES ($1, $2, $3, $4)
		`, owner.ID, col.ID, owner.PseudID, owner.Role); err != nil {
			return fmt.Errorf("insert owner participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create collection: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCollection(ctx context.Context, collectionID string) (Collection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+collectionColumns+`
		FROM collections c
		WHERE c.id=$1
	`, collectionID)
	return scanCollection(row)
}

// FindCollectionByName resolves a collection by its url-safe name,
// case-insensitively.
func (s *PostgresStore) FindCollectionByName(ctx context.Context, name string) (Collection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+collectionColumns+`
		FROM collections c
		WHERE LOWER(c.name)=LOWER($1)
	`, name)
	return scanCollection(row)
}

func (s *PostgresStore) UpdateCollection(ctx context.Context, col Collection) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE collections
		SET name=$2, title=$3, description=$4, email=$5, header_image_url=$6, icon_url=$7,
			parent_id=NULLIF($8, ''), challenge_kind=$9, challenge_id=$10, updated_at=NOW()
		WHERE id=$1
	`, col.ID, col.Name, col.Title, col.Description, col.Email, col.HeaderImageURL, col.IconURL, col.ParentID, col.ChallengeKind, col.ChallengeID)
	if err != nil {
		return fmt.Errorf("update collection: %w", err)
	}
	return nil
}

// DeleteCollection removes a collection. Preferences, profiles, items, and
// participants go with it via foreign keys; children are re-parented to
// top level.
func (s *PostgresStore) DeleteCollection(ctx context.Context, collectionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE id=$1`, collectionID)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListChildren(ctx context.Context, parentID string) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+collectionColumns+`
		FROM collections c
		WHERE c.parent_id=$1
		ORDER BY c.name ASC
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	items := make([]Collection, 0)
	for rows.Next() {
		item, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child collection: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate children: %w", err)
	}
	return items, nil
}

// ListTopLevel returns top-level collections matching the filter. Item-count
// ordering counts approved items across each collection and its children,
// summed rather than deduplicated.
func (s *PostgresStore) ListTopLevel(ctx context.Context, filter CollectionFilter) ([]Collection, error) {
	where := `c.parent_id IS NULL`
	args := []any{}
	argN := 1
	if filter.Closed != nil {
		where += fmt.Sprintf(" AND cp.closed=$%d", argN)
		args = append(args, *filter.Closed)
		argN++
	}
	if filter.Moderated != nil {
		where += fmt.Sprintf(" AND cp.moderated=$%d", argN)
		args = append(args, *filter.Moderated)
		argN++
	}
	if filter.Fandom != "" {
		where += fmt.Sprintf(` AND EXISTS (
			SELECT 1
			FROM collection_items fi
			JOIN works fw ON fw.id = fi.item_id AND fi.item_kind = 'work'
			JOIN work_fandoms fwf ON fwf.work_id = fw.id
			JOIN fandoms fd ON fd.id = fwf.fandom_id
			WHERE (fi.collection_id = c.id
				OR fi.collection_id IN (SELECT id FROM collections fc WHERE fc.parent_id = c.id))
			  AND fi.user_approval_status = 'approved'
			  AND fi.collection_approval_status = 'approved'
			  AND fw.posted
			  AND LOWER(fd.name) = LOWER($%d)
		)`, argN)
		args = append(args, filter.Fandom)
		argN++
	}

	orderBy := `c.title ASC`
	join := ``
	if filter.SortByItemCount {
		join = `
			LEFT JOIN collections child ON child.parent_id = c.id
			LEFT JOIN collection_items ci ON (ci.collection_id = child.id OR ci.collection_id = c.id)
				AND ci.user_approval_status = 'approved'
				AND ci.collection_approval_status = 'approved'`
		orderBy = `COUNT(DISTINCT ci.id) DESC, c.title ASC`
	}

	query := `
		SELECT ` + collectionColumns + `
		FROM collections c
		JOIN collection_preferences cp ON cp.collection_id = c.id` + join + `
		WHERE ` + where + `
		GROUP BY c.id, cp.collection_id
		ORDER BY ` + orderBy
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list top-level collections: %w", err)
	}
	defer rows.Close()

	items := make([]Collection, 0)
	for rows.Next() {
		item, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetPreference(ctx context.Context, collectionID string) (CollectionPreference, error) {
	var pref CollectionPreference
	err := s.db.QueryRowContext(ctx, `
		SELECT collection_id, closed, moderated, unrevealed, anonymous
		FROM collection_preferences
		WHERE collection_id=$1
	`, collectionID).Scan(&pref.CollectionID, &pref.Closed, &pref.Moderated, &pref.Unrevealed, &pref.Anonymous)
	if err != nil {
		return CollectionPreference{}, err
	}
	return pref, nil
}

func (s *PostgresStore) UpdatePreference(ctx context.Context, pref CollectionPreference) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE collection_preferences
		SET closed=$2, moderated=$3, unrevealed=$4, anonymous=$5
		WHERE collection_id=$1
	`, pref.CollectionID, pref.Closed, pref.Moderated, pref.Unrevealed, pref.Anonymous)
	if err != nil {
		return fmt.Errorf("update collection preference: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, collectionID string) (CollectionProfile, error) {
	var profile CollectionProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT collection_id, assignment_notification, gift_notification
		FROM collection_profiles
		WHERE collection_id=$1
	`, collectionID).Scan(&profile.CollectionID, &profile.AssignmentNotification, &profile.GiftNotification)
	if err != nil {
		return CollectionProfile{}, err
	}
	return profile, nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, profile CollectionProfile) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE collection_profiles
		SET assignment_notification=$2, gift_notification=$3
		WHERE collection_id=$1
	`, profile.CollectionID, profile.AssignmentNotification, profile.GiftNotification)
	if err != nil {
		return fmt.Errorf("update collection profile: %w", err)
	}
	return nil
}

const participantColumns = `p.id, p.collection_id, p.pseud_id, p.participant_role, p.created_at, ps.name, ps.user_id, u.email`

func scanParticipant(row interface{ Scan(...any) error }) (CollectionParticipant, error) {
	var p CollectionParticipant
	err := row.Scan(
		&p.ID,
		&p.CollectionID,
		&p.PseudID,
		&p.Role,
		&p.CreatedAt,
		&p.PseudName,
		&p.UserID,
		&p.UserEmail,
	)
	return p, err
}

// InsertParticipant creates a membership record. A duplicate (collection,
// pseud) pair fails with a unique violation; callers translate that with
// IsUniqueViolation.
func (s *PostgresStore) InsertParticipant(ctx context.Context, p CollectionParticipant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collection_participants (id, collection_id, pseud_id, participant_role)
		VALUES ($1, $2, $3, $4)
	`, p.ID, p.CollectionID, p.PseudID, p.Role)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetParticipant(ctx context.Context, participantID string) (CollectionParticipant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+participantColumns+`
		FROM collection_participants p
		JOIN pseuds ps ON ps.id = p.pseud_id
		JOIN users u ON u.id = ps.user_id
		WHERE p.id=$1
	`, participantID)
	return scanParticipant(row)
}

func (s *PostgresStore) GetParticipantByPseud(ctx context.Context, collectionID, pseudID string) (CollectionParticipant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+participantColumns+`
		FROM collection_participants p
		JOIN pseuds ps ON ps.id = p.pseud_id
		JOIN users u ON u.id = ps.user_id
		WHERE p.collection_id=$1 AND p.pseud_id=$2
	`, collectionID, pseudID)
	return scanParticipant(row)
}

func (s *PostgresStore) UpdateParticipantRole(ctx context.Context, participantID, participantRole string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE collection_participants SET participant_role=$2 WHERE id=$1
	`, participantID, participantRole)
	if err != nil {
		return fmt.Errorf("update participant role: %w", err)
	}
	return nil
}

// ReassignParticipantPseud moves every participant row from one pseud onto
// another. Rows that would collide with an existing participation of the new
// pseud are dropped instead of moved.
func (s *PostgresStore) ReassignParticipantPseud(ctx context.Context, oldPseudID, newPseudID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reassign participants: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM collection_participants cp
		WHERE cp.pseud_id = $1
		  AND EXISTS (
			SELECT 1 FROM collection_participants other
			WHERE other.collection_id = cp.collection_id AND other.pseud_id = $2
		  )
	`, oldPseudID, newPseudID)
	if err != nil {
		return fmt.Errorf("drop colliding participants: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE collection_participants SET pseud_id = $2 WHERE pseud_id = $1
	`, oldPseudID, newPseudID)
	if err != nil {
		return fmt.Errorf("reassign participant pseud: %w", err)
	}
	return tx.Commit()
}

func (s *PostgresStore) DeleteParticipant(ctx context.Context, participantID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM collection_participants WHERE id=$1`, participantID)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListParticipants(ctx context.Context, collectionID string) ([]CollectionParticipant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+participantColumns+`
		FROM collection_participants p
		JOIN pseuds ps ON ps.id = p.pseud_id
		JOIN users u ON u.id = ps.user_id
		WHERE p.collection_id=$1
		ORDER BY p.created_at ASC
	`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	items := make([]CollectionParticipant, 0)
	for rows.Next() {
		item, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, login, email FROM users WHERE id=$1
	`, userID).Scan(&user.ID, &user.Login, &user.Email)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetWork(ctx context.Context, workID string) (Work, error) {
	var work Work
	err := s.db.QueryRowContext(ctx, `
		SELECT id, pseud_id, title, posted FROM works WHERE id=$1
	`, workID).Scan(&work.ID, &work.PseudID, &work.Title, &work.Posted)
	if err != nil {
		return Work{}, err
	}
	return work, nil
}

func (s *PostgresStore) GetBookmark(ctx context.Context, bookmarkID string) (Bookmark, error) {
	var bookmark Bookmark
	err := s.db.QueryRowContext(ctx, `
		SELECT id, pseud_id, title FROM bookmarks WHERE id=$1
	`, bookmarkID).Scan(&bookmark.ID, &bookmark.PseudID, &bookmark.Title)
	if err != nil {
		return Bookmark{}, err
	}
	return bookmark, nil
}

func (s *PostgresStore) GetPseud(ctx context.Context, pseudID string) (Pseud, error) {
	var pseud Pseud
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name FROM pseuds WHERE id=$1
	`, pseudID).Scan(&pseud.ID, &pseud.UserID, &pseud.Name)
	if err != nil {
		return Pseud{}, err
	}
	return pseud, nil
}

func (s *PostgresStore) ListPseudsForUser(ctx context.Context, userID string) ([]Pseud, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name FROM pseuds WHERE user_id=$1 ORDER BY name ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list pseuds for user: %w", err)
	}
	defer rows.Close()

	items := make([]Pseud, 0)
	for rows.Next() {
		var item Pseud
		if err := rows.Scan(&item.ID, &item.UserID, &item.Name); err != nil {
			return nil, fmt.Errorf("scan pseud: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pseuds: %w", err)
	}
	return items, nil
}

const itemColumns = `ci.id, ci.collection_id, ci.item_kind, ci.item_id, ci.user_approval_status, ci.collection_approval_status, ci.unrevealed, ci.anonymous, ci.created_at, COALESCE(w.title, b.title, '')`

const itemJoins = `
	LEFT JOIN works w ON ci.item_kind = 'work' AND w.id = ci.item_id
	LEFT JOIN bookmarks b ON ci.item_kind = 'bookmark' AND b.id = ci.item_id`

// approvedPredicate is the dual-approval filter; works must also be publicly
// posted. The same predicate scopes the bulk reveal updates.
const approvedPredicate = `
	ci.user_approval_status = 'approved'
	AND ci.collection_approval_status = 'approved'
	AND (ci.item_kind <> 'work' OR w.posted)`

func scanItem(row interface{ Scan(...any) error }) (CollectionItem, error) {
	var item CollectionItem
	err := row.Scan(
		&item.ID,
		&item.CollectionID,
		&item.ItemKind,
		&item.ItemID,
		&item.UserApprovalStatus,
		&item.CollectionApprovalStatus,
		&item.Unrevealed,
		&item.Anonymous,
		&item.CreatedAt,
		&item.ItemTitle,
	)
	return item, err
}

func (s *PostgresStore) InsertItem(ctx context.Context, item CollectionItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collection_items (id, collection_id, item_kind, item_id, user_approval_status, collection_approval_status, unrevealed, anonymous)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.CollectionID, item.ItemKind, item.ItemID, item.UserApprovalStatus, item.CollectionApprovalStatus, item.Unrevealed, item.Anonymous)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert collection item: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetItem(ctx context.Context, itemID string) (CollectionItem, error) {
	return scanItem(s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM collection_items ci`+itemJoins+`
		WHERE ci.id=$1
	`, itemID))
}

func (s *PostgresStore) UpdateItemApproval(ctx context.Context, itemID, userStatus, collectionStatus string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE collection_items
		SET user_approval_status=$2, collection_approval_status=$3
		WHERE id=$1
	`, itemID, userStatus, collectionStatus)
	if err != nil {
		return fmt.Errorf("update item approval: %w", err)
	}
	return nil
}

// ListItems returns all items regardless of approval state, for moderation.
func (s *PostgresStore) ListItems(ctx context.Context, collectionID string) ([]CollectionItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM collection_items ci`+itemJoins+`
		WHERE ci.collection_id=$1
		ORDER BY ci.created_at ASC
	`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

func (s *PostgresStore) ListApprovedItems(ctx context.Context, collectionID, kind string) ([]CollectionItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM collection_items ci`+itemJoins+`
		WHERE ci.collection_id=$1
		  AND ci.item_kind=$2
		  AND `+approvedPredicate+`
		ORDER BY ci.created_at ASC
	`, collectionID, kind)
	if err != nil {
		return nil, fmt.Errorf("list approved items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

func collectItems(rows *sql.Rows) ([]CollectionItem, error) {
	items := make([]CollectionItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan collection item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collection items: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CountApprovedItems(ctx context.Context, collectionID, kind string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM collection_items ci`+itemJoins+`
		WHERE ci.collection_id=$1
		  AND ci.item_kind=$2
		  AND `+approvedPredicate+`
	`, collectionID, kind).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count approved items: %w", err)
	}
	return count, nil
}

// RevealItems clears the unrevealed flag on all currently-approved items in
// one statement, so concurrent approval changes cannot split the batch.
func (s *PostgresStore) RevealItems(ctx context.Context, collectionID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE collection_items ci
		SET unrevealed=FALSE
		WHERE ci.collection_id=$1
		  AND ci.user_approval_status = 'approved'
		  AND ci.collection_approval_status = 'approved'
		  AND (ci.item_kind <> 'work' OR EXISTS (SELECT 1 FROM works w WHERE w.id = ci.item_id AND w.posted))
	`, collectionID)
	if err != nil {
		return 0, fmt.Errorf("reveal items: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reveal items rows: %w", err)
	}
	return affected, nil
}

// RevealItemAuthors clears the anonymous flag on all currently-approved items.
func (s *PostgresStore) RevealItemAuthors(ctx context.Context, collectionID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE collection_items ci
		SET anonymous=FALSE
		WHERE ci.collection_id=$1
		  AND ci.user_approval_status = 'approved'
		  AND ci.collection_approval_status = 'approved'
		  AND (ci.item_kind <> 'work' OR EXISTS (SELECT 1 FROM works w WHERE w.id = ci.item_id AND w.posted))
	`, collectionID)
	if err != nil {
		return 0, fmt.Errorf("reveal item authors: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reveal item authors rows: %w", err)
	}
	return affected, nil
}

// ListApprovedItemContacts resolves every approved item to its contributor's
// email for notification delivery.
func (s *PostgresStore) ListApprovedItemContacts(ctx context.Context, collectionID string) ([]ItemContact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ci.item_kind, w.title, ps.name, u.email
		FROM collection_items ci
		JOIN works w ON w.id = ci.item_id
		JOIN pseuds ps ON ps.id = w.pseud_id
		JOIN users u ON u.id = ps.user_id
		WHERE ci.collection_id=$1 AND ci.item_kind='work'
		  AND ci.user_approval_status='approved' AND ci.collection_approval_status='approved'
		  AND w.posted
		UNION ALL
		SELECT ci.item_kind, b.title, ps.name, u.email
		FROM collection_items ci
		JOIN bookmarks b ON b.id = ci.item_id
		JOIN pseuds ps ON ps.id = b.pseud_id
		JOIN users u ON u.id = ps.user_id
		WHERE ci.collection_id=$1 AND ci.item_kind='bookmark'
		  AND ci.user_approval_status='approved' AND ci.collection_approval_status='approved'
	`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list approved item contacts: %w", err)
	}
	defer rows.Close()

	items := make([]ItemContact, 0)
	for rows.Next() {
		var item ItemContact
		if err := rows.Scan(&item.ItemKind, &item.ItemTitle, &item.PseudName, &item.Email); err != nil {
			return nil, fmt.Errorf("scan item contact: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate item contacts: %w", err)
	}
	return items, nil
}

// ListFandoms returns the distinct fandom tags across the approved works of
// the given collections.
func (s *PostgresStore) ListFandoms(ctx context.Context, collectionIDs []string) ([]Fandom, error) {
	if len(collectionIDs) == 0 {
		return []Fandom{}, nil
	}
	placeholders := ""
	args := make([]any, 0, len(collectionIDs))
	for i, id := range collectionIDs {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT f.id, f.name
		FROM fandoms f
		JOIN work_fandoms wf ON wf.fandom_id = f.id
		JOIN works w ON w.id = wf.work_id
		JOIN collection_items ci ON ci.item_kind = 'work' AND ci.item_id = w.id
		WHERE ci.collection_id IN (`+placeholders+`)
		  AND ci.user_approval_status='approved' AND ci.collection_approval_status='approved'
		  AND w.posted
		ORDER BY f.name ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list fandoms: %w", err)
	}
	defer rows.Close()

	items := make([]Fandom, 0)
	for rows.Next() {
		var item Fandom
		if err := rows.Scan(&item.ID, &item.Name); err != nil {
			return nil, fmt.Errorf("scan fandom: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fandoms: %w", err)
	}
	return items, nil
}

// DeleteChallengeRecords destroys every challenge-scoped child record for a
// collection in one transaction: assignments, potential matches, signups,
// prompts. Called after any save that leaves the collection without a
// challenge.
func (s *PostgresStore) DeleteChallengeRecords(ctx context.Context, collectionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin challenge cleanup: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"challenge_assignments", "potential_matches", "challenge_signups", "prompts"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE collection_id=$1`, collectionID); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit challenge cleanup: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
