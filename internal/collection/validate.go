package collection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"archive/api/internal/store"
)

// namePattern mirrors the url-safe naming rule: letters, digits, and
// underscores only, beginning and ending with a letter or digit.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9]\w*[A-Za-z0-9]$`)

var headerImageExtensions = []string{".png", ".gif", ".jpg"}

func (s *Service) validateFields(name, title, description, email, headerImageURL string) []string {
	var messages []string

	// length limits count characters, not bytes
	switch {
	case utf8.RuneCountInString(name) < s.cfg.NameMin || utf8.RuneCountInString(name) > s.cfg.NameMax:
		messages = append(messages, fmt.Sprintf("Name must be between %d and %d characters.", s.cfg.NameMin, s.cfg.NameMax))
	case !namePattern.MatchString(name):
		messages = append(messages, "Name must begin and end with a letter or number; it may also contain underscores but no other characters.")
	}

	switch {
	case utf8.RuneCountInString(title) < s.cfg.TitleMin || utf8.RuneCountInString(title) > s.cfg.TitleMax:
		messages = append(messages, fmt.Sprintf("Title must be between %d and %d characters.", s.cfg.TitleMin, s.cfg.TitleMax))
	case strings.Contains(title, ",,"):
		messages = append(messages, "Title cannot contain the sequence ',,' as it is used to separate collection titles.")
	}

	if utf8.RuneCountInString(description) > s.cfg.SummaryMax {
		messages = append(messages, fmt.Sprintf("Description must be less than %d characters.", s.cfg.SummaryMax))
	}

	if email != "" && !validEmail(email) {
		messages = append(messages, "Email does not seem to be a valid address.")
	}

	if headerImageURL != "" && !validHeaderImageURL(headerImageURL) {
		messages = append(messages, "Header image URL must start with http(s) and point to a png, gif, or jpg file.")
	}

	return messages
}

// validateStructure checks the invariants that depend on other rows: the
// hierarchy stays two levels deep, no collection parents itself, and a
// collection with a parent keeps at least one owner across itself and its
// parent.
func (s *Service) validateStructure(ctx context.Context, col store.Collection) []string {
	var messages []string

	if col.ParentID != "" {
		if col.ParentID == col.ID {
			messages = append(messages, "Collection cannot be its own parent.")
		} else {
			parent, err := s.store.GetCollection(ctx, col.ParentID)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				messages = append(messages, "Parent collection does not exist.")
			case err != nil:
				messages = append(messages, "Parent collection could not be loaded.")
			case parent.ParentID != "":
				messages = append(messages, "Sorry, you can't nest collections more than one deep at the moment.")
			}
		}
	}

	children, err := s.store.ListChildren(ctx, col.ID)
	if err == nil && len(children) > 0 && col.ParentID != "" {
		messages = append(messages, "A collection with subcollections cannot itself have a parent.")
	}

	owners, err := s.ownerCountForValidation(ctx, col)
	if err == nil && owners == 0 {
		messages = append(messages, "Collection has no valid owners.")
	}

	return messages
}

// ownerCountForValidation counts owners across the collection and its
// parent, so a child whose owners are all inherited still passes.
func (s *Service) ownerCountForValidation(ctx context.Context, col store.Collection) (int, error) {
	owners, err := s.AllOwners(ctx, col)
	if err != nil {
		return 0, err
	}
	return len(owners), nil
}

// resolveParent finds the named parent collection and checks the actor
// maintains it. Attaching a child to someone else's collection is not
// allowed.
func (s *Service) resolveParent(ctx context.Context, actor store.User, parentName string) (*store.Collection, error) {
	parent, err := s.store.FindCollectionByName(ctx, parentName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, validationError(fmt.Sprintf("We couldn't find a collection with name %s.", parentName))
		}
		return nil, fmt.Errorf("find parent collection: %w", err)
	}
	if parent.ParentID != "" {
		return nil, validationError("Sorry, you can't nest collections more than one deep at the moment.")
	}
	isMaintainer, err := s.UserIsMaintainer(ctx, parent, actor)
	if err != nil {
		return nil, err
	}
	if !isMaintainer {
		return nil, validationError(fmt.Sprintf("You don't have permission to add subcollections to %s.", parentName))
	}
	return &parent, nil
}

func (s *Service) nameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	existing, err := s.store.FindCollectionByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check collection name: %w", err)
	}
	return existing.ID != excludeID, nil
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(email, " \t")
}

func validHeaderImageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	lower := strings.ToLower(u.Path)
	for _, ext := range headerImageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
