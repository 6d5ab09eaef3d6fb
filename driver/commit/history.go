package commit

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/plumbing/storer"
)

// Revision identifies one committed write.
type Revision struct {
	Id      string
	When    time.Time
	Author  string // "Name <email>" format
	Message string
}

func (r Revision) String() string {
	return fmt.Sprintf("Revision{Id: %s, When: %s, Message: %s}", r.Id, r.When, r.Message)
}

func revisionOf(c *object.Commit) Revision {
	author := ""
	if c.Author.Name != "" || c.Author.Email != "" {
		author = fmt.Sprintf("%s <%s>", c.Author.Name, c.Author.Email)
	}
	return Revision{
		Id:      c.Hash.String(),
		When:    c.Committer.When,
		Author:  author,
		Message: c.Message,
	}
}

// Head returns the latest revision, or a zero Revision for an empty
// repository.
func (s *Store) Head() Revision {
	s.mu.Lock()
	defer s.mu.Unlock()

	headRef, err := s.repo.Head()
	if err != nil || headRef == nil {
		return Revision{}
	}
	c, err := s.repo.CommitObject(headRef.Hash())
	if err != nil {
		return Revision{}
	}
	return revisionOf(c)
}

// History lists revisions newest first. A limit of 0 returns all of
// them.
func (s *Store) History(limit int) ([]Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.headHash().IsZero() {
		return nil, nil
	}
	iter, err := s.repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("commit: log: %w", err)
	}
	defer iter.Close()

	var revisions []Revision
	err = iter.ForEach(func(c *object.Commit) error {
		revisions = append(revisions, revisionOf(c))
		if limit > 0 && len(revisions) >= limit {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("commit: log: %w", err)
	}
	return revisions, nil
}

// HistorySince lists revisions committed at or after the given time,
// newest first.
func (s *Store) HistorySince(since time.Time) ([]Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.headHash().IsZero() {
		return nil, nil
	}
	iter, err := s.repo.Log(&git.LogOptions{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("commit: log: %w", err)
	}
	defer iter.Close()

	var revisions []Revision
	iter.ForEach(func(c *object.Commit) error {
		revisions = append(revisions, revisionOf(c))
		return nil
	})
	return revisions, nil
}
