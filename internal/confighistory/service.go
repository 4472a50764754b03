// Package confighistory keeps an audit trail of applied survey configs in a
// local git repository, one commit per sync that changed anything.
package confighistory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const configFileName = "survey.yaml"

type Commit struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
}

type Service struct {
	dir string
	mu  sync.Mutex
}

// New prepares the history directory. The git repository itself is
// initialized lazily on the first Record.
func New(dir string) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create config history dir: %w", err)
	}
	return &Service{dir: dir}, nil
}

func (s *Service) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(s.dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open config history repo: %w", err)
	}
	repo, err = git.PlainInit(s.dir, false)
	if err != nil {
		return nil, fmt.Errorf("init config history repo: %w", err)
	}
	return repo, nil
}

// Record writes the applied document and commits it with the sync summary as
// message. An unchanged document produces no commit and returns "".
func (s *Service) Record(doc []byte, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open()
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, configFileName)
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return "", fmt.Errorf("write config file: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}
	if _, err := worktree.Add(configFileName); err != nil {
		return "", fmt.Errorf("stage config file: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return "", fmt.Errorf("worktree status: %w", err)
	}
	if status.IsClean() {
		return "", nil
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "pulse",
			Email: "pulse@localhost",
			When:  time.Now().UTC(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("commit config: %w", err)
	}
	return hash.String(), nil
}

// List returns the sync history, newest first.
func (s *Service) List() ([]Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return []Commit{}, nil
		}
		return nil, fmt.Errorf("open config history repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		// Empty repo: initialized but nothing committed yet.
		return []Commit{}, nil
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read config history log: %w", err)
	}
	defer iter.Close()

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		commits = append(commits, Commit{
			Hash:    c.Hash.String(),
			Message: c.Message,
			When:    c.Author.When,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate config history: %w", err)
	}
	return commits, nil
}
