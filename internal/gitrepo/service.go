package gitrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"sowdiff/api/internal/revdiff"
	"sowdiff/api/internal/store"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	snapshotFile = "snapshot.json"
	mainBranch   = "main"
	idSeparator  = "@"
)

var (
	documentIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	// Only commit hashes (full or abbreviated) name a snapshot; branch names
	// and relative revisions move.
	revisionPattern = regexp.MustCompile(`^[0-9a-f]{4,40}$`)
)

// record is the on-disk form of a snapshot. The id is derived from the commit.
type record struct {
	DocumentID string         `json:"document_id"`
	Version    int            `json:"version"`
	Status     string         `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	Fields     revdiff.Fields `json:"fields"`
}

// Service keeps one git repository per document; each snapshot is a commit
// of snapshot.json on main.
type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
	now     func() time.Time
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

func SnapshotID(documentID string, hash plumbing.Hash) string {
	return documentID + idSeparator + hash.String()
}

func ParseSnapshotID(id string) (documentID, revision string, err error) {
	documentID, revision, ok := strings.Cut(strings.TrimSpace(id), idSeparator)
	revision = strings.ToLower(revision)
	if !ok || !documentIDPattern.MatchString(documentID) || !revisionPattern.MatchString(revision) {
		return "", "", fmt.Errorf("snapshot id %q: expected <document>@<commit hash>", id)
	}
	return documentID, revision, nil
}

// SaveSnapshot commits snapshot as the next version of documentID, creating
// the repository on first use. A zero Version means previous version + 1.
func (s *Service) SaveSnapshot(ctx context.Context, documentID string, snapshot revdiff.Snapshot, author string) (revdiff.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return revdiff.Snapshot{}, err
	}
	if !documentIDPattern.MatchString(documentID) {
		return revdiff.Snapshot{}, fmt.Errorf("save snapshot: invalid document id %q", documentID)
	}

	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(documentID)
	if err != nil {
		return revdiff.Snapshot{}, err
	}

	if snapshot.Version == 0 {
		previous, err := headVersion(repo)
		if err != nil {
			return revdiff.Snapshot{}, err
		}
		snapshot.Version = previous + 1
	}
	if snapshot.Status == "" {
		snapshot.Status = "draft"
	}
	// Git signatures keep whole seconds only.
	snapshot.CreatedAt = s.now().UTC().Truncate(time.Second)
	snapshot.DocumentID = documentID

	payload, err := json.MarshalIndent(record{
		DocumentID: documentID,
		Version:    snapshot.Version,
		Status:     snapshot.Status,
		CreatedAt:  snapshot.CreatedAt,
		Fields:     snapshot.Fields,
	}, "", "  ")
	if err != nil {
		return revdiff.Snapshot{}, fmt.Errorf("marshal snapshot: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return revdiff.Snapshot{}, fmt.Errorf("open worktree: %w", err)
	}
	repoRoot := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(repoRoot, snapshotFile), append(payload, '\n'), 0o644); err != nil {
		return revdiff.Snapshot{}, fmt.Errorf("write %s: %w", snapshotFile, err)
	}
	if _, err := worktree.Add(snapshotFile); err != nil {
		return revdiff.Snapshot{}, fmt.Errorf("git add snapshot: %w", err)
	}

	hash, err := worktree.Commit(fmt.Sprintf("Snapshot v%d (%s)", snapshot.Version, snapshot.Status), &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@sowdiff.local", sanitizeEmail(author)),
			When:  snapshot.CreatedAt,
		},
	})
	if err != nil {
		return revdiff.Snapshot{}, fmt.Errorf("commit snapshot: %w", err)
	}

	snapshot.ID = SnapshotID(documentID, hash)
	return snapshot, nil
}

func (s *Service) GetSnapshot(ctx context.Context, id string) (revdiff.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return revdiff.Snapshot{}, err
	}
	documentID, revision, err := ParseSnapshotID(id)
	if err != nil {
		return revdiff.Snapshot{}, fmt.Errorf("%w: %v", store.ErrSnapshotNotFound, err)
	}

	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(documentID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return revdiff.Snapshot{}, fmt.Errorf("snapshot %s: %w", id, store.ErrSnapshotNotFound)
	}
	if err != nil {
		return revdiff.Snapshot{}, fmt.Errorf("open repo: %w", err)
	}

	hash, err := resolveHash(repo, revision)
	if err != nil {
		return revdiff.Snapshot{}, fmt.Errorf("snapshot %s: %w", id, store.ErrSnapshotNotFound)
	}
	commitObj, err := repo.CommitObject(hash)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return revdiff.Snapshot{}, fmt.Errorf("snapshot %s: %w", id, store.ErrSnapshotNotFound)
	}
	if err != nil {
		return revdiff.Snapshot{}, fmt.Errorf("read commit %s: %w", revision, err)
	}

	rec, err := readRecord(commitObj)
	if err != nil {
		return revdiff.Snapshot{}, err
	}
	return revdiff.Snapshot{
		ID:         SnapshotID(documentID, commitObj.Hash),
		DocumentID: documentID,
		Version:    rec.Version,
		Status:     rec.Status,
		CreatedAt:  rec.CreatedAt.UTC(),
		Fields:     rec.Fields,
	}, nil
}

func (s *Service) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.baseDir)
	if err != nil {
		return fmt.Errorf("stat repos dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("repos dir %s is not a directory", s.baseDir)
	}
	return nil
}

func (s *Service) openOrInit(documentID string) (*git.Repository, error) {
	path := s.repoPath(documentID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(mainBranch))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

func headVersion(repo *git.Repository) (int, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(mainBranch), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("resolve branch %s: %w", mainBranch, err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return 0, fmt.Errorf("load head commit: %w", err)
	}
	rec, err := readRecord(commitObj)
	if err != nil {
		return 0, err
	}
	return rec.Version, nil
}

func (s *Service) repoPath(documentID string) string {
	return filepath.Join(s.baseDir, documentID)
}

func (s *Service) documentLock(documentID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[documentID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[documentID] = lock
	return lock
}

func readRecord(commitObj *object.Commit) (record, error) {
	file, err := commitObj.File(snapshotFile)
	if err != nil {
		return record{}, fmt.Errorf("load %s from commit: %w", snapshotFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return record{}, fmt.Errorf("open snapshot reader: %w", err)
	}
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return record{}, fmt.Errorf("read snapshot bytes: %w", err)
	}

	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return record{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return rec, nil
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
