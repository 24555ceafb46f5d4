package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"sowdiff/api/internal/config"
	"sowdiff/api/internal/revdiff"
	"sowdiff/api/internal/store"

	"github.com/microcosm-cc/bluemonday"
)

const (
	codeValidation       = "VALIDATION_ERROR"
	codeSnapshotNotFound = "SNAPSHOT_NOT_FOUND"
	codeRetrievalFailed  = "RETRIEVAL_FAILED"
)

type versionStore interface {
	GetSnapshot(context.Context, string) (revdiff.Snapshot, error)
	Ping(context.Context) error
}

type Service struct {
	cfg      config.Config
	versions versionStore
	engine   *revdiff.Engine
}

func New(cfg config.Config, versions versionStore) *Service {
	opts := revdiff.Options{
		Lookahead:     cfg.DiffLookahead,
		HTMLCutoff:    cfg.HTMLMiddleCutoff,
		ContentFields: cfg.ContentFields,
	}
	if cfg.SanitizeHTML {
		opts.Sanitizer = bluemonday.UGCPolicy()
	}
	return &Service{
		cfg:      cfg,
		versions: versions,
		engine:   revdiff.NewEngine(opts),
	}
}

type CompareRequest struct {
	Snapshot1    string
	Snapshot2    string
	PreviousView revdiff.View
	NewView      revdiff.View
	// Patch adds a unified diff of the formatted values to every change.
	Patch bool
}

type ChangePayload struct {
	revdiff.ChangeDiff
	revdiff.Rendered
	Patch string `json:"patch,omitempty"`
}

type ComparePayload struct {
	Snapshot1    revdiff.SnapshotRef `json:"snapshot1"`
	Snapshot2    revdiff.SnapshotRef `json:"snapshot2"`
	Changes      []ChangePayload     `json:"changes"`
	TotalChanges int                 `json:"total_changes"`
}

// Compare diffs Snapshot1 (previous) against Snapshot2 (new) in the order given.
func (s *Service) Compare(ctx context.Context, req CompareRequest) (ComparePayload, error) {
	prev, next, err := s.loadPair(ctx, req)
	if err != nil {
		return ComparePayload{}, err
	}
	return s.buildPayload(prev, next, req), nil
}

// CompareDocumentVersions is Compare with both snapshots required to belong to
// documentID.
func (s *Service) CompareDocumentVersions(ctx context.Context, documentID string, req CompareRequest) (ComparePayload, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return ComparePayload{}, domainError(http.StatusUnprocessableEntity, codeValidation, "documentId is required", nil)
	}
	prev, next, err := s.loadPair(ctx, req)
	if err != nil {
		return ComparePayload{}, err
	}
	for _, snapshot := range []revdiff.Snapshot{prev, next} {
		if snapshot.DocumentID != "" && snapshot.DocumentID != documentID {
			return ComparePayload{}, domainError(http.StatusNotFound, codeSnapshotNotFound, "Snapshot not found", map[string]any{
				"snapshotId": snapshot.ID,
				"documentId": documentID,
			})
		}
	}
	return s.buildPayload(prev, next, req), nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.versions.Ping(ctx)
}

func (s *Service) loadPair(ctx context.Context, req CompareRequest) (revdiff.Snapshot, revdiff.Snapshot, error) {
	first := strings.TrimSpace(req.Snapshot1)
	second := strings.TrimSpace(req.Snapshot2)
	missing := make([]string, 0, 2)
	if first == "" {
		missing = append(missing, "snapshot1")
	}
	if second == "" {
		missing = append(missing, "snapshot2")
	}
	if len(missing) > 0 {
		return revdiff.Snapshot{}, revdiff.Snapshot{}, domainError(
			http.StatusUnprocessableEntity,
			codeValidation,
			"two snapshot identifiers are required",
			map[string]any{"missing": missing},
		)
	}

	prev, err := s.loadSnapshot(ctx, first)
	if err != nil {
		return revdiff.Snapshot{}, revdiff.Snapshot{}, err
	}
	if second == first {
		return prev, prev, nil
	}
	next, err := s.loadSnapshot(ctx, second)
	if err != nil {
		return revdiff.Snapshot{}, revdiff.Snapshot{}, err
	}
	return prev, next, nil
}

func (s *Service) loadSnapshot(ctx context.Context, id string) (revdiff.Snapshot, error) {
	snapshot, err := s.versions.GetSnapshot(ctx, id)
	if err == nil {
		return snapshot, nil
	}
	if errors.Is(err, store.ErrSnapshotNotFound) {
		notFound := domainError(http.StatusNotFound, codeSnapshotNotFound, "Snapshot not found", map[string]any{"snapshotId": id})
		notFound.Cause = err
		return revdiff.Snapshot{}, notFound
	}
	log.Printf("compare: request_id=%s load snapshot %s: %v", RequestID(ctx), id, err)
	failed := domainError(http.StatusBadGateway, codeRetrievalFailed, "Snapshot retrieval failed", map[string]any{"snapshotId": id})
	failed.Cause = err
	return revdiff.Snapshot{}, failed
}

func (s *Service) buildPayload(prev, next revdiff.Snapshot, req CompareRequest) ComparePayload {
	result := s.engine.Compute(prev, next)
	previousView := req.PreviousView
	if previousView == "" {
		previousView = revdiff.ViewHighlighted
	}
	newView := req.NewView
	if newView == "" {
		newView = revdiff.ViewHighlighted
	}

	changes := make([]ChangePayload, 0, len(result.Changes))
	for _, change := range result.Changes {
		item := ChangePayload{
			ChangeDiff: change,
			Rendered:   revdiff.Render(change, previousView, newView),
		}
		if req.Patch {
			item.Patch = revdiff.UnifiedPatch(change, 0)
		}
		changes = append(changes, item)
	}
	return ComparePayload{
		Snapshot1:    result.Snapshot1,
		Snapshot2:    result.Snapshot2,
		Changes:      changes,
		TotalChanges: result.TotalChanges,
	}
}
