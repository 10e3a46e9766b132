package finding

import (
	"context"
	"errors"
	"testing"

	"github.com/veridia/attestor/internal/model"
)

func TestMemoryStore_VersioningAppends(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := &model.Finding{ControlID: "AC-2", AssessmentID: "fy26", Status: model.StatusNotMet, Confidence: 40}
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("save v1: %v", err)
	}
	if first.Version != 1 {
		t.Errorf("expected version 1, got %d", first.Version)
	}
	if first.ID == "" {
		t.Error("expected an assigned ID")
	}

	second := &model.Finding{ControlID: "AC-2", AssessmentID: "fy26", Status: model.StatusMet, Confidence: 85}
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("save v2: %v", err)
	}
	if second.Version != 2 {
		t.Errorf("expected version 2, got %d", second.Version)
	}

	latest, err := s.Latest(ctx, "AC-2", "fy26")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Version != 2 || latest.Status != model.StatusMet {
		t.Errorf("latest should be v2, got v%d %s", latest.Version, latest.Status)
	}

	versions, err := s.Versions(ctx, "AC-2", "fy26")
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions preserved, got %d", len(versions))
	}
	if versions[0].Status != model.StatusNotMet {
		t.Error("prior version must be preserved unchanged")
	}
}

func TestMemoryStore_VersionsScopedToAssessment(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.Save(ctx, &model.Finding{ControlID: "AC-2", AssessmentID: "fy25"})
	_ = s.Save(ctx, &model.Finding{ControlID: "AC-2", AssessmentID: "fy26"})

	f, err := s.Latest(ctx, "AC-2", "fy26")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if f.Version != 1 {
		t.Errorf("versions must not leak across assessments, got v%d", f.Version)
	}
}

func TestMemoryStore_ByAssessment(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.Save(ctx, &model.Finding{ControlID: "AC-2", AssessmentID: "fy26"})
	_ = s.Save(ctx, &model.Finding{ControlID: "AC-2", AssessmentID: "fy26", Status: model.StatusMet})
	_ = s.Save(ctx, &model.Finding{ControlID: "AU-12", AssessmentID: "fy26"})
	_ = s.Save(ctx, &model.Finding{ControlID: "AC-2", AssessmentID: "other"})

	findings, err := s.ByAssessment(ctx, "fy26")
	if err != nil {
		t.Fatalf("by assessment: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 controls, got %d", len(findings))
	}
	if findings[0].ControlID != "AC-2" || findings[0].Version != 2 {
		t.Errorf("expected latest AC-2 first, got %s v%d", findings[0].ControlID, findings[0].Version)
	}
}

func TestMemoryStore_UpdateReview(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	f := &model.Finding{ControlID: "AC-2", AssessmentID: "fy26", ReviewState: model.ReviewNeedsReview}
	if err := s.Save(ctx, f); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := s.UpdateReview(ctx, f.ID, model.ReviewApproved); err != nil {
		t.Fatalf("update review: %v", err)
	}

	latest, _ := s.Latest(ctx, "AC-2", "fy26")
	if latest.ReviewState != model.ReviewApproved {
		t.Errorf("expected approved, got %s", latest.ReviewState)
	}

	if err := s.UpdateReview(ctx, "no-such-id", model.ReviewApproved); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	s := NewMemoryStore()

	if _, err := s.Latest(context.Background(), "AC-2", "fy26"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Versions(context.Background(), "AC-2", "fy26"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
