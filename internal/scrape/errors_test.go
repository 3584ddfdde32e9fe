package scrape

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	validation := &ValidationError{Field: "keyword", Reason: "must not be empty"}
	external := &ExternalError{Op: "search", Err: errors.New("boom")}
	storage := &StorageError{Op: "upsert", Err: errors.New("down")}

	if !IsValidation(validation) || IsValidation(external) || IsValidation(storage) {
		t.Fatal("IsValidation misclassified")
	}
	if !IsExternal(external) || IsExternal(validation) {
		t.Fatal("IsExternal misclassified")
	}
	if !IsStorage(storage) || IsStorage(external) {
		t.Fatal("IsStorage misclassified")
	}
}

func TestErrorClassificationThroughWrapping(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("run failed: %w", &ExternalError{Op: "details", Quota: true, Err: errors.New("429")})
	if !IsExternal(wrapped) {
		t.Fatal("expected wrapped external error to classify")
	}

	var external *ExternalError
	if !errors.As(wrapped, &external) || !external.Quota {
		t.Fatal("expected quota flag to survive wrapping")
	}
}
