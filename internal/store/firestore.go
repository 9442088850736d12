// Package store persists projects and intake sessions in Firestore and
// archives diagram revisions in Cloud Storage.
package store

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoChange may be returned by an update function to skip the write.
	// The update then returns the record as read.
	ErrNoChange = errors.New("no change")
	// ErrRevisionConflict is returned when a revision is already recorded on the project.
	ErrRevisionConflict = errors.New("revision already recorded")
	// ErrRevisionExists is returned when an archive object for the revision already exists.
	ErrRevisionExists = errors.New("revision object already exists")
)

func getDoc[T any](ctx context.Context, ref *firestore.DocumentRef, setID func(*T, string)) (*T, error) {
	snap, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref.Path)
		}
		return nil, fmt.Errorf("failed to get document %s: %w", ref.ID, err)
	}
	var out T
	if err := snap.DataTo(&out); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", ref.ID, err)
	}
	setID(&out, ref.ID)
	return &out, nil
}

// updateDoc runs fn over the current record inside a transaction and writes
// the result back. Concurrent updates of the same document are serialised by
// Firestore; fn may run more than once and must not keep state across runs.
func updateDoc[T any](ctx context.Context, client *firestore.Client, ref *firestore.DocumentRef, setID func(*T, string), fn func(*T) error) (*T, error) {
	var result *T
	err := client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		result = nil
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("%w: %s", ErrNotFound, ref.Path)
			}
			return fmt.Errorf("failed to get document %s: %w", ref.ID, err)
		}
		var current T
		if err := snap.DataTo(&current); err != nil {
			return fmt.Errorf("failed to decode document %s: %w", ref.ID, err)
		}
		setID(&current, ref.ID)

		if err := fn(&current); err != nil {
			if errors.Is(err, ErrNoChange) {
				result = &current
				return nil
			}
			return err
		}
		result = &current
		return tx.Set(ref, &current)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
