// Package store defines the document storage capability shared by every
// backend. Documents are JSON encoded and addressed by collection and id.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("store: document not found")
	// ErrConflict is returned when inserting an id that already exists.
	ErrConflict = errors.New("store: document already exists")
)

// Collection names used by the repositories.
const (
	Users             = "users"
	UserEmails        = "user_emails"
	Courses           = "courses"
	Modules           = "modules"
	Assignments       = "assignments"
	Submissions       = "submissions"
	Enrollments       = "enrollments"
	LessonCompletions = "lesson_completions"
	Notifications     = "notifications"
)

// ModifyFunc receives the current document (nil when absent) and returns the
// replacement. Returning a nil document leaves the stored value untouched.
// fn runs while the backend holds its lock and must not call the driver.
type ModifyFunc func(current []byte) ([]byte, error)

// Driver is implemented by every storage backend. Modify must be atomic for a
// single document: concurrent calls on the same id observe each other's writes.
type Driver interface {
	Get(ctx context.Context, collection, id string) ([]byte, error)
	Insert(ctx context.Context, collection, id string, doc []byte) error
	Modify(ctx context.Context, collection, id string, fn ModifyFunc) ([]byte, error)
	// ModifyAll applies fn to every document of the collection as one batch
	// and returns how many documents were rewritten.
	ModifyAll(ctx context.Context, collection string, fn ModifyFunc) (int, error)
	// Scan visits documents in ascending id order. fn must not retain doc.
	Scan(ctx context.Context, collection string, fn func(id string, doc []byte) error) error
	Close(ctx context.Context) error
}
