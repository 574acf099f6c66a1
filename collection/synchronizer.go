package collection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rankdesk/rankdesk/domain"
	"go.uber.org/zap"
)

var (
	ErrFetch  = errors.New("fetch failed")
	ErrAdd    = errors.New("add failed")
	ErrUpdate = errors.New("update failed")
	ErrDelete = errors.New("delete failed")

	// ErrClosed is returned by operations whose owner called Close before they completed.
	ErrClosed = errors.New("synchronizer closed")
)

// Endpoint is the remote side of a collection.
type Endpoint interface {
	List(ctx context.Context) ([]domain.RawRecord, error)
	Create(ctx context.Context, record any) (*domain.Envelope, error)
	Update(ctx context.Context, id int64, record any) error
	Delete(ctx context.Context, id int64) error
}

// Notifier surfaces user-facing messages.
type Notifier interface {
	Notify(ctx context.Context, notification domain.Notification)
}

// Messages holds the fixed texts shown for each operation.
type Messages struct {
	FetchFailed  string
	AddFailed    string
	UpdateFailed string
	DeleteFailed string
	AddDone      string
	UpdateDone   string
	DeleteDone   string
	ErrorTitle   string
	SuccessTitle string
}

// ProcessorMessages are the texts used by the processor rankings screens.
var ProcessorMessages = Messages{
	FetchFailed:  "Failed to fetch processor rankings",
	AddFailed:    "Failed to add processor",
	UpdateFailed: "Failed to update processor",
	DeleteFailed: "Failed to delete processor",
	AddDone:      "Processor added successfully",
	UpdateDone:   "Processor updated successfully",
	DeleteDone:   "Processor deleted successfully",
	ErrorTitle:   "Error",
	SuccessTitle: "Success",
}

// Snapshot is a copy of the synchronizer state at one point in time.
// Error is empty when there is no error.
type Snapshot[T any] struct {
	Items   []T
	Loading bool
	Error   string
}

// HasError reports whether the snapshot carries an error message.
func (s Snapshot[T]) HasError() bool {
	return s.Error != ""
}

// Synchronizer keeps a local mirror of a remote collection of T.
type Synchronizer[T any] struct {
	endpoint Endpoint
	decode   func(domain.RawRecord) T
	key      func(T) (int64, bool)
	notifier Notifier
	messages Messages
	logger   *zap.Logger

	mu         sync.RWMutex
	items      []T
	loading    bool
	errMessage string
	generation uint64

	ctx    context.Context // cancelled by Close
	cancel context.CancelFunc
}

// New returns a Synchronizer for endpoint. decode maps raw records into T and must be total;
// key extracts the server-assigned identifier. Loading starts out true until the first FetchAll completes.
func New[T any](endpoint Endpoint, decode func(domain.RawRecord) T, key func(T) (int64, bool), options ...func(*Synchronizer[T]) error) (*Synchronizer[T], error) {
	if endpoint == nil {
		return nil, errors.New("endpoint is required")
	}
	if decode == nil || key == nil {
		return nil, errors.New("decode and key functions are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Synchronizer[T]{
		endpoint: endpoint,
		decode:   decode,
		key:      key,
		notifier: nopNotifier{},
		messages: ProcessorMessages,
		logger:   zap.NewNop(),
		items:    []T{},
		loading:  true,
		ctx:      ctx,
		cancel:   cancel,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			cancel()
			return nil, fmt.Errorf("applying option on synchronizer : %w", err)
		}
	}
	return s, nil
}

// NewProcessors returns a Synchronizer for the processor rankings collection.
func NewProcessors(endpoint Endpoint, options ...func(*Synchronizer[domain.Processor]) error) (*Synchronizer[domain.Processor], error) {
	return New(endpoint, domain.ProcessorFromRaw, domain.Processor.Key, options...)
}

// WithNotifier sets the notifier used for success and failure messages.
func WithNotifier[T any](notifier Notifier) func(*Synchronizer[T]) error {
	return func(s *Synchronizer[T]) error {
		if notifier == nil {
			return errors.New("notifier is nil")
		}
		s.notifier = notifier
		return nil
	}
}

// WithMessages overrides the fixed operation texts.
func WithMessages[T any](messages Messages) func(*Synchronizer[T]) error {
	return func(s *Synchronizer[T]) error {
		s.messages = messages
		return nil
	}
}

// WithLogger sets the logger. A nil logger keeps the no-op default.
func WithLogger[T any](logger *zap.Logger) func(*Synchronizer[T]) error {
	return func(s *Synchronizer[T]) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// Mount performs the initial fetch an owning view runs when it is shown.
func (s *Synchronizer[T]) Mount(ctx context.Context) error {
	return s.FetchAll(ctx)
}

// FetchAll replaces the local list with the mapped server collection.
// The loading flag is cleared on every exit path.
func (s *Synchronizer[T]) FetchAll(ctx context.Context) error {
	gen, ok := s.begin(true)
	if !ok {
		return ErrClosed
	}
	defer s.endLoading(gen)

	reqCtx, done := s.requestContext(ctx)
	defer done()

	raws, err := s.endpoint.List(reqCtx)
	if err != nil {
		return s.fail(ctx, gen, "fetch", s.messages.FetchFailed, ErrFetch, err)
	}

	items := make([]T, len(raws))
	for i, raw := range raws {
		items[i] = s.decode(raw)
	}

	if !s.commit(gen, func() {
		s.items = items
		s.errMessage = ""
	}) {
		return ErrClosed
	}
	s.logger.Debug("fetched collection", zap.Int("count", len(items)))
	return nil
}

// Add sends record to the create endpoint and replaces the local list with the
// collection returned by the server. When the server answers with a single record
// it is appended instead.
func (s *Synchronizer[T]) Add(ctx context.Context, record T) error {
	gen, ok := s.begin(false)
	if !ok {
		return ErrClosed
	}

	reqCtx, done := s.requestContext(ctx)
	defer done()

	envelope, err := s.endpoint.Create(reqCtx, record)
	if err != nil {
		return s.fail(ctx, gen, "add", s.messages.AddFailed, ErrAdd, err)
	}

	raws, err := envelope.Records()
	if err != nil {
		return s.fail(ctx, gen, "add", s.messages.AddFailed, ErrAdd, err)
	}

	items := make([]T, len(raws))
	for i, raw := range raws {
		items[i] = s.decode(raw)
	}

	if !s.commit(gen, func() {
		if envelope.IsList() {
			s.items = items
			return
		}
		s.items = append(slices.Clone(s.items), items...)
	}) {
		return ErrClosed
	}
	s.succeed(ctx, "add", s.messages.AddDone)
	return nil
}

// Update sends the full record to the per-identifier endpoint and replaces the matching
// local entry in place. If no local entry matches, the list is left unchanged and
// domain.ErrNotFound is returned; the error slot is not touched in that case.
func (s *Synchronizer[T]) Update(ctx context.Context, record T) error {
	gen, ok := s.begin(false)
	if !ok {
		return ErrClosed
	}

	id, hasID := s.key(record)
	if !hasID {
		return s.fail(ctx, gen, "update", s.messages.UpdateFailed, ErrUpdate, domain.ErrMissingID)
	}

	reqCtx, done := s.requestContext(ctx)
	defer done()

	if err := s.endpoint.Update(reqCtx, id, record); err != nil {
		return s.fail(ctx, gen, "update", s.messages.UpdateFailed, ErrUpdate, err)
	}

	found := false
	if !s.commit(gen, func() {
		index := slices.IndexFunc(s.items, func(item T) bool {
			itemID, ok := s.key(item)
			return ok && itemID == id
		})
		if index == -1 {
			return
		}
		found = true
		items := slices.Clone(s.items)
		items[index] = record
		s.items = items
	}) {
		return ErrClosed
	}

	if !found {
		s.logger.Warn("updated record is not in the local list", zap.Int64("id", id))
		return fmt.Errorf("updating local record %d: %w", id, domain.ErrNotFound)
	}
	s.succeed(ctx, "update", s.messages.UpdateDone)
	return nil
}

// Remove deletes the record with id on the server and drops it from the local list.
func (s *Synchronizer[T]) Remove(ctx context.Context, id int64) error {
	gen, ok := s.begin(false)
	if !ok {
		return ErrClosed
	}

	reqCtx, done := s.requestContext(ctx)
	defer done()

	if err := s.endpoint.Delete(reqCtx, id); err != nil {
		return s.fail(ctx, gen, "delete", s.messages.DeleteFailed, ErrDelete, err)
	}

	if !s.commit(gen, func() {
		s.items = slices.DeleteFunc(slices.Clone(s.items), func(item T) bool {
			itemID, ok := s.key(item)
			return ok && itemID == id
		})
	}) {
		return ErrClosed
	}
	s.succeed(ctx, "delete", s.messages.DeleteDone)
	return nil
}

// Close detaches the synchronizer from its owner. In-flight requests are cancelled
// and their results discarded. A closed synchronizer never reports Loading.
// Close is idempotent.
func (s *Synchronizer[T]) Close() {
	s.mu.Lock()
	s.generation++
	s.loading = false
	s.cancel()
	s.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (s *Synchronizer[T]) Snapshot() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot[T]{
		Items:   slices.Clone(s.items),
		Loading: s.loading,
		Error:   s.errMessage,
	}
}

// Items returns a copy of the local list.
func (s *Synchronizer[T]) Items() []T {
	return s.Snapshot().Items
}

// Loading reports whether a FetchAll is in progress.
func (s *Synchronizer[T]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the current error message, or an empty string.
func (s *Synchronizer[T]) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMessage
}

// begin captures the generation an operation runs under.
func (s *Synchronizer[T]) begin(loading bool) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return 0, false
	}
	if loading {
		s.loading = true
	}
	return s.generation, true
}

// commit applies mutate if the synchronizer was not closed since gen was captured.
func (s *Synchronizer[T]) commit(gen uint64, mutate func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	mutate()
	return true
}

func (s *Synchronizer[T]) endLoading(gen uint64) {
	s.commit(gen, func() { s.loading = false })
}

// requestContext derives a context that is also cancelled by Close.
func (s *Synchronizer[T]) requestContext(ctx context.Context) (context.Context, func()) {
	reqCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return reqCtx, func() {
		stop()
		cancel()
	}
}

// fail records message in the error slot, notifies and returns the wrapped cause.
func (s *Synchronizer[T]) fail(ctx context.Context, gen uint64, operation, message string, sentinel, cause error) error {
	if !s.commit(gen, func() { s.errMessage = message }) {
		return ErrClosed
	}

	s.logger.Error("collection operation failed", zap.String("operation", operation), zap.Error(cause))
	s.notifier.Notify(ctx, domain.Notification{
		Level:   domain.LevelError,
		Title:   s.messages.ErrorTitle,
		Message: message,
		Context: map[string]any{"operation": operation, "cause": cause.Error()},
	})
	return fmt.Errorf("%w: %w", sentinel, cause)
}

func (s *Synchronizer[T]) succeed(ctx context.Context, operation, message string) {
	s.logger.Debug("collection operation succeeded", zap.String("operation", operation))
	if message == "" {
		return
	}
	s.notifier.Notify(ctx, domain.Notification{
		Level:   domain.LevelSuccess,
		Title:   s.messages.SuccessTitle,
		Message: message,
		Context: map[string]any{"operation": operation},
	})
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.Notification) {}
