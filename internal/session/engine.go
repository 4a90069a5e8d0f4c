package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/localstore"
	"github.com/fjod/go_market/internal/logger"
)

// MergePolicy decides what happens to anonymous state at login.
type MergePolicy string

const (
	// MergeUnion keeps anonymous lines the account does not have, writes them
	// to the account and clears the device copy. The account wins conflicts.
	MergeUnion MergePolicy = "union"
	// MergeReplace shows the account state and leaves the device copy alone.
	MergeReplace MergePolicy = "replace"
)

func ParseMergePolicy(s string) (MergePolicy, error) {
	switch MergePolicy(s) {
	case MergeUnion, MergeReplace:
		return MergePolicy(s), nil
	case "":
		return MergeUnion, nil
	}
	return "", fmt.Errorf("unknown merge policy %q", s)
}

type Mode int

const (
	ModeNone Mode = iota
	ModeAnonymous
	ModeAuthenticated
)

func (m Mode) String() string {
	switch m {
	case ModeAnonymous:
		return "anonymous"
	case ModeAuthenticated:
		return "authenticated"
	}
	return "none"
}

// Engine keeps one session's Store bound to the right backend and, when
// authenticated, to exactly one live remote subscription.
type Engine struct {
	mu          sync.Mutex
	store       *Store
	deviceID    string
	local       LocalStore
	remote      RemoteCarts
	watcher     Watcher
	policy      MergePolicy
	log         *logger.Logger
	mode        Mode
	userID      string
	generation  uint64
	cancelWatch func()
}

type EngineDeps struct {
	Local   LocalStore
	Remote  RemoteCarts
	Watcher Watcher
	Policy  MergePolicy
	Log     *logger.Logger
}

func NewEngine(store *Store, deviceID string, deps EngineDeps) *Engine {
	policy := deps.Policy
	if policy == "" {
		policy = MergeUnion
	}
	return &Engine{
		store:    store,
		deviceID: deviceID,
		local:    deps.Local,
		remote:   deps.Remote,
		watcher:  deps.Watcher,
		policy:   policy,
		log:      deps.Log.With("component", "sync_engine", "device_id", deviceID),
	}
}

func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Transition moves the engine to the mode implied by identity. Staying
// authenticated as the same user is a no-op.
func (e *Engine) Transition(ctx context.Context, identity domain.Identity) error {
	if identity.IsAnonymous() {
		if e.Mode() == ModeAnonymous {
			return nil
		}
		return e.EnterAnonymous(ctx)
	}

	e.mu.Lock()
	same := e.mode == ModeAuthenticated && e.userID == identity.UserID
	e.mu.Unlock()
	if same {
		return nil
	}
	return e.EnterAuthenticated(ctx, identity.UserID)
}

// EnterAnonymous loads the device-local cart and routes writes to it.
func (e *Engine) EnterAnonymous(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopWatchLocked()

	state, err := loadLocalState(ctx, e.local, e.deviceID)
	if err != nil {
		e.log.Warn("local cart unreadable, starting empty", "error", err)
		state = domain.CartState{}
	}

	e.store.Replace(state)
	e.store.setBackend(&localBackend{
		store:    e.local,
		deviceID: e.deviceID,
		snapshot: e.store.Snapshot,
	})
	e.mode = ModeAnonymous
	e.userID = ""
	return nil
}

// EnterAuthenticated binds the session to userID's remote cart. The previous
// subscription, if any, is cancelled before the new one opens.
func (e *Engine) EnterAuthenticated(ctx context.Context, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	remoteState, err := e.remote.Load(ctx, userID)
	if err != nil {
		return fmt.Errorf("load remote cart: %w", err)
	}

	wasAnonymous := e.mode == ModeAnonymous
	e.stopWatchLocked()

	view := remoteState
	if wasAnonymous && e.policy == MergeUnion {
		view = e.mergeAnonymousLocked(ctx, userID, remoteState, e.store.Snapshot())
	}

	e.store.Replace(view)
	e.store.setBackend(&remoteBackend{remote: e.remote, userID: userID})
	e.mode = ModeAuthenticated
	e.userID = userID

	snapshots, cancel, err := e.watcher.Watch(context.Background(), userID)
	if err != nil {
		// writes still reach the remote store; only live updates are missing
		e.log.Warn("remote subscription failed", "user_id", userID, "error", err)
		return nil
	}
	e.cancelWatch = cancel
	go e.consume(e.generation, snapshots)
	return nil
}

// mergeAnonymousLocked unions anonymous state into remote, writes the
// anonymous-only entries to the account and clears the device copy.
func (e *Engine) mergeAnonymousLocked(ctx context.Context, userID string, remote, anon domain.CartState) domain.CartState {
	merged := domain.CartState{
		Lines:     append([]domain.CartLine(nil), remote.Lines...),
		Favorites: append([]domain.FavoriteEntry(nil), remote.Favorites...),
	}

	inRemote := make(map[string]struct{}, len(remote.Lines))
	for _, l := range remote.Lines {
		inRemote[l.ProductID] = struct{}{}
	}
	for _, l := range anon.Lines {
		if _, ok := inRemote[l.ProductID]; ok {
			continue
		}
		merged.Lines = append(merged.Lines, l)
		if err := e.remote.AddLine(ctx, userID, l); err != nil {
			e.log.Warn("merge: cart line not persisted", "user_id", userID, "product_id", l.ProductID, "error", err)
		}
	}

	favRemote := make(map[string]struct{}, len(remote.Favorites))
	for _, f := range remote.Favorites {
		favRemote[f.ProductID] = struct{}{}
	}
	for _, f := range anon.Favorites {
		if _, ok := favRemote[f.ProductID]; ok {
			continue
		}
		merged.Favorites = append(merged.Favorites, f)
		if err := e.remote.PutFavorite(ctx, userID, f); err != nil {
			e.log.Warn("merge: favorite not persisted", "user_id", userID, "product_id", f.ProductID, "error", err)
		}
	}

	if !anon.IsEmpty() {
		if err := e.local.Delete(ctx, localstore.BucketCarts, e.deviceID); err != nil {
			e.log.Warn("merge: local cart not cleared", "error", err)
		}
	}
	return merged
}

// consume applies snapshots for as long as gen is the current generation.
func (e *Engine) consume(gen uint64, snapshots <-chan domain.CartState) {
	for state := range snapshots {
		e.mu.Lock()
		if gen != e.generation {
			e.mu.Unlock()
			return
		}
		e.store.Replace(state)
		e.mu.Unlock()
	}
}

// stopWatchLocked cancels the live subscription and invalidates any snapshot
// it may still deliver.
func (e *Engine) stopWatchLocked() {
	e.generation++
	if e.cancelWatch != nil {
		e.cancelWatch()
		e.cancelWatch = nil
	}
}

func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopWatchLocked()
}
