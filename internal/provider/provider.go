package provider

import (
	"context"
	"fmt"
	"sync"

	"social_metrics/internal/config"
	"social_metrics/internal/domain"
)

// ExtractRequest describes one unit of extraction work handed to an adapter.
type ExtractRequest struct {
	Profile  *domain.SocialProfile
	Kind     domain.JobKind
	MaxPosts int
	// Since bounds incremental pulls; zero means no lower bound.
	Since            int64
	ExtractComments  bool
	IncludeSentiment bool
}

// RecordStream is a lazy, finite sequence of raw records. The iteration
// pattern follows sql.Rows: Next advances, Record returns the current row,
// Err reports the failure that terminated the stream, if any.
//
// Malformed records are dropped inside the stream and counted by Skipped;
// they never terminate iteration. Stream- or call-level failures do, and are
// reported by Err as a classified *domain.ExtractError.
type RecordStream interface {
	Next(ctx context.Context) bool
	Record() *domain.RawRecord
	Skipped() int
	Err() error
	Close() error
}

// Extraction is an in-flight provider pull: the audience snapshot observed
// when the call started, the run handle for operator visibility, and the
// record stream.
type Extraction struct {
	RunID    string
	Snapshot domain.ProfileSnapshot
	Records  RecordStream
}

// Adapter performs extraction work against one platform. Implementations
// must classify every failure with a *domain.ExtractError so the scheduler
// can decide between retry and terminal failure.
type Adapter interface {
	Platform() domain.Platform
	Extract(ctx context.Context, req ExtractRequest) (*Extraction, error)
}

// Validator is implemented by adapters that check their provider
// configuration at registration time.
type Validator interface {
	ValidateConfig(cfg config.ProviderConfig) error
}

// Registry maps platform identifiers to adapter implementations. The
// scheduler looks adapters up by platform and never branches on internals.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.Platform]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[domain.Platform]Adapter)}
}

// Register adds an adapter, running config validation when the adapter
// supports it. Registering the same platform twice is a programming error.
func (r *Registry) Register(adapter Adapter, cfg config.ProviderConfig) error {
	if v, ok := adapter.(Validator); ok {
		if err := v.ValidateConfig(cfg); err != nil {
			return fmt.Errorf("validate %s provider config: %w", adapter.Platform(), err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[adapter.Platform()]; exists {
		return fmt.Errorf("adapter already registered for platform %s", adapter.Platform())
	}
	r.adapters[adapter.Platform()] = adapter
	return nil
}

// Lookup returns the adapter for a platform.
func (r *Registry) Lookup(platform domain.Platform) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for platform %s", platform)
	}
	return adapter, nil
}

// Platforms lists the registered platform identifiers.
func (r *Registry) Platforms() []domain.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	platforms := make([]domain.Platform, 0, len(r.adapters))
	for p := range r.adapters {
		platforms = append(platforms, p)
	}
	return platforms
}
