package provider

import (
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"

	"github.com/tbourn/go-linkgate/internal/config"
)

// Registry holds the configured providers and picks one per request.
// It is immutable after construction.
type Registry struct {
	byID   map[string]Provider
	order  []string // selectable providers, config order
	policy string
	def    string
	direct Provider
	next   atomic.Uint64
}

// RegistryOptions carries the optional decorators applied to every provider.
type RegistryOptions struct {
	Check    config.CheckConfig
	Probe    PageProbe // nil disables the fallback
	Fallback string    // config.Fallback*
	Cache    *MintCache
	Client   *http.Client
}

// NewRegistry builds providers from cfg. The built-in direct provider is
// always registered under DirectID; it is selectable only when no other
// provider is configured.
func NewRegistry(cfg config.ProvidersConfig, opts RegistryOptions) (*Registry, error) {
	r := &Registry{
		byID:   make(map[string]Provider, len(cfg.List)+1),
		policy: cfg.Policy,
		def:    cfg.Default,
	}
	if r.policy == "" {
		r.policy = config.PolicyFixed
	}

	for _, pc := range cfg.List {
		if _, dup := r.byID[pc.Name]; dup {
			return nil, fmt.Errorf("provider %q configured twice", pc.Name)
		}
		var base Provider
		switch pc.Kind {
		case config.KindAdLinkFly:
			base = NewAdLinkFly(pc, opts.Client)
		case config.KindREST:
			base = NewREST(pc, opts.Client)
		case config.KindDirect:
			base = NewDirect(pc.Name)
		default:
			return nil, fmt.Errorf("provider %q: unknown kind %q", pc.Name, pc.Kind)
		}
		r.byID[pc.Name] = r.decorate(base, pc, opts)
		r.order = append(r.order, pc.Name)
	}

	if d, ok := r.byID[DirectID]; ok {
		r.direct = d
	} else {
		r.direct = NewDirect(DirectID)
		r.byID[DirectID] = r.direct
	}
	if len(r.order) == 0 {
		r.order = []string{DirectID}
	}

	if r.policy == config.PolicyFixed {
		if r.def == "" {
			r.def = r.order[0]
		}
		if _, ok := r.byID[r.def]; !ok {
			return nil, fmt.Errorf("default provider %q is not configured", r.def)
		}
	}
	return r, nil
}

func (r *Registry) decorate(p Provider, pc config.ProviderConfig, opts RegistryOptions) Provider {
	if pc.Kind == config.KindDirect {
		return p
	}
	policy := PolicyFrom(opts.Check, pc)
	p = WithRetry(p, policy)
	p = WithFallback(p, opts.Probe, opts.Fallback, policy.Timeout)
	if opts.Cache != nil {
		p = WithMintCache(p, opts.Cache)
	}
	return p
}

// Select picks the provider for a new gate.
func (r *Registry) Select() Provider {
	if r.policy == config.PolicyRoundRobin && len(r.order) > 1 {
		n := r.next.Add(1) - 1
		return r.byID[r.order[n%uint64(len(r.order))]]
	}
	if r.policy == config.PolicyFixed {
		return r.byID[r.def]
	}
	return r.byID[r.order[0]]
}

// Get returns the provider that minted a stored record.
func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Direct returns the pass-through provider.
func (r *Registry) Direct() Provider { return r.direct }

// IDs lists registered provider ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
