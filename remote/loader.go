// Package remote resolves named UI capabilities from an independently
// deployed origin at first use. The host must stay usable when the remote is
// unreachable, outdated, or incompatible.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
)

const manifestPath = "/assets/remote-manifest.json"

var (
	ErrCapabilityNotFound    = errors.New("capability not exposed by remote")
	ErrIncompatibleContract  = errors.New("capability declares an incompatible contract version")
	ErrMalformedRemoteBundle = errors.New("remote bundle malformed")
)

// Capability is one exposure in the remote's manifest.
type Capability struct {
	Name            string `json:"name"`
	Module          string `json:"module"`
	ContractVersion int    `json:"contractVersion"`
}

// Manifest describes the remote: its name, the entry bundle, and the
// capabilities it exposes.
type Manifest struct {
	Name    string       `json:"name"`
	Entry   string       `json:"entry"`
	Exposes []Capability `json:"exposes"`
}

// LoadState is the lifecycle of one resolution.
type LoadState int

const (
	LoadPending LoadState = iota
	LoadReady
	LoadFailed
)

// Handle tracks one asynchronous capability resolution.
type Handle struct {
	placeholder string
	fallback    string

	mu    sync.Mutex
	state LoadState
	cap   *Capability
	err   error
	done  chan struct{}
}

// State returns the resolution state.
func (h *Handle) State() LoadState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the resolution failure, if any.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Capability returns the resolved exposure once ready.
func (h *Handle) Capability() *Capability {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cap
}

// Done is closed when the resolution settles either way.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Render invokes the capability inside an isolating boundary. While pending
// it yields the placeholder; on failure, a panicking render, or a render
// error it yields the fallback, never crashing the host.
func (h *Handle) Render(render func(Capability) (string, error)) (out string) {
	h.mu.Lock()
	state, capability := h.state, h.cap
	h.mu.Unlock()

	switch state {
	case LoadPending:
		return h.placeholder
	case LoadFailed:
		return h.fallback
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Remote capability %s panicked: %v", capability.Name, r)
			out = h.fallback
		}
	}()
	rendered, err := render(*capability)
	if err != nil {
		log.Printf("Remote capability %s failed to render: %v", capability.Name, err)
		return h.fallback
	}
	return rendered
}

func (h *Handle) resolve(cap *Capability, err error) {
	h.mu.Lock()
	if err != nil {
		h.state = LoadFailed
		h.err = err
	} else {
		h.state = LoadReady
		h.cap = cap
	}
	h.mu.Unlock()
	close(h.done)
}

// Loader resolves capabilities from one remote base URL. It is parameterized
// purely by capability name and remote location.
type Loader struct {
	base string
	http *http.Client

	// expected contract versions per capability name
	contracts map[string]int

	placeholder string
	fallback    string

	mu       sync.Mutex
	manifest *Manifest
}

// NewLoader builds a loader for the remote at base. No explicit timeout is
// imposed here; callers bound resolution with their context, and a hung
// remote simply leaves handles pending.
func NewLoader(base string, httpc *http.Client) *Loader {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &Loader{
		base: strings.TrimSuffix(base, "/"),
		http: httpc,
		contracts: map[string]int{
			CapabilityGrid: GridContractVersion,
			CapabilityCard: CardContractVersion,
			CapabilityApp:  AppContractVersion,
		},
		placeholder: "Loading...",
		fallback:    "Something went wrong",
	}
}

// Load starts resolving the named capability and returns immediately with a
// pending handle.
func (l *Loader) Load(ctx context.Context, name string) *Handle {
	h := &Handle{
		placeholder: l.placeholder,
		fallback:    l.fallback,
		done:        make(chan struct{}),
	}
	go func() {
		capability, err := l.resolve(ctx, name)
		if err != nil {
			log.Printf("Loading remote capability %s failed: %v", name, err)
		}
		h.resolve(capability, err)
	}()
	return h
}

func (l *Loader) resolve(ctx context.Context, name string) (*Capability, error) {
	manifest, err := l.loadManifest(ctx)
	if err != nil {
		return nil, err
	}

	for i := range manifest.Exposes {
		capability := manifest.Exposes[i]
		if capability.Name != name {
			continue
		}
		if expected, known := l.contracts[name]; known && capability.ContractVersion != expected {
			return nil, fmt.Errorf("%w: %s wants v%d, host supports v%d",
				ErrIncompatibleContract, name, capability.ContractVersion, expected)
		}
		if err := l.checkEntry(ctx, manifest.Entry); err != nil {
			return nil, err
		}
		return &capability, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrCapabilityNotFound, name)
}

// loadManifest fetches and caches the remote manifest at first use.
func (l *Loader) loadManifest(ctx context.Context) (*Manifest, error) {
	l.mu.Lock()
	cached := l.manifest
	l.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.base+manifestPath, nil)
	if err != nil {
		return nil, fmt.Errorf("building manifest request: %w", err)
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("remote manifest returned status %d", resp.StatusCode)
	}

	var manifest Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRemoteBundle, err)
	}
	if manifest.Entry == "" || len(manifest.Exposes) == 0 {
		return nil, fmt.Errorf("%w: manifest missing entry or exposes", ErrMalformedRemoteBundle)
	}

	l.mu.Lock()
	l.manifest = &manifest
	l.mu.Unlock()
	return &manifest, nil
}

// checkEntry verifies the entry bundle is actually served before declaring a
// capability ready.
func (l *Loader) checkEntry(ctx context.Context, entry string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		l.base+"/"+strings.TrimPrefix(entry, "/"), nil)
	if err != nil {
		return fmt.Errorf("building entry request: %w", err)
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetching remote entry: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remote entry returned status %d", resp.StatusCode)
	}
	return nil
}
