package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/justestif/go-spotify-jukebox/internal/auth"
	"github.com/justestif/go-spotify-jukebox/internal/spotify"
)

// fakeProvider accepts only the access token in valid and records every call.
type fakeProvider struct {
	mu     sync.Mutex
	valid  string
	tokens []string

	tracks  []spotify.Track
	devices spotify.DeviceList
	queued  []spotify.ID
	err     error // returned for valid tokens when set
	reject  bool  // reject every token
}

func (f *fakeProvider) check(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if f.reject || token != f.valid {
		return fmt.Errorf("fake: %w", spotify.ErrUnauthorized)
	}
	return f.err
}

func (f *fakeProvider) Search(ctx context.Context, token, query string) ([]spotify.Track, error) {
	if err := f.check(ctx, token); err != nil {
		return nil, err
	}
	return f.tracks, nil
}

func (f *fakeProvider) Devices(ctx context.Context, token string) (spotify.DeviceList, error) {
	if err := f.check(ctx, token); err != nil {
		return spotify.DeviceList{}, err
	}
	return f.devices, nil
}

func (f *fakeProvider) Queue(ctx context.Context, token string, id spotify.ID) error {
	if err := f.check(ctx, token); err != nil {
		return err
	}
	f.mu.Lock()
	f.queued = append(f.queued, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

func (f *fakeProvider) setValid(token string) {
	f.mu.Lock()
	f.valid = token
	f.mu.Unlock()
}

// fakeRefresher behaves like auth.Exchanger: it writes the store only on success.
type fakeRefresher struct {
	store    *auth.CredentialStore
	provider *fakeProvider
	access   string
	err      error
	delay    time.Duration
	calls    atomic.Int32
}

func (f *fakeRefresher) Refresh(_ context.Context, refreshToken string) (auth.Credential, error) {
	f.calls.Add(1)
	time.Sleep(f.delay)

	if f.err != nil {
		return auth.Credential{}, f.err
	}
	if f.provider != nil {
		f.provider.setValid(f.access)
	}
	cred := auth.Credential{AccessToken: f.access, RefreshToken: refreshToken}
	f.store.Set(cred)
	return cred, nil
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func track(id string) spotify.Track {
	var t spotify.Track
	t.ID = spotify.ID(id)
	t.Name = "Track " + id
	return t
}

type fixture struct {
	store     *auth.CredentialStore
	provider  *fakeProvider
	refresher *fakeRefresher
	proxy     *Proxy
}

// newFixture stores {A1,R1}; the provider accepts validToken.
func newFixture(validToken string) *fixture {
	store := auth.NewCredentialStore()
	store.Set(auth.Credential{AccessToken: "A1", RefreshToken: "R1"})

	provider := &fakeProvider{valid: validToken}
	refresher := &fakeRefresher{store: store, provider: provider, access: "A2"}

	return &fixture{
		store:     store,
		provider:  provider,
		refresher: refresher,
		proxy:     New(store, provider, refresher, log.New(io.Discard)),
	}
}

func TestSearch_BlankQuery(t *testing.T) {
	for _, query := range []string{"", " ", "\t\n "} {
		f := newFixture("A1")

		got, err := f.proxy.Search(context.Background(), query)
		if err != nil {
			t.Errorf("Search(%q) error = %v", query, err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("Search(%q) = %v, want empty list", query, got)
		}
		if n := f.provider.calls(); n != 0 {
			t.Errorf("Search(%q) made %d provider calls, want 0", query, n)
		}
	}
}

func TestSearch_Success(t *testing.T) {
	f := newFixture("A1")
	f.provider.tracks = []spotify.Track{track("t1"), track("t2")}

	got, err := f.proxy.Search(context.Background(), "daft punk")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "t1" || got[1].ID != "t2" {
		t.Errorf("Search() = %v, want [t1 t2]", got)
	}
	if n := f.refresher.calls.Load(); n != 0 {
		t.Errorf("refresh called %d times, want 0", n)
	}
}

func TestSearch_RefreshAndRetry(t *testing.T) {
	f := newFixture("A2")
	f.provider.tracks = []spotify.Track{track("t3")}

	got, err := f.proxy.Search(context.Background(), "x")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "t3" {
		t.Errorf("Search() = %v, want [t3]", got)
	}

	if n := f.refresher.calls.Load(); n != 1 {
		t.Errorf("refresh called %d times, want 1", n)
	}
	if len(f.provider.tokens) != 2 || f.provider.tokens[0] != "A1" || f.provider.tokens[1] != "A2" {
		t.Errorf("provider tokens = %v, want [A1 A2]", f.provider.tokens)
	}

	cred, _ := f.store.Get()
	if cred.AccessToken != "A2" || cred.RefreshToken != "R1" {
		t.Errorf("store = {%q, %q}, want {A2, R1}", cred.AccessToken, cred.RefreshToken)
	}
}

func TestRefreshFailure_ReauthRequired(t *testing.T) {
	f := newFixture("A2")
	f.refresher.err = &auth.Error{Kind: auth.KindRefreshFailed, Detail: "invalid_grant"}

	_, err := f.proxy.Search(context.Background(), "x")
	if !errors.Is(err, ErrReauthRequired) {
		t.Fatalf("Search() error = %v, want ErrReauthRequired", err)
	}
	if !errors.Is(err, auth.ErrRefreshFailed) {
		t.Errorf("Search() error = %v, want it to wrap auth.ErrRefreshFailed", err)
	}

	if n := f.provider.calls(); n != 1 {
		t.Errorf("provider called %d times, want 1 (no retry after failed refresh)", n)
	}

	cred, _ := f.store.Get()
	if cred.AccessToken != "A1" || cred.RefreshToken != "R1" {
		t.Errorf("store = {%q, %q}, want stale {A1, R1}", cred.AccessToken, cred.RefreshToken)
	}
	if !f.store.IsAuthenticated() {
		t.Error("store became unauthenticated after refresh failure")
	}
}

func TestRefreshTimeout_UpstreamFailure(t *testing.T) {
	f := newFixture("A2")
	f.refresher.err = &auth.Error{Kind: auth.KindRefreshFailed, Detail: "i/o timeout", Err: timeoutError{}}

	_, err := f.proxy.Search(context.Background(), "x")
	if errors.Is(err, ErrReauthRequired) {
		t.Fatalf("Search() error = %v, a slow token endpoint must not demand a new login", err)
	}

	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != KindUpstreamFailure {
		t.Fatalf("Search() error = %v, want upstream failure", err)
	}
	if pe.Status != http.StatusGatewayTimeout {
		t.Errorf("Status = %d, want 504", pe.Status)
	}
	if n := f.provider.calls(); n != 1 {
		t.Errorf("provider called %d times, want 1", n)
	}

	cred, _ := f.store.Get()
	if cred.AccessToken != "A1" || cred.RefreshToken != "R1" {
		t.Errorf("store = {%q, %q}, want stale {A1, R1}", cred.AccessToken, cred.RefreshToken)
	}
}

func TestRefreshTimeout_SlowTokenEndpoint(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer tokenServer.Close()

	store := auth.NewCredentialStore()
	store.Set(auth.Credential{AccessToken: "A1", RefreshToken: "R1"})
	exchanger := auth.NewExchanger(store, auth.ExchangerConfig{
		ClientID:   "id",
		TokenURL:   tokenServer.URL,
		HTTPClient: &http.Client{Timeout: 50 * time.Millisecond},
		Logger:     log.New(io.Discard),
	})
	provider := &fakeProvider{valid: "A2"}
	p := New(store, provider, exchanger, log.New(io.Discard))

	_, err := p.Search(context.Background(), "x")

	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != KindUpstreamFailure {
		t.Fatalf("Search() error = %v, want upstream failure", err)
	}
	if pe.Status != http.StatusGatewayTimeout {
		t.Errorf("Status = %d, want 504", pe.Status)
	}

	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Errorf("Search() error = %v, want it to wrap the client timeout", err)
	}
}

func TestRetryRejected_NoLoop(t *testing.T) {
	f := newFixture("A1")
	f.provider.reject = true

	_, err := f.proxy.Search(context.Background(), "x")
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Fatalf("Search() error = %v, want ErrUpstreamFailure", err)
	}

	var pe *Error
	if errors.As(err, &pe) && pe.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", pe.Status)
	}
	if n := f.provider.calls(); n != 2 {
		t.Errorf("provider called %d times, want 2", n)
	}
	if n := f.refresher.calls.Load(); n != 1 {
		t.Errorf("refresh called %d times, want 1", n)
	}
}

func TestUpstreamFailure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "no active device",
			err:        &spotify.StatusError{Op: "queue", Status: http.StatusNotFound, Message: "No active device found"},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "timeout",
			err:        fmt.Errorf("spotify: search: %w", timeoutError{}),
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "network error",
			err:        errors.New("connection refused"),
			wantStatus: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture("A1")
			f.provider.err = tt.err

			err := f.proxy.Enqueue(context.Background(), "spotify:track:4uLU6hMCjMI75M1A2tKUQC")

			var pe *Error
			if !errors.As(err, &pe) || pe.Kind != KindUpstreamFailure {
				t.Fatalf("Enqueue() error = %v, want upstream failure", err)
			}
			if pe.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", pe.Status, tt.wantStatus)
			}
			if n := f.refresher.calls.Load(); n != 0 {
				t.Errorf("refresh called %d times, want 0", n)
			}
			if n := f.provider.calls(); n != 1 {
				t.Errorf("provider called %d times, want 1", n)
			}
		})
	}
}

func TestEnqueue_InvalidArgument(t *testing.T) {
	for _, uri := range []string{"", "   ", "spotify:album:4uLU6hMCjMI75M1A2tKUQC", "not a uri!"} {
		f := newFixture("A1")

		err := f.proxy.Enqueue(context.Background(), uri)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Enqueue(%q) error = %v, want ErrInvalidArgument", uri, err)
		}
		if n := f.provider.calls(); n != 0 {
			t.Errorf("Enqueue(%q) made %d provider calls, want 0", uri, n)
		}
	}
}

func TestEnqueue_RefreshAndRetry(t *testing.T) {
	f := newFixture("A2")

	if err := f.proxy.Enqueue(context.Background(), "spotify:track:4uLU6hMCjMI75M1A2tKUQC"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if len(f.provider.queued) != 1 || f.provider.queued[0] != "4uLU6hMCjMI75M1A2tKUQC" {
		t.Errorf("queued = %v, want [4uLU6hMCjMI75M1A2tKUQC]", f.provider.queued)
	}
}

func TestListDevices(t *testing.T) {
	f := newFixture("A1")
	var kitchen spotify.Device
	kitchen.ID = "d1"
	kitchen.Name = "Kitchen"
	kitchen.Active = true
	f.provider.devices = spotify.DeviceList{Devices: []spotify.Device{kitchen}}

	got, err := f.proxy.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(got.Devices) != 1 || got.Devices[0].Name != "Kitchen" {
		t.Errorf("ListDevices() = %+v, want Kitchen", got)
	}
}

func TestUnauthenticated(t *testing.T) {
	store := auth.NewCredentialStore()
	provider := &fakeProvider{valid: "A1"}
	p := New(store, provider, &fakeRefresher{store: store}, log.New(io.Discard))

	if _, err := p.Search(context.Background(), "x"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Search() error = %v, want ErrUnauthenticated", err)
	}
	if _, err := p.ListDevices(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("ListDevices() error = %v, want ErrUnauthenticated", err)
	}
	if err := p.Enqueue(context.Background(), "spotify:track:abc"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Enqueue() error = %v, want ErrUnauthenticated", err)
	}
	if n := provider.calls(); n != 0 {
		t.Errorf("provider called %d times, want 0", n)
	}
}

func TestConcurrentExpiry_SingleRefresh(t *testing.T) {
	f := newFixture("A2")
	f.provider.tracks = []spotify.Track{track("t1")}
	f.refresher.delay = 50 * time.Millisecond

	const callers = 20
	var wg sync.WaitGroup
	errs := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.proxy.Search(context.Background(), "x"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Search() error = %v", err)
	}
	if n := f.refresher.calls.Load(); n != 1 {
		t.Errorf("refresh called %d times, want 1", n)
	}
}

func TestCallerCancellationIgnored(t *testing.T) {
	f := newFixture("A1")
	f.provider.tracks = []spotify.Track{track("t1")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := f.proxy.Search(ctx, "x")
	if err != nil {
		t.Fatalf("Search() error = %v, want call to run to completion", err)
	}
	if len(got) != 1 {
		t.Errorf("Search() = %v, want [t1]", got)
	}
}
