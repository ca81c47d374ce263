// Package proxy issues authenticated Spotify calls for the browser UI.
//
// Every call follows the same protocol: attach the stored access token, and
// when Spotify answers 401, refresh the credential once and reissue the call
// exactly once. Concurrent callers that hit an expired token share a single
// refresh.
package proxy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/justestif/go-spotify-jukebox/internal/auth"
	"github.com/justestif/go-spotify-jukebox/internal/spotify"
)

// Provider performs Web API calls with an explicit access token.
// A rejected token must be reported as spotify.ErrUnauthorized.
type Provider interface {
	Search(ctx context.Context, accessToken, query string) ([]spotify.Track, error)
	Devices(ctx context.Context, accessToken string) (spotify.DeviceList, error)
	Queue(ctx context.Context, accessToken string, trackID spotify.ID) error
}

// Refresher exchanges a refresh token for a new credential and stores it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (auth.Credential, error)
}

// Proxy dispatches provider calls with the stored credential.
type Proxy struct {
	store     *auth.CredentialStore
	provider  Provider
	refresher Refresher
	logger    *log.Logger
	flight    singleflight.Group
}

// New creates a Proxy. The store is only read; refresher is expected to write it.
func New(store *auth.CredentialStore, provider Provider, refresher Refresher, logger *log.Logger) *Proxy {
	if logger == nil {
		logger = log.Default()
	}
	return &Proxy{
		store:     store,
		provider:  provider,
		refresher: refresher,
		logger:    logger,
	}
}

// Search returns up to ten tracks matching query.
// A blank query yields an empty list without contacting Spotify.
func (p *Proxy) Search(ctx context.Context, query string) ([]spotify.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []spotify.Track{}, nil
	}

	return do(ctx, p, "search", func(ctx context.Context, token string) ([]spotify.Track, error) {
		return p.provider.Search(ctx, token, query)
	})
}

// ListDevices returns the user's Spotify Connect devices.
func (p *Proxy) ListDevices(ctx context.Context) (spotify.DeviceList, error) {
	return do(ctx, p, "list devices", func(ctx context.Context, token string) (spotify.DeviceList, error) {
		return p.provider.Devices(ctx, token)
	})
}

// Enqueue adds the track named by trackURI to the playback queue.
func (p *Proxy) Enqueue(ctx context.Context, trackURI string) error {
	if strings.TrimSpace(trackURI) == "" {
		return &Error{Kind: KindInvalidArgument, Detail: "trackUri is required"}
	}

	id, err := spotify.ParseTrackURI(trackURI)
	if err != nil {
		return &Error{Kind: KindInvalidArgument, Detail: err.Error(), Err: err}
	}

	_, err = do(ctx, p, "enqueue", func(ctx context.Context, token string) (struct{}, error) {
		return struct{}{}, p.provider.Queue(ctx, token, id)
	})
	return err
}

// do runs call with the stored access token, refreshing and retrying once on 401.
// The call is detached from caller cancellation; the HTTP client timeout bounds it.
func do[T any](ctx context.Context, p *Proxy, op string, call func(context.Context, string) (T, error)) (T, error) {
	var zero T
	ctx = context.WithoutCancel(ctx)

	cred, ok := p.store.Get()
	if !ok || cred.AccessToken == "" {
		return zero, &Error{Kind: KindUnauthenticated, Detail: "no credential held"}
	}

	out, err := call(ctx, cred.AccessToken)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, spotify.ErrUnauthorized) {
		p.logger.Warn("provider call failed", "op", op, "err", err)
		return zero, upstream(err)
	}

	p.logger.Info("access token rejected, refreshing", "op", op)
	fresh, err := p.renew(ctx, cred)
	if err != nil {
		// A slow token endpoint says nothing about the credential.
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			p.logger.Warn("refresh timed out", "op", op, "err", err)
			return zero, upstream(err)
		}
		p.logger.Warn("refresh failed, login required", "op", op, "err", err)
		return zero, &Error{Kind: KindReauthRequired, Detail: err.Error(), Err: err}
	}

	out, err = call(ctx, fresh.AccessToken)
	if err != nil {
		p.logger.Warn("provider call failed after refresh", "op", op, "err", err)
		return zero, upstream(err)
	}
	return out, nil
}

// renew returns a credential whose access token differs from failed.
// Concurrent callers holding the same refresh token share one refresh; a
// caller arriving after the store was already updated reuses that result.
func (p *Proxy) renew(ctx context.Context, failed auth.Credential) (auth.Credential, error) {
	v, err, shared := p.flight.Do(failed.RefreshToken, func() (any, error) {
		if cur, ok := p.store.Get(); ok && cur.AccessToken != "" && cur.AccessToken != failed.AccessToken {
			return cur, nil
		}
		return p.refresher.Refresh(ctx, failed.RefreshToken)
	})
	if err != nil {
		return auth.Credential{}, err
	}
	if shared {
		p.logger.Debug("joined in-flight refresh")
	}
	return v.(auth.Credential), nil
}

// upstream maps a provider failure to KindUpstreamFailure.
func upstream(err error) *Error {
	e := &Error{Kind: KindUpstreamFailure, Detail: err.Error(), Err: err}

	var se *spotify.StatusError
	var ne net.Error
	switch {
	case errors.As(err, &se):
		e.Status = se.Status
		e.Detail = se.Message
	case errors.Is(err, spotify.ErrUnauthorized):
		e.Status = http.StatusUnauthorized
	case errors.As(err, &ne) && ne.Timeout():
		e.Status = http.StatusGatewayTimeout
		e.Detail = "spotify did not respond in time"
	}
	return e
}
