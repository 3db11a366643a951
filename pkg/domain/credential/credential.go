// Package credential provides access tokens for external subscriptions.
//
// Credentials are stored in a kubernetes Secret, one JSON document mapping
// subscription names to their tokens. This package caches them in-process and
// re-reads the Secret when a cached token has passed its "exp" claim.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	k8s "github.com/modelyard/modelyard/pkg/conn/k8s"
	xe "github.com/modelyard/modelyard/pkg/errors"
)

var ErrNoCredential = errors.New("no credential found")

const credentialItem = "credentials"

type SubscriptionConfig struct {
	AccessToken string `json:"accessToken"`
	Project     string `json:"project"`
}

type Provider interface {
	// Get returns the credential for a subscription.
	//
	// When the cached token is expired (or no token is cached),
	// the backing Secret is read again before answering.
	//
	// # Returns
	//
	// - SubscriptionConfig: the credential
	//
	// - error: ErrNoCredential when the subscription is not in the Secret,
	// or errors from the kubernetes API.
	Get(ctx context.Context, subscription string) (SubscriptionConfig, error)

	// GetAll returns every credential in the backing Secret.
	GetAll(ctx context.Context) (map[string]SubscriptionConfig, error)
}

type secretProvider struct {
	client    k8s.K8sClient
	namespace string
	secret    string

	mu    sync.Mutex
	cache map[string]SubscriptionConfig
	now   func() time.Time
}

var _ Provider = &secretProvider{}

func New(client k8s.K8sClient, namespace string, secret string) *secretProvider {
	return &secretProvider{
		client:    client,
		namespace: namespace,
		secret:    secret,
		cache:     map[string]SubscriptionConfig{},
		now:       time.Now,
	}
}

func (p *secretProvider) Get(ctx context.Context, subscription string) (SubscriptionConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.cache[subscription]; ok && !expired(c.AccessToken, p.now()) {
		return c, nil
	}

	if err := p.reload(ctx); err != nil {
		return SubscriptionConfig{}, err
	}

	c, ok := p.cache[subscription]
	if !ok {
		return SubscriptionConfig{}, fmt.Errorf("%w: subscription %s", ErrNoCredential, subscription)
	}
	return c, nil
}

func (p *secretProvider) GetAll(ctx context.Context) (map[string]SubscriptionConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.reload(ctx); err != nil {
		return nil, err
	}

	all := map[string]SubscriptionConfig{}
	for s, c := range p.cache {
		all[s] = c
	}
	return all, nil
}

// reload replaces the cache with the Secret's current content.
// Callers hold p.mu.
func (p *secretProvider) reload(ctx context.Context) error {
	sec, err := p.client.GetSecret(ctx, p.namespace, p.secret)
	if err != nil {
		return xe.Wrap(err)
	}

	raw, ok := sec.Data[credentialItem]
	if !ok {
		p.cache = map[string]SubscriptionConfig{}
		return nil
	}

	creds := map[string]SubscriptionConfig{}
	if err := json.Unmarshal(raw, &creds); err != nil {
		return xe.Wrap(err)
	}
	p.cache = creds
	return nil
}

// expired reports whether the token's "exp" claim is at or before now.
// Tokens that cannot be parsed are treated as expired, so that the next Get
// falls back to the Secret.
func expired(token string, now time.Time) bool {
	tok, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return true
	}
	exp, err := tok.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return !exp.After(now)
}
