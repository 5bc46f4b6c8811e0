package onboarding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atelier-api/internal/application/delivery"
	"github.com/atelier-api/internal/application/media"
	"github.com/atelier-api/internal/application/role"
	"github.com/atelier-api/internal/domain"
	"github.com/atelier-api/internal/infrastructure/memory"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// seqCodes hands out 11111, 22222, ... so consecutive codes always differ.
type seqCodes struct {
	mu    sync.Mutex
	n     int
	clock *clock
}

func (g *seqCodes) Generate() (string, time.Time, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return strings.Repeat(fmt.Sprint(g.n%9+1), 5), g.clock.Now().Add(5 * time.Minute), nil
}

type fakeSigner struct{}

func (fakeSigner) Sign(accountID, role string) (string, error) {
	return "token-" + accountID + "-" + role, nil
}

type recordingDispatcher struct {
	mu   sync.Mutex
	msgs []delivery.Message
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg delivery.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, msg)
	return d.err
}

func (d *recordingDispatcher) last(t *testing.T) delivery.Message {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.msgs) == 0 {
		t.Fatal("no message dispatched")
	}
	return d.msgs[len(d.msgs)-1]
}

type fakeMedia struct {
	finalizeErr error
	finalized   []string
	discarded   []string
}

func (m *fakeMedia) Stage(_ context.Context, a media.Asset) (string, error) {
	return "pending/" + a.Filename, nil
}

func (m *fakeMedia) Finalize(_ context.Context, key string) (string, error) {
	if m.finalizeErr != nil {
		return "", m.finalizeErr
	}
	m.finalized = append(m.finalized, key)
	return "https://cdn.example.com/" + strings.TrimPrefix(key, "pending/"), nil
}

func (m *fakeMedia) Discard(_ context.Context, key string) {
	m.discarded = append(m.discarded, key)
}

// objectStore keeps staged and finalized media in memory.
type objectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newObjectStore() *objectStore {
	return &objectStore{objects: map[string][]byte{}}
}

func (o *objectStore) Upload(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[key] = data
	return "mem://" + key, nil
}

func (o *objectStore) Download(_ context.Context, key string) (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[key]
	if !ok {
		return nil, fmt.Errorf("NoSuchKey %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (o *objectStore) Copy(_ context.Context, src, dst string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[src]
	if !ok {
		return "", fmt.Errorf("NoSuchKey %s", src)
	}
	o.objects[dst] = data
	return "mem://" + dst, nil
}

func (o *objectStore) Delete(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, key)
	return nil
}

func (o *objectStore) keys(prefix string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []string
	for k := range o.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

// flakyRegistrar fails the first CompleteRegistration and delegates afterwards.
type flakyRegistrar struct {
	next   registrar
	failed bool
}

func (r *flakyRegistrar) CompleteRegistration(ctx context.Context, a *domain.Account, sat *domain.RoleSatellite) error {
	if !r.failed {
		r.failed = true
		return errors.New("transaction aborted")
	}
	return r.next.CompleteRegistration(ctx, a, sat)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type env struct {
	svc       Service
	store     *memory.Store
	clock     *clock
	sent      *recordingDispatcher
	media     *fakeMedia
	published *recordingPublisher
}

func newEnv(t *testing.T, allowAdmin bool) *env {
	t.Helper()
	clk := &clock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	e := &env{
		store:     store,
		clock:     clk,
		sent:      &recordingDispatcher{},
		media:     &fakeMedia{},
		published: &recordingPublisher{},
	}
	e.svc = NewService(ServiceDeps{
		AccountRepo:    store.Accounts(),
		PendingRepo:    store.Pending(),
		ChallengeRepo:  store.Challenges(),
		Registrar:      store,
		Media:          e.media,
		Materializer:   role.NewMaterializer(clk.Now),
		Codes:          &seqCodes{clock: clk},
		JWTProvider:    fakeSigner{},
		Dispatcher:     e.sent,
		Publisher:      e.published,
		AllowAdminRole: allowAdmin,
		Now:            clk.Now,
	})
	return e
}

func emailRegistration(email, roleTag string) RegistrationRequest {
	return RegistrationRequest{
		Channel:  domain.ChannelEmail,
		Name:     "Ada Lovelace",
		Email:    email,
		Password: "secret123",
		Role:     roleTag,
	}
}
