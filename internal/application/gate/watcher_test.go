package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"edustack-web/internal/application/session"
	"edustack-web/internal/pkg/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu sync.Mutex
	id *session.Identity
}

func (m *memStore) Load(context.Context) (*session.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id, nil
}

func (m *memStore) Save(_ context.Context, id *session.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *id
	m.id = &cp
	return nil
}

func (m *memStore) Erase(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = nil
	return nil
}

type rejectAll struct{}

func (rejectAll) Verify(context.Context, string) (*session.Identity, error) {
	return nil, session.ErrUnauthenticated
}

type recordingNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *recordingNavigator) Replace(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *recordingNavigator) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

func next(t *testing.T, ch <-chan Decision) Decision {
	t.Helper()
	select {
	case d, ok := <-ch:
		require.True(t, ok, "decision channel closed")
		return d
	case <-time.After(time.Second):
		t.Fatal("no decision")
		return Pending
	}
}

func teacherAtS1AndS2() session.Identity {
	return session.Identity{
		Token: "t",
		User:  session.User{ID: "u1"},
		Memberships: []session.Membership{
			{SchoolID: "S1", Role: constants.Teacher},
			{SchoolID: "S2", Role: constants.Parent},
		},
		SelectedSchoolID: "S1",
	}
}

func TestWatch_RechecksOnTenantSwitch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := session.New(session.Config{Store: &memStore{}, Verifier: rejectAll{}})
	nav := &recordingNavigator{}

	decisions := Watch(ctx, st, Roles(constants.Admin, constants.Teacher), nav)
	assert.Equal(t, Pending, next(t, decisions))

	require.NoError(t, st.Establish(ctx, teacherAtS1AndS2()))
	assert.Equal(t, Allow, next(t, decisions))
	assert.Empty(t, nav.Routes())

	require.True(t, st.SetSelectedSchool(ctx, "S2"))
	assert.Equal(t, Deny, next(t, decisions))
	assert.Equal(t, []string{"/not-authorized"}, nav.Routes())
}

func TestWatch_RedirectsOncePerDenial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := session.New(session.Config{Store: &memStore{}, Verifier: rejectAll{}})
	id := teacherAtS1AndS2()
	id.SelectedSchoolID = "S2"
	require.NoError(t, st.Establish(ctx, id))
	nav := &recordingNavigator{}

	decisions := Watch(ctx, st, Roles(constants.Admin), nav)
	assert.Equal(t, Deny, next(t, decisions))

	// Still denied after switching: no second redirect.
	require.True(t, st.SetSelectedSchool(ctx, "S1"))
	select {
	case d := <-decisions:
		t.Fatalf("unexpected decision %s", d)
	case <-time.After(30 * time.Millisecond):
	}
	assert.Equal(t, []string{"/not-authorized"}, nav.Routes())

	// Logging out is a new denial kind and navigates to login.
	require.NoError(t, st.Clear(ctx))
	assert.Equal(t, Login, next(t, decisions))
	assert.Equal(t, []string{"/not-authorized", "/login"}, nav.Routes())
}

func TestWatch_SuperAdminNeverRedirected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := session.New(session.Config{Store: &memStore{}, Verifier: rejectAll{}})
	require.NoError(t, st.Establish(ctx, session.Identity{
		Token:       "t",
		User:        session.User{ID: "root", IsSuperAdmin: true},
		Memberships: []session.Membership{{SchoolID: "S1", Role: constants.Parent}},
	}))
	nav := &recordingNavigator{}

	decisions := Watch(ctx, st, Roles(), nav)
	assert.Equal(t, Allow, next(t, decisions))
	st.SetSelectedSchool(ctx, "S1")
	assert.Empty(t, nav.Routes())
}

func TestWatch_ClosesWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	st := session.New(session.Config{Store: &memStore{}, Verifier: rejectAll{}})
	decisions := Watch(ctx, st, Roles(), NavigatorFunc(func(string) {}))
	assert.Equal(t, Pending, next(t, decisions))

	cancel()
	select {
	case _, ok := <-decisions:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatch_SignedInRuleOnlyRedirectsToLogin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := session.New(session.Config{Store: &memStore{}, Verifier: rejectAll{}})
	require.NoError(t, st.Establish(ctx, session.Identity{Token: "t", User: session.User{ID: "u9"}}))
	nav := &recordingNavigator{}

	decisions := Watch(ctx, st, SignedIn(), nav)
	assert.Equal(t, Allow, next(t, decisions))
	assert.Empty(t, nav.Routes())

	require.NoError(t, st.Clear(ctx))
	assert.Equal(t, Login, next(t, decisions))
	assert.Equal(t, []string{"/login"}, nav.Routes())
}
