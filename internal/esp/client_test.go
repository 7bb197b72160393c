package esp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shednotify/internal/task/scheduler"
)

const statusJSON = `{
  "status": {
    "capetown": {
      "name": "Cape Town",
      "next_stages": [{"stage": "1", "stage_start_timestamp": "2026-03-14T17:00:00+02:00"}],
      "stage": "0",
      "stage_updated": "2026-03-14T00:08:16.837063+02:00"
    },
    "eskom": {
      "name": "National",
      "next_stages": [],
      "stage": "2",
      "stage_updated": "2026-03-14T16:12:53.725852+02:00"
    }
  }
}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New("tok-123", WithBaseURL(srv.URL), WithTimeout(2*time.Second))
	require.NoError(t, err)
	return c
}

func TestStatusDecodes(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		assert.Equal(t, "tok-123", r.Header.Get("Token"))
		_, _ = w.Write([]byte(statusJSON))
	})

	got, err := c.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[National].Stage)
	ct := got["capetown"]
	assert.Equal(t, "Cape Town", ct.Name)
	require.Len(t, ct.NextStages, 1)
	assert.Equal(t, "1", ct.NextStages[0].Stage)
	assert.True(t, ct.NextStages[0].Start.Equal(time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)))
}

func TestRemoteErrorKinds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code int
		kind ErrorKind
	}{
		{code: http.StatusBadRequest, kind: KindBadRequest},
		{code: http.StatusForbidden, kind: KindForbidden},
		{code: http.StatusNotFound, kind: KindNotFound},
		{code: http.StatusTooManyRequests, kind: KindTooManyRequests},
		{code: http.StatusInternalServerError, kind: KindServerError},
		{code: http.StatusTeapot, kind: KindUnknownError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(`{"error": "remote said no"}`))
			})
			_, err := c.Status(context.Background())
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.kind), "got %v", err)

			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, "remote said no", e.Detail)
			assert.Equal(t, tt.code, e.StatusCode)
		})
	}
}

func TestTimeoutKind(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	c, err := New("tok", WithBaseURL(srv.URL), WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = c.Status(context.Background())
	assert.True(t, IsKind(err, KindTimeout), "got %v", err)
}

func TestNoInternetKind(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, err := New("tok", WithBaseURL(addr))
	require.NoError(t, err)
	_, err = c.Status(context.Background())
	assert.True(t, IsKind(err, KindNoInternet), "got %v", err)
	assert.True(t, Transient(err))
}

func TestMalformedBodyIsUnknownError(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": {"eskom": {"stage_updated": "yesterday"}}}`))
	})
	_, err := c.Status(context.Background())
	assert.True(t, IsKind(err, KindUnknownError), "got %v", err)
}

func TestAllowanceAndAreas(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api_allowance":
			_, _ = w.Write([]byte(`{"allowance": {"count": 12, "limit": 50, "type": "daily"}}`))
		case "/areas_search":
			assert.Equal(t, "fourways", r.URL.Query().Get("text"))
			_, _ = w.Write([]byte(`{"areas": [{"id": "eskde-10-fourways", "name": "Fourways (10)", "region": "Eskom Direct"}]}`))
		case "/area":
			assert.Equal(t, "eskde-10-fourways", r.URL.Query().Get("id"))
			_, _ = w.Write([]byte(`{
			  "events": [{"end": "2026-03-14T22:30:00+02:00", "note": "Stage 2", "start": "2026-03-14T20:00:00+02:00"}],
			  "info": {"name": "Fourways (10)", "region": "Eskom Direct"},
			  "schedule": {"days": [{"date": "2026-03-14", "name": "Saturday", "stages": [["20:00-22:30"]]}], "source": "https://example.invalid"}
			}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	a, err := c.Allowance(ctx)
	require.NoError(t, err)
	assert.Equal(t, Allowance{Count: 12, Limit: 50, Type: "daily"}, a)
	assert.Equal(t, 38, a.Remaining())

	areas, err := c.SearchAreas(ctx, " fourways ")
	require.NoError(t, err)
	require.Len(t, areas, 1)
	assert.Equal(t, "Eskom Direct - Fourways (10)", areas[0].String())

	info, err := c.AreaInfo(ctx, areas[0].ID, "")
	require.NoError(t, err)
	require.Len(t, info.Events, 1)
	assert.Equal(t, "Stage 2", info.Events[0].Note)
	assert.Equal(t, 150*time.Minute, info.Events[0].End.Sub(info.Events[0].Start))

	_, err = c.SearchAreas(ctx, "  ")
	assert.True(t, IsKind(err, KindBadRequest))
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	_, err := New("   ")
	assert.ErrorIs(t, err, ErrTokenRequired)
}

type countingSource struct{ calls int }

func (c *countingSource) Status(context.Context) (StatusMap, error) {
	c.calls++
	return StatusMap{}, nil
}

func TestBudgetGuardDeniesBurstOverrun(t *testing.T) {
	t.Parallel()
	src := &countingSource{}
	g := NewBudgetGuard(50, src) // burst 6

	var denied int
	for i := 0; i < 10; i++ {
		if _, err := g.Status(context.Background()); err != nil {
			assert.True(t, IsKind(err, KindTooManyRequests))
			denied++
		}
	}
	assert.Equal(t, 6, src.calls)
	assert.Equal(t, 4, denied)
}

func TestBudgetGuardAdmitsAllowanceCadence(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	for _, allowance := range []int{50, 200, 1000} {
		cadence := scheduler.CadenceFor(allowance)
		g := NewBudgetGuard(scheduler.DailyBudget(allowance), &countingSource{})
		require.NotNil(t, g.lim)

		calls, denied := 0, 0
		end := start.Add(72 * time.Hour)
		for now := scheduler.NextAfter(cadence, start); now.Before(end); now = scheduler.NextAfter(cadence, now) {
			calls++
			if !g.lim.AllowN(now, 1) {
				denied++
			}
		}
		assert.Positive(t, calls, "allowance %d", allowance)
		assert.Zero(t, denied, "allowance %d cadence %s", allowance, cadence)
	}
}

func TestMessages(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "The API key is invalid.", Message(&Error{Kind: KindForbidden}))
	assert.Equal(t, "No internet access.", Message(&Error{Kind: KindNoInternet}))
	assert.Equal(t, "An error occurred.", Message(&Error{Kind: KindServerError}))
	assert.Empty(t, Message(nil))
	assert.False(t, Transient(&Error{Kind: KindForbidden}))
}
