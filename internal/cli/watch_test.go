package cli

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/leavemaster/internal/app"
	"github.com/sysu-ecnc-dev/leavemaster/internal/config"
	"github.com/sysu-ecnc-dev/leavemaster/internal/session"
)

const waitFor = 2 * time.Second

type retryFixture struct {
	c        *CLI
	cmd      *cobra.Command
	clock    *clockwork.FakeClock
	errOut   *syncBuffer
	attempts atomic.Int32
}

// newRetryFixture 的 deliverOn 表示第几次请求开始送达，0 表示一直不送达，负数表示服务端出错
func newRetryFixture(t *testing.T, deliverOn int32) *retryFixture {
	t.Helper()

	f := &retryFixture{clock: clockwork.NewFakeClock(), errOut: &syncBuffer{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/notifications/test", func(w http.ResponseWriter, r *http.Request) {
		n := f.attempts.Add(1)
		if deliverOn < 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		delivered := 0
		if deliverOn > 0 && n >= deliverOn {
			delivered = 1
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"delivered":%d}`, delivered)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Log.Level = "error"

	f.c = New(
		WithConfig(cfg),
		WithStorage(session.NewMemoryStorage()),
		WithOutput(&syncBuffer{}, f.errOut),
		WithAppOptions(app.WithClock(f.clock)),
	)
	f.c.apiURL = srv.URL + "/api"

	f.cmd = &cobra.Command{}
	f.cmd.SetContext(context.Background())
	require.NoError(t, f.c.setup(f.cmd, nil))
	t.Cleanup(f.c.close)
	return f
}

// send 在后台发送，并按重试间隔推进时钟 advances 次
func (f *retryFixture) send(t *testing.T, advances int) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.c.sendTestNotification(f.cmd)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	for i := 0; i < advances; i++ {
		require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
		assert.EqualValues(t, i+1, f.attempts.Load())
		f.clock.Advance(testNotificationInterval)
	}

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("sendTestNotification did not return")
	}
}

func TestSendTestNotificationRetriesOnInjectedClock(t *testing.T) {
	f := newRetryFixture(t, 3)

	f.send(t, 2)

	assert.EqualValues(t, 3, f.attempts.Load())
	assert.Empty(t, f.errOut.String())
}

func TestSendTestNotificationGivesUp(t *testing.T) {
	f := newRetryFixture(t, 0)

	f.send(t, testNotificationRetries)

	assert.EqualValues(t, testNotificationRetries+1, f.attempts.Load())
	assert.Contains(t, f.errOut.String(), "Test notification was not delivered")
}

func TestSendTestNotificationStopsOnServerError(t *testing.T) {
	f := newRetryFixture(t, -1)

	f.send(t, 0)

	assert.EqualValues(t, 1, f.attempts.Load())
	assert.Contains(t, f.errOut.String(), "Error:")
}
