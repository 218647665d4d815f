package cli

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/sysu-ecnc-dev/leavemaster/internal/domain"
	"github.com/sysu-ecnc-dev/leavemaster/internal/notify"
)

const (
	testNotificationInterval = 200 * time.Millisecond
	testNotificationRetries  = 4
)

func (c *CLI) newWatchCmd() *cobra.Command {
	var sendTest bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream push notifications until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}

			ctx := cmd.Context()
			ch := c.app.Notifications

			// 回调来自不同的 goroutine
			var mu sync.Mutex
			seen := make(map[string]struct{})
			connected := make(chan struct{}, 1)
			expired := make(chan struct{})
			var expireOnce sync.Once

			stopState := ch.OnStateChange(func(s notify.State) {
				mu.Lock()
				fmt.Fprintf(c.out, "push channel %s\n", s)
				mu.Unlock()
				if s == notify.StateOpen {
					select {
					case connected <- struct{}{}:
					default:
					}
				}
			})
			defer stopState()

			// 恢复会话时可能已经连上，先输出一次当前状态
			mu.Lock()
			fmt.Fprintf(c.out, "push channel %s\n", ch.State())
			mu.Unlock()

			stopList := ch.Notifications().Subscribe(func(list []domain.Notification) {
				mu.Lock()
				defer mu.Unlock()
				// 快照按新到旧排列，倒序输出
				for i := len(list) - 1; i >= 0; i-- {
					n := list[i]
					if _, ok := seen[n.ID]; ok {
						continue
					}
					seen[n.ID] = struct{}{}
					fmt.Fprintf(c.out, "%s %s %s\n", n.Timestamp.Local().Format(time.TimeOnly), notify.Icon(n.Type), notify.Format(n))
				}
			})
			defer stopList()

			stopRedirect := c.app.OnRedirect(func() {
				expireOnce.Do(func() { close(expired) })
			})
			defer stopRedirect()

			ch.Connect()
			if ch.Connected() {
				select {
				case connected <- struct{}{}:
				default:
				}
			}

			if sendTest {
				select {
				case <-connected:
					c.sendTestNotification(cmd)
				case <-ctx.Done():
					return nil
				case <-expired:
					return ErrNotLoggedIn
				}
			}

			select {
			case <-ctx.Done():
				return nil
			case <-expired:
				return ErrNotLoggedIn
			}
		},
	}

	cmd.Flags().BoolVar(&sendTest, "test", false, "ask the server for a test notification once connected")
	return cmd
}

var errNotDelivered = errors.New("test notification was not delivered")

// sendTestNotification 服务端登记连接可能晚于握手完成，没有送达时稍后重试
func (c *CLI) sendTestNotification(cmd *cobra.Command) {
	ctx := cmd.Context()
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(testNotificationInterval), testNotificationRetries),
		ctx,
	)

	err := backoff.RetryNotifyWithTimer(func() error {
		delivered, err := c.app.API.SendTestNotification(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if delivered == 0 {
			return errNotDelivered
		}
		return nil
	}, policy, nil, &clockTimer{clock: c.app.Clock()})

	switch {
	case err == nil, ctx.Err() != nil:
	case errors.Is(err, errNotDelivered):
		fmt.Fprintln(c.errOut, "Test notification was not delivered")
	default:
		fmt.Fprintln(c.errOut, "Error:", err)
	}
}

// clockTimer 让重试的等待走 App 的时钟
type clockTimer struct {
	clock clockwork.Clock
	timer clockwork.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clock.NewTimer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.Chan()
}
