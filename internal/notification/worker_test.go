package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func response(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString("")),
	}
}

// recordingNotifier captures Notify calls.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []Event
	wg    *sync.WaitGroup
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, event EventType, recipientID int64, payload map[string]any) error {
	r.mu.Lock()
	r.calls = append(r.calls, Event{Type: event, RecipientID: recipientID, Payload: payload})
	r.mu.Unlock()
	if r.wg != nil {
		r.wg.Done()
	}
	return r.err
}

func TestWorkerPool_Publish(t *testing.T) {
	wp := NewWorkerPool(1, 1, &recordingNotifier{})

	wp.Publish(Event{Type: BookingConfirmed, RecipientID: 123})

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, int64(123), job.RecipientID)
		assert.Equal(t, BookingConfirmed, job.Type)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_PublishDropsWhenQueueFull(t *testing.T) {
	wp := NewWorkerPool(1, 1, &recordingNotifier{})

	done := make(chan struct{})
	go func() {
		wp.Publish(Event{Type: SlotCreated, RecipientID: 1})
		wp.Publish(Event{Type: SlotCreated, RecipientID: 2}) // queue full, must not block
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
	assert.Len(t, wp.Jobs(), 1)
}

func TestWorkerPool_DeliversToNotifier(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)
	notifier := &recordingNotifier{wg: &wg, err: fmt.Errorf("push service down")}

	wp := NewWorkerPool(2, 4, notifier)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	wp.Publish(Event{Type: BookingRequested, RecipientID: 10, Payload: map[string]any{"bookingId": 1}})
	wp.Publish(Event{Type: BookingRequested, RecipientID: 11, Payload: map[string]any{"bookingId": 2}})
	wg.Wait()

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	recipients := []int64{notifier.calls[0].RecipientID, notifier.calls[1].RecipientID}
	assert.ElementsMatch(t, []int64{10, 11}, recipients)
}

func TestPushNotifier_Notify(t *testing.T) {
	t.Run("sends notification for one subscription", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		notifier := NewPushNotifier(gormDB, &webpush.Options{})

		var sent []byte
		notifier.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "test_p256dh", sub.Keys.P256dh)
				sent = payload
				return response(http.StatusCreated), nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE user_id = \$1`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "user_id", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/push", 7, "test_p256dh", "test_auth", time.Now()))

		err := notifier.Notify(context.Background(), BookingConfirmed, 7, map[string]any{"bookingId": 3})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())

		var msg map[string]any
		require.NoError(t, json.Unmarshal(sent, &msg))
		assert.Equal(t, "booking.confirmed", msg["type"])
		assert.Equal(t, float64(3), msg["payload"].(map[string]any)["bookingId"])
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		notifier := NewPushNotifier(gormDB, &webpush.Options{})
		notifier.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return response(http.StatusGone), nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE user_id = \$1`).
			WithArgs(int64(8)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "user_id", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/expired", 8, "p", "a", time.Now()))
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = \$1`).
			WithArgs("https://example.com/expired").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		require.NoError(t, notifier.Notify(context.Background(), BookingCancelled, 8, nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no subscriptions sends nothing", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		notifier := NewPushNotifier(gormDB, &webpush.Options{})
		notifier.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				t.Fatal("sender must not be called")
				return nil, nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE user_id = \$1`).
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "user_id", "p256dh", "auth", "created_at"}))

		require.NoError(t, notifier.Notify(context.Background(), SlotDeleted, 9, nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
