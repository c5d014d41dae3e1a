package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	nextID        int64
	notifications map[int64]Notification
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{nextID: 1, notifications: make(map[int64]Notification)}
}

func (f *fakeRepo) Insert(_ context.Context, n Notification) (Notification, error) {
	n.ID = f.nextID
	f.nextID++
	n.CreatedAt = time.Now()
	f.notifications[n.ID] = n
	return n, nil
}

func (f *fakeRepo) List(_ context.Context, recipientID int64, unreadOnly bool, page, perPage int) ([]Notification, int, error) {
	var all []Notification
	for _, n := range f.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		all = append(all, n)
	}
	total := len(all)
	start := (page - 1) * perPage
	if start >= total {
		return nil, total, nil
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (f *fakeRepo) UnreadCount(_ context.Context, recipientID int64) (int, error) {
	count := 0
	for _, n := range f.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) MarkRead(_ context.Context, id int64) error {
	n, ok := f.notifications[id]
	if !ok {
		return ErrNotFound
	}
	n.IsRead = true
	f.notifications[id] = n
	return nil
}

func (f *fakeRepo) MarkAllRead(_ context.Context, recipientID int64) error {
	for id, n := range f.notifications {
		if n.RecipientID == recipientID {
			n.IsRead = true
			f.notifications[id] = n
		}
	}
	return nil
}

type fakeMail struct {
	enqueued []int64
	err      error
}

func (f *fakeMail) EnqueueNotificationEmail(_ context.Context, n Notification) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, n.ID)
	return nil
}

func TestEmitStoresAndEnqueues(t *testing.T) {
	repo := newFakeRepo()
	mail := &fakeMail{}
	svc := NewService(repo, mail, nil)

	n, err := svc.Emit(context.Background(), Notification{
		RecipientID: 5,
		Title:       "Request Fulfilled",
		Message:     "Your request for Surgical Gloves has been fulfilled",
		Type:        TypeRequest,
		Reference:   &Reference{Kind: RefRequest, ID: 12},
	})
	require.NoError(t, err)
	require.NotZero(t, n.ID)
	require.False(t, n.IsRead)
	require.Equal(t, []int64{n.ID}, mail.enqueued)
}

func TestEmitDefaultsTypeAndValidates(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)

	n, err := svc.Emit(context.Background(), Notification{Title: "t", Message: "m"})
	require.NoError(t, err)
	require.Equal(t, TypeSystem, n.Type)

	_, err = svc.Emit(context.Background(), Notification{Message: "m"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Emit(context.Background(), Notification{Title: "t"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Emit(context.Background(), Notification{Title: "t", Message: "m", Type: "carrier-pigeon"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestEmitSurvivesMailFailure(t *testing.T) {
	repo := newFakeRepo()
	mail := &fakeMail{err: errors.New("redis down")}
	svc := NewService(repo, mail, nil)

	n, err := svc.Emit(context.Background(), Notification{Title: "t", Message: "m", Type: TypeAlert})
	require.NoError(t, err)
	require.Contains(t, repo.notifications, n.ID)
}

func TestReadStateLifecycle(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	first, err := svc.Emit(ctx, Notification{RecipientID: 9, Title: "a", Message: "m"})
	require.NoError(t, err)
	_, err = svc.Emit(ctx, Notification{RecipientID: 9, Title: "b", Message: "m"})
	require.NoError(t, err)

	count, err := svc.UnreadCount(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.NoError(t, svc.MarkRead(ctx, first.ID))
	count, err = svc.UnreadCount(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, svc.MarkAllRead(ctx, 9))
	count, err = svc.UnreadCount(ctx, 9)
	require.NoError(t, err)
	require.Zero(t, count)

	require.ErrorIs(t, svc.MarkRead(ctx, 999), ErrNotFound)
}

func TestListPaginates(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Emit(ctx, Notification{RecipientID: 3, Title: "t", Message: "m"})
		require.NoError(t, err)
	}

	items, pagination, err := svc.List(ctx, 3, false, 1, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, 5, pagination.Total)
	require.Equal(t, 3, pagination.TotalPages)

	items, _, err = svc.List(ctx, 3, false, 3, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
}
