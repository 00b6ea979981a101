package niotcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResultFirstResolveWins(t *testing.T) {
	r := newResult()
	require.Nil(t, r.Err())
	select {
	case <-r.Done():
		t.Fatal("done before resolve")
	default:
	}

	r.resolve(ErrConnectionClosed)
	r.resolve(nil)
	<-r.Done()
	require.ErrorIs(t, r.Err(), ErrConnectionClosed)
	require.False(t, r.Canceled())
}

func TestResultCancel(t *testing.T) {
	r := newResult()
	r.Cancel()
	r.resolve(nil)
	require.True(t, r.Canceled())
	require.ErrorIs(t, r.Wait(context.Background()), ErrCanceled)
}

func TestResultWaitContext(t *testing.T) {
	r := newResult()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)

	go r.resolve(nil)
	require.NoError(t, r.Wait(context.Background()))
}

func TestResultNilSafe(t *testing.T) {
	var r *Result
	require.NotPanics(t, func() { r.resolve(ErrCanceled) })
}
