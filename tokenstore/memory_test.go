package tokenstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-booking-session/principal"
	"github.com/jrsteele09/go-booking-session/tokenstore"
	"github.com/stretchr/testify/require"
)

func TestMemorySaveLoadRemove(t *testing.T) {
	ctx := context.Background()
	m := tokenstore.NewMemory()

	_, err := m.Load(ctx, principal.KindUser)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)

	require.NoError(t, m.Save(ctx, principal.KindUser, "T1", time.Hour))
	require.NoError(t, m.Save(ctx, principal.KindOwner, "O1", 0))

	got, err := m.Load(ctx, principal.KindUser)
	require.NoError(t, err)
	require.Equal(t, "T1", got)

	got, err = m.Load(ctx, principal.KindOwner)
	require.NoError(t, err)
	require.Equal(t, "O1", got)

	require.NoError(t, m.Remove(ctx, principal.KindUser))
	require.NoError(t, m.Remove(ctx, principal.KindUser))
	_, err = m.Load(ctx, principal.KindUser)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)

	got, err = m.Load(ctx, principal.KindOwner)
	require.NoError(t, err)
	require.Equal(t, "O1", got, "kinds are stored independently")
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	m := tokenstore.NewMemoryWithClock(func() time.Time { return now })

	require.NoError(t, m.Save(ctx, principal.KindUser, "T1", time.Minute))

	now = now.Add(59 * time.Second)
	_, err := m.Load(ctx, principal.KindUser)
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = m.Load(ctx, principal.KindUser)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestMemoryRejectsUnknownKind(t *testing.T) {
	err := tokenstore.NewMemory().Save(context.Background(), principal.Kind("admin"), "x", 0)
	require.ErrorIs(t, err, tokenstore.ErrInvalidKind)
}

func TestMemoryProviderSharesScope(t *testing.T) {
	ctx := context.Background()
	provider := tokenstore.MemoryProvider()

	a, err := provider("browser-1")
	require.NoError(t, err)
	b, err := provider("browser-1")
	require.NoError(t, err)
	other, err := provider("browser-2")
	require.NoError(t, err)

	require.NoError(t, a.Save(ctx, principal.KindUser, "T1", 0))

	got, err := b.Load(ctx, principal.KindUser)
	require.NoError(t, err)
	require.Equal(t, "T1", got)

	_, err = other.Load(ctx, principal.KindUser)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)

	_, err = provider("")
	require.ErrorIs(t, err, tokenstore.ErrInvalidScope)
}

func TestMemoryLoadKeepsEntrySavedDuringExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	var onTick func()
	clock := func() time.Time {
		if tick := onTick; tick != nil {
			onTick = nil
			tick()
		}
		return now
	}
	m := tokenstore.NewMemoryWithClock(clock)

	require.NoError(t, m.Save(ctx, principal.KindUser, "T1", time.Minute))
	now = now.Add(time.Hour)

	// The clock is read between the read and write locks of Load; a Save
	// landing there must not be deleted as if it were the expired entry.
	onTick = func() {
		require.NoError(t, m.Save(ctx, principal.KindUser, "T2", time.Hour))
	}
	got, err := m.Load(ctx, principal.KindUser)
	require.NoError(t, err)
	require.Equal(t, "T2", got)

	got, err = m.Load(ctx, principal.KindUser)
	require.NoError(t, err)
	require.Equal(t, "T2", got)
}
