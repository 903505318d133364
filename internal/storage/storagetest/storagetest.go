// Package storagetest contiene la suite de conformidad que todo driver de
// storage.Store debe pasar.
package storagetest

import (
	"context"
	"testing"

	"github.com/dropDatabas3/brokerdisco/internal/storage"
	"github.com/stretchr/testify/require"
)

// Factory abre un Store para namespace. Llamadas con el mismo namespace deben
// devolver Stores sobre el mismo backend.
type Factory func(t *testing.T, namespace string) storage.Store

// Run ejecuta la suite.
func Run(t *testing.T, open Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		s := open(t, "missing")
		_, err := s.Get(ctx, "nope")
		require.ErrorIs(t, err, storage.ErrNotFound)
		require.True(t, storage.IsNotFound(err))
	})

	t.Run("put get remove", func(t *testing.T) {
		s := open(t, "crud")
		require.NoError(t, s.Put(ctx, "k", "v1"))
		v, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "v1", v)

		require.NoError(t, s.Put(ctx, "k", "v2"))
		v, err = s.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "v2", v)

		require.NoError(t, s.Remove(ctx, "k"))
		_, err = s.Get(ctx, "k")
		require.ErrorIs(t, err, storage.ErrNotFound)

		// remover dos veces no es error
		require.NoError(t, s.Remove(ctx, "k"))
	})

	t.Run("same namespace shares writes", func(t *testing.T) {
		a := open(t, "shared")
		b := open(t, "shared")
		require.NoError(t, a.Put(ctx, "winner", "com.example.broker"))
		v, err := b.Get(ctx, "winner")
		require.NoError(t, err)
		require.Equal(t, "com.example.broker", v)
	})

	t.Run("namespaces are isolated", func(t *testing.T) {
		client := open(t, "client")
		brokerSide := open(t, "broker")
		require.NotEqual(t, client.Namespace(), brokerSide.Namespace())
		require.NoError(t, client.Put(ctx, "winner", "com.example.broker"))
		_, err := brokerSide.Get(ctx, "winner")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}
