package storefactory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dropDatabas3/brokerdisco/internal/storage"
	sbolt "github.com/dropDatabas3/brokerdisco/internal/storage/bolt"
	sfs "github.com/dropDatabas3/brokerdisco/internal/storage/fs"
	smem "github.com/dropDatabas3/brokerdisco/internal/storage/memory"
	sredis "github.com/dropDatabas3/brokerdisco/internal/storage/redis"
	"go.uber.org/multierr"
)

// Factory abre Stores según Config.Driver. Los recursos que no pueden abrirse
// dos veces en el mismo proceso (archivo bolt, backend en memoria) se comparten.
type Factory struct {
	mu     sync.Mutex
	memory *smem.Backend
	bolts  map[string]*sbolt.DB
}

// New crea una Factory vacía.
func New() *Factory {
	return &Factory{
		memory: smem.NewBackend(),
		bolts:  make(map[string]*sbolt.DB),
	}
}

// Open abre un Store para cfg.
func (f *Factory) Open(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	if cfg.Namespace == "" {
		return nil, storage.ErrEmptyNamespace
	}
	driver, err := storage.ParseDriver(string(cfg.Driver))
	if err != nil {
		return nil, err
	}

	switch driver {
	case storage.DriverRedis:
		return sredis.Open(ctx, cfg)
	case storage.DriverBolt:
		db, err := f.boltDB(cfg.Bolt.Path)
		if err != nil {
			return nil, err
		}
		return db.Namespace(cfg.Namespace)
	case storage.DriverFS:
		return sfs.New(cfg.FS.Dir, cfg.Namespace)
	case storage.DriverMemory:
		return smem.NewOn(f.memory, cfg.Namespace), nil
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", driver)
	}
}

func (f *Factory) boltDB(path string) (*sbolt.DB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if db, ok := f.bolts[path]; ok {
		return db, nil
	}
	db, err := sbolt.Open(path)
	if err != nil {
		return nil, err
	}
	f.bolts[path] = db
	return db, nil
}

// Close cierra los archivos bolt abiertos.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	for path, db := range f.bolts {
		err = multierr.Append(err, db.Close())
		delete(f.bolts, path)
	}
	return err
}
