package crypto

import (
	"go.uber.org/fx"

	"github.com/beaconly/beacon/internal/config"
)

// Key is the parsed credential-encryption key.
type Key []byte

func NewKey(cfg config.Config) (Key, error) {
	key, err := ParseKey(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	return Key(key), nil
}

var Module = fx.Module("crypto",
	fx.Provide(NewKey),
)
