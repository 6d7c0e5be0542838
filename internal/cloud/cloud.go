package cloud

import (
	"fmt"

	"github.com/julianstephens/keel/internal/constants"
)

// New builds the transport named by provider.
func New(provider, container string, handles HandleStore, handleKey string) (Transport, error) {
	switch provider {
	case "", constants.SyncProviderNone:
		return None{}, nil
	case constants.SyncProviderManaged:
		return NewManaged(container), nil
	case constants.SyncProviderFolder:
		return NewFolder(handles, handleKey), nil
	default:
		return nil, fmt.Errorf("unknown sync provider %q (expected %s, %s or %s)", provider,
			constants.SyncProviderNone, constants.SyncProviderManaged, constants.SyncProviderFolder)
	}
}
