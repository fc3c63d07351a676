package modules

import (
	"fmt"

	"github.com/iota-uz/servicedesk/pkg/application"
)

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return fmt.Errorf("module %s: %w", module.Name(), err)
		}
	}
	return nil
}
