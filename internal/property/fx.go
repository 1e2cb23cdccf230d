package property

import (
	"github.com/smallbiznis/proppass/internal/property/repository"
	"github.com/smallbiznis/proppass/internal/property/service"
	"go.uber.org/fx"
)

var Module = fx.Module("property.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
