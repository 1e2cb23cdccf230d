package membership

import (
	"github.com/smallbiznis/proppass/internal/membership/repository"
	"github.com/smallbiznis/proppass/internal/membership/service"
	"go.uber.org/fx"
)

var Module = fx.Module("membership.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
