package invitation

import (
	"github.com/smallbiznis/proppass/internal/invitation/event"
	"github.com/smallbiznis/proppass/internal/invitation/repository"
	"github.com/smallbiznis/proppass/internal/invitation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invitation.service",
	fx.Provide(repository.Provide),
	fx.Provide(event.NewOutboxPublisher),
	fx.Provide(service.New),
)
