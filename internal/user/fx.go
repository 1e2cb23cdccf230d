package user

import (
	"github.com/smallbiznis/proppass/internal/user/password"
	"github.com/smallbiznis/proppass/internal/user/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("user",
	fx.Provide(repository.Provide),
	fx.Provide(password.NewHasher),
)
