//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"context"

	"github.com/bionicotaku/lingo-services-coursevideo/internal/controllers"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/database"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/infrastructure/eventbus"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/repositories"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/server"
	"github.com/bionicotaku/lingo-services-coursevideo/internal/services"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(context.Context, *configloader.Loader, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet,
		database.ProviderSet,
		repositories.ProviderSet,
		wire.Bind(new(services.UploadRepositoryContract), new(*repositories.UploadRepository)),
		wire.Bind(new(services.VideoRepositoryContract), new(*repositories.VideoRepository)),
		wire.Bind(new(services.WorkflowEventRepositoryContract), new(*repositories.WorkflowEventRepository)),
		wire.Bind(new(services.LessonRepositoryContract), new(*repositories.LessonRepository)),
		provideTxManager,
		provideMultipartStore,
		providePlaybackSigner,
		eventbus.ProvidePublisher,
		provideEventPublisher,
		services.ProviderSet,
		controllers.ProviderSet,
		server.ProviderSet,
		newApp,
	))
}
