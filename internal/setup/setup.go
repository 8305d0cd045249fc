package setup

import (
	"github.com/unifeed-dev/unifeed/internal/config"
	"github.com/unifeed-dev/unifeed/internal/derivation"
	"github.com/unifeed-dev/unifeed/internal/handler"
	"github.com/unifeed-dev/unifeed/internal/jwt"
	"github.com/unifeed-dev/unifeed/internal/middleware"
	"github.com/unifeed-dev/unifeed/internal/queue"
	"github.com/unifeed-dev/unifeed/internal/service"
	"github.com/unifeed-dev/unifeed/internal/storage/fs"
	"github.com/unifeed-dev/unifeed/internal/storage/pg"
)

// Dependencies struct to hold all initialized dependencies.
type Dependencies struct {
	Cfg            *config.Config
	Storage        *pg.Storage
	Media          *fs.Storage
	Queue          *queue.Queue
	Handler        *handler.Handler
	AuthMiddleware *middleware.Auth
	Jwt            jwt.JwtService
	Cohorts        *service.Cohorts
}

// SetupDependencies initializes all dependencies required for the application
// and registers the pipeline's task handlers on the queue.
func SetupDependencies(cfg *config.Config) (*Dependencies, error) {
	storage, err := pg.New(cfg)
	if err != nil {
		return nil, err
	}

	media, err := fs.New(cfg.Public.MediaRoot)
	if err != nil {
		return nil, err
	}

	q := queue.New(storage, cfg.QueuePollInterval(), cfg.TaskLease())

	events := service.NewRenditionEvents(q)
	engine := derivation.NewLocalEngine(storage, media, storage, q, queue.KindGenerateRenditions, events)
	watcher := service.NewConversionWatcher(storage, media, storage, cfg.WatcherRecheckDelay())
	pruner := service.NewOriginalPruningReactor(storage, media, storage)
	progress := service.NewProgress(storage)
	upload := service.NewUpload(storage, media, engine, q, storage, cfg.Public.MaxPostPhotos)
	cohorts := service.NewCohorts(storage)

	q.Handle(queue.KindGenerateRenditions, engine.HandleTask)
	q.Handle(queue.KindConversionCheck, watcher.HandleTask)
	q.Handle(queue.KindPruneOriginal, pruner.HandleTask)

	jwtService := jwt.New(cfg.JwtKey(), cfg.JwtTTL())
	authMiddleware := middleware.NewAuth(jwtService)

	h := handler.New(progress, upload, storage, cohorts, storage, cfg)

	return &Dependencies{
		Cfg:            cfg,
		Storage:        storage,
		Media:          media,
		Queue:          q,
		Handler:        h,
		AuthMiddleware: authMiddleware,
		Jwt:            jwtService,
		Cohorts:        cohorts,
	}, nil
}
