package main

import (
	"context"
	logg "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jaam8/messenger_poll_bot/internal/api"
	"github.com/jaam8/messenger_poll_bot/internal/config"
	"github.com/jaam8/messenger_poll_bot/internal/mattermost"
	"github.com/jaam8/messenger_poll_bot/internal/messenger"
	"github.com/jaam8/messenger_poll_bot/internal/metrics"
	"github.com/jaam8/messenger_poll_bot/internal/models"
	"github.com/jaam8/messenger_poll_bot/internal/repository/memory"
	mongorepo "github.com/jaam8/messenger_poll_bot/internal/repository/mongo"
	tarantoolrepo "github.com/jaam8/messenger_poll_bot/internal/repository/tarantool"
	srv "github.com/jaam8/messenger_poll_bot/internal/service"
	"github.com/jaam8/messenger_poll_bot/pkg/logger"
	"github.com/jaam8/messenger_poll_bot/pkg/mongodb"
	"github.com/jaam8/messenger_poll_bot/pkg/tarantool"
	"github.com/jonboulle/clockwork"
	"github.com/mattermost/mattermost-server/v6/model"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		logg.Fatalf("failed to load config: %s", err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		logg.Fatalf("failed to initalize logger: %s", err)
	}
	defer func() { _ = log.Sync() }()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	clock := clockwork.NewRealClock()

	users, polls, closeStorage, err := openStorage(ctx, cfg, log, clock)
	if err != nil {
		logg.Fatalf("failed to open %s storage: %s", cfg.Storage, err)
	}
	defer closeStorage()

	var (
		sender    srv.Sender
		wsClient  *model.WebSocketClient
		mmBotID   string
		mmChannel <-chan *model.WebSocketEvent
		limits    models.PromptLimits
	)
	switch cfg.Platform {
	case config.PlatformMattermost:
		client := model.NewAPIv4Client(cfg.Mattermost.URL)
		client.SetToken(cfg.Mattermost.BotToken)
		user, _, err := client.GetUser("me", "")
		if err != nil {
			logg.Fatalf("failed to get user: %s", err)
		}
		mmBotID = user.Id
		wsClient, err = model.NewWebSocketClient4(cfg.Mattermost.WsURL, cfg.Mattermost.BotToken)
		if err != nil {
			logg.Fatalf("failed to connect to webSocket: %v", err)
		}
		wsClient.Listen()
		mmChannel = wsClient.EventChannel
		sender = mattermost.NewSender(client, mmBotID, cfg.Mattermost.ActionURL, cfg.Mattermost.ActionSecret, log)
	default:
		sender = messenger.NewClient(cfg.Messenger, log)
		limits = messenger.PromptLimits()
	}

	identity := srv.NewIdentityService(users, log, m, clock)
	pollService := srv.NewPollService(polls, log, m, clock)
	broadcasts := srv.NewBroadcastService(identity, pollService, sender, log, m, cfg.PollLifetime, cfg.BroadcastWorkers, limits)
	router := srv.NewVoteRouter(identity, pollService, log, m)
	interpreter := srv.NewCommandInterpreter(broadcasts, log, cfg.OperatorID, cfg.ContactURL)
	dispatcher := srv.NewDispatcher(router, interpreter, log)

	handler := api.New(dispatcher, sender, log, m, api.Config{
		Platform:     cfg.Platform,
		VerifyToken:  cfg.Messenger.VerifyToken,
		AppSecret:    cfg.Messenger.AppSecret,
		ActionSecret: cfg.Mattermost.ActionSecret,
	})
	server := api.NewServer(handler, reg, log)

	if wsClient != nil {
		server.EnableMattermostActions()
		go mattermost.Listen(ctx, mmChannel, mmBotID, log, handler.HandleMessage)
	} else {
		server.EnableMessengerWebhook()
	}

	go func() {
		if err := server.Start(":" + cfg.RestPort); err != nil {
			log.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown http server", zap.Error(err))
	}
	if wsClient != nil {
		wsClient.Close()
	}
	log.Info("server graceful stopped")
}

func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger, clock clockwork.Clock) (srv.UserRepository, srv.PollRepository, func(), error) {
	switch cfg.Storage {
	case config.StorageMongo:
		client, db, err := mongodb.New(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Error("failed to disconnect from mongodb", zap.Error(err))
			}
		}
		return mongorepo.NewUserRepository(db, log), mongorepo.NewPollRepository(db, log), closeFn, nil
	case config.StorageMemory:
		users := memory.NewUserRepository()
		// nobody can verify users in memory mode, so the operator receives broadcasts
		_, _ = users.Register(ctx, models.NewUser(cfg.OperatorID, clock.Now()))
		users.SetVerified(cfg.OperatorID, true)
		log.Warn("using in-memory storage, data is lost on restart")
		return users, memory.NewPollRepository(), func() {}, nil
	default:
		conn, err := tarantool.New(cfg.Tarantool)
		if err != nil {
			return nil, nil, nil, err
		}
		if err = tarantool.Bootstrap(conn); err != nil {
			_ = conn.Close()
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := conn.CloseGraceful(); err != nil {
				log.Error("failed to close tarantool connection", zap.Error(err))
			}
		}
		return tarantoolrepo.NewUserRepository(conn, log), tarantoolrepo.NewPollRepository(conn, log), closeFn, nil
	}
}
