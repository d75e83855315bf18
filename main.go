package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/zapprosite/zappro-obras/api"
	"github.com/zapprosite/zappro-obras/notify"
	"github.com/zapprosite/zappro-obras/storage"
	"github.com/zapprosite/zappro-obras/stream"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	tasksTableName := os.Getenv("TASKS_TABLE")
	teamsTableName := os.Getenv("TEAMS_TABLE")
	changeQueueName := os.Getenv("CHANGE_FEED_QUEUE")
	if connStr == "" || tasksTableName == "" || teamsTableName == "" || changeQueueName == "" {
		log.Fatal("missing storage config")
	}
	if init, err := strconv.ParseBool(os.Getenv("STORAGE_INIT")); err == nil && init {
		tables := []string{tasksTableName, teamsTableName}
		queues := []string{changeQueueName}
		if err := storage.EnsureResources(context.Background(), connStr, tables, queues); err != nil {
			log.Fatalf("storage init: %v", err)
		}
		log.Info("storage resources ensured")
	}
	store, err := storage.New(connStr, tasksTableName, teamsTableName, changeQueueName)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	redisOpts, err := redis.ParseURL(redisConn)
	if err != nil {
		parts := strings.Split(redisConn, ",")
		redisOpts = &redis.Options{Addr: parts[0]}
		for _, p := range parts[1:] {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch strings.ToLower(kv[0]) {
			case "password":
				redisOpts.Password = kv[1]
			case "ssl":
				if strings.ToLower(kv[1]) == "true" {
					redisOpts.TLSConfig = &tls.Config{}
				}
			}
		}
	}
	rc := redis.NewClient(redisOpts)

	cacheTTL := 5 * time.Minute
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid CACHE_TTL: %v", err)
		}
		cacheTTL = d
	}
	cached := storage.NewCache(store, rc, cacheTTL)

	dedupTTL := 24 * time.Hour
	if v := os.Getenv("DEDUPER_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid DEDUPER_TTL: %v", err)
		}
		dedupTTL = d
	}
	deduper := api.NewRedisDeduper(rc, dedupTTL)

	var auth *api.Auth
	if os.Getenv("AUTH_TEST_MODE") == "1" {
		auth = api.NewAuth(nil, "", "")
	} else {
		jwtAudience := os.Getenv("AUTH_AUDIENCE")
		authDomain := os.Getenv("AUTH_DOMAIN")
		if jwtAudience == "" || authDomain == "" {
			log.Fatal("missing auth config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", authDomain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, jwtAudience, "https://"+authDomain+"/")
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Idempotency-Key"},
	}))
	e.Use(api.RequestDecompression())

	logger := log.New()
	api.Register(e, cached, auth, deduper, logger)

	changeChannel := os.Getenv("CHANGE_FEED_CHANNEL")
	if changeChannel == "" {
		changeChannel = "obras:changes"
	}
	broker := stream.NewBroker()
	stream.Register(e, cached, auth, broker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go notify.NewDispatcher(store, rc, changeChannel, logger).Run(ctx)
	go stream.SubscribeUpdates(ctx, logger, rc, changeChannel, broker)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}
