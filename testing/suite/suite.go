package suite

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	expireDuration  = 120
	maxWaitDuration = 120 * time.Second
)

const (
	redisPort  = "6379/tcp"
	redisImage = "redis"
	redisTag   = "alpine"

	mongoPort     = "27017/tcp"
	mongoImage    = "mongo"
	mongoTag      = "7"
	mongoDatabase = "tictactoe_test"
)

type Suite struct {
	*testing.T
	Logger *slog.Logger

	Storage *redis.Client
	History *mongo.Database
}

// New - starts a disposable redis container for rooms.
func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), maxWaitDuration)
	t.Cleanup(func() {
		cancel()
	})

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("could not connect to docker: %v", err)
	}

	// exponential backoff-retry, because the application in the container might not be ready to accept connections yet
	pool.MaxWait = maxWaitDuration

	resource := run(t, pool, redisImage, redisTag)
	redisHost := resource.GetHostPort(redisPort)

	var redisClient *redis.Client
	if err = pool.Retry(func() error {
		redisClient = redis.NewClient(&redis.Options{
			Addr: redisHost,
		})
		return redisClient.Ping(ctx).Err()
	}); err != nil {
		if err = pool.Purge(resource); err != nil {
			t.Fatalf("could not purge resource: %v", err)
		}

		t.Fatalf("could not connect to redis: %v", err)
	}

	if err = redisClient.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("could not flush database: %v", err)
	}

	t.Cleanup(func() {
		_ = redisClient.Close()
	})

	return ctx, &Suite{
		T:       t,
		Logger:  logger,
		Storage: redisClient,
	}
}

// NewWithHistory - same as New plus a disposable mongo container for archived games.
func NewWithHistory(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	ctx, st := New(t)

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("could not connect to docker: %v", err)
	}

	pool.MaxWait = maxWaitDuration

	resource := run(t, pool, mongoImage, mongoTag)
	mongoHost := resource.GetHostPort(mongoPort)

	var mongoClient *mongo.Client
	if err = pool.Retry(func() error {
		mongoClient, err = mongo.Connect(ctx, options.Client().ApplyURI("mongodb://"+mongoHost))
		if err != nil {
			return err
		}
		return mongoClient.Ping(ctx, nil)
	}); err != nil {
		if err = pool.Purge(resource); err != nil {
			t.Fatalf("could not purge resource: %v", err)
		}

		t.Fatalf("could not connect to mongo: %v", err)
	}

	t.Cleanup(func() {
		_ = mongoClient.Disconnect(context.Background())
	})

	st.History = mongoClient.Database(mongoDatabase)

	return ctx, st
}

// run - pulls an image, creates a container based on it and runs it.
func run(t *testing.T, pool *dockertest.Pool, image, tag string) *dockertest.Resource {
	t.Helper()

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: image,
		Tag:        tag,
		Env:        []string{},
	}, func(config *docker.HostConfig) {
		// set AutoRemove to true so that stopped container goes away by itself
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("could not start resource: %v", err)
	}

	// never returns error
	_ = resource.Expire(expireDuration) // Tell docker to hard kill the container in 120 seconds

	t.Cleanup(func() {
		if err = pool.Purge(resource); err != nil {
			t.Errorf("could not purge resource: %v", err)
		}
	})

	return resource
}
