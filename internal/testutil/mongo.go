package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoURIEnv points tests at an existing server instead of a container.
const MongoURIEnv = "ANOMALYHUB_TEST_MONGO_URI"

var (
	mongoOnce   sync.Once
	mongoClient *mongo.Client
	mongoErr    error
)

// TestContext returns a context with a timeout suitable for store tests.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// SetupTestDB returns a fresh database that is dropped when t finishes. The
// server comes from ANOMALYHUB_TEST_MONGO_URI, or else a mongo:7 container
// shared by the package. Without either the test is skipped.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB test in short mode")
	}

	mongoOnce.Do(func() {
		mongoClient, mongoErr = connectTestMongo()
	})
	if mongoErr != nil {
		t.Skipf("MongoDB unavailable: %v", mongoErr)
	}

	name := fmt.Sprintf("anomalyhub_test_%s_%d", sanitizeDBName(t.Name()), time.Now().UnixNano())
	if len(name) > 60 {
		name = name[len(name)-60:]
	}
	db := mongoClient.Database(name)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
	})
	return db
}

func connectTestMongo() (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	uri := os.Getenv(MongoURIEnv)
	if uri == "" {
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "mongo:7",
				ExposedPorts: []string{"27017/tcp"},
				WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(90 * time.Second),
			},
			Started: true,
		})
		if err != nil {
			return nil, fmt.Errorf("start mongo container: %w", err)
		}
		endpoint, err := container.PortEndpoint(ctx, "27017/tcp", "mongodb")
		if err != nil {
			return nil, fmt.Errorf("mongo container endpoint: %w", err)
		}
		uri = endpoint
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

func sanitizeDBName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, s)
}
