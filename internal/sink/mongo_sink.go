package sink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/chtzvt/tablemapper/internal/secrets"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// documentInserter is the part of a collection the sink needs.
type documentInserter interface {
	insert(ctx context.Context, doc bson.M) error
	close(ctx context.Context) error
}

type collectionInserter struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func (c collectionInserter) insert(ctx context.Context, doc bson.M) error {
	_, err := c.coll.InsertOne(ctx, doc)
	return err
}

func (c collectionInserter) close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// MongoSink stores each chunk as one document {name, payload, created_at}.
type MongoSink struct {
	uri        string
	database   string
	collection string

	connect func(ctx context.Context) (documentInserter, error)

	mu       sync.Mutex
	inserter documentInserter
	closed   bool
}

func NewMongoSink(opts map[string]interface{}, store secrets.Store) (Sink, error) {
	database, _ := opts["database"].(string)
	if database == "" {
		return nil, errors.New("mongo sink requires 'database' option")
	}
	uri, _ := opts["uri"].(string)
	if uri == "" {
		host, _ := opts["host"].(string)
		if host == "" {
			return nil, errors.New("mongo sink requires 'uri' or 'host' option")
		}
		u := url.URL{Scheme: "mongodb", Host: net.JoinHostPort(host, strconv.Itoa(toInt(opts["port"], 27017)))}
		if user, _ := opts["username"].(string); user != "" {
			u.User = url.UserPassword(user, optionalSecret(store, opts, "password_secret", "MONGO_PASSWORD"))
		}
		uri = u.String()
	}
	m := &MongoSink{
		uri:        uri,
		database:   database,
		collection: stringOpt(opts, "collection", "tablemapper_chunks"),
	}
	m.connect = m.dial
	return m, nil
}

func (m *MongoSink) dial(ctx context.Context) (documentInserter, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(m.uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return collectionInserter{client: client, coll: client.Database(m.database).Collection(m.collection)}, nil
}

func (m *MongoSink) Open(ctx context.Context, name string) (SinkWriter, error) {
	inserter, err := m.client(ctx)
	if err != nil {
		return nil, err
	}
	return newBufferWriter(func(payload []byte) error {
		doc := bson.M{
			"name":       name,
			"payload":    payload,
			"created_at": time.Now().UTC(),
		}
		if err := inserter.insert(ctx, doc); err != nil {
			return fmt.Errorf("insert chunk %s: %w", name, err)
		}
		return nil
	}), nil
}

func (m *MongoSink) client(ctx context.Context) (documentInserter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errSinkClosed
	}
	if m.inserter == nil {
		ins, err := m.connect(ctx)
		if err != nil {
			return nil, err
		}
		m.inserter = ins
	}
	return m.inserter, nil
}

// Close disconnects the client, waiting up to 10s for in-flight operations.
func (m *MongoSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.inserter == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := m.inserter.close(ctx)
	m.inserter = nil
	return err
}

func init() {
	Register("mongo", NewMongoSink)
}
