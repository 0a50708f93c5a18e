// Package mongostore stores users and tasks in MongoDB collections.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"todo-app/domain"
)

// Store is a domain.Store backed by a users and a tasks collection.
type Store struct {
	client *mongo.Client
	users  *mongo.Collection
	tasks  *mongo.Collection
}

// Connect dials uri and verifies the connection with a ping.
func Connect(ctx context.Context, uri, database, usersColl, tasksColl string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	db := client.Database(database)
	return &Store{client: client, users: db.Collection(usersColl), tasks: db.Collection(tasksColl)}, nil
}

// Init creates the unique username index and the owner listing index.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("username_unique"),
	}); err != nil {
		return err
	}
	_, err := s.tasks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
		Options: options.Index().SetName("owner_newest"),
	})
	return err
}

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	PasswordHash string             `bson:"password_hash"`
	CreatedAt    time.Time          `bson:"created_at"`
}

func (d userDoc) toDomain() domain.User {
	return domain.User{ID: d.ID.Hex(), Username: d.Username, PasswordHash: d.PasswordHash, CreatedAt: d.CreatedAt.UTC()}
}

type taskDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Text      string             `bson:"text"`
	Completed bool               `bson:"completed"`
	CreatedAt time.Time          `bson:"created_at"`
	UserID    string             `bson:"user_id"`
}

func (d taskDoc) toDomain() domain.Task {
	return domain.Task{ID: d.ID.Hex(), Text: d.Text, Completed: d.Completed, CreatedAt: d.CreatedAt.UTC(), Owner: d.UserID}
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	doc := userDoc{ID: primitive.NewObjectID(), Username: u.Username, PasswordHash: u.PasswordHash, CreatedAt: u.CreatedAt}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		return domain.User{}, translate(err)
	}
	return doc.toDomain(), nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

func (s *Store) FindUserByID(ctx context.Context, id string) (domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.User{}, domain.ErrNotFound
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (domain.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		return domain.User{}, translate(err)
	}
	return doc.toDomain(), nil
}

func (s *Store) ListTasks(ctx context.Context, owner string, skip, take int) ([]domain.Task, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(take))
	cur, err := s.tasks.Find(ctx, bson.M{"user_id": owner}, opts)
	if err != nil {
		return nil, err
	}
	var docs []taskDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, len(docs))
	for i, d := range docs {
		tasks[i] = d.toDomain()
	}
	return tasks, nil
}

func (s *Store) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	doc := taskDoc{
		ID:        primitive.NewObjectID(),
		Text:      t.Text,
		Completed: t.Completed,
		CreatedAt: t.CreatedAt.Truncate(time.Millisecond),
		UserID:    t.Owner,
	}
	if _, err := s.tasks.InsertOne(ctx, doc); err != nil {
		return domain.Task{}, translate(err)
	}
	return doc.toDomain(), nil
}

// toggleUpdate negates the stored flag server-side so the flip is a single
// atomic document update.
var toggleUpdate = mongo.Pipeline{
	{{Key: "$set", Value: bson.D{{Key: "completed", Value: bson.D{{Key: "$not", Value: bson.A{"$completed"}}}}}}},
}

func (s *Store) ToggleTask(ctx context.Context, owner, id string) (domain.Task, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Task{}, domain.ErrNotFound
	}
	var doc taskDoc
	err = s.tasks.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "user_id": owner},
		toggleUpdate,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return domain.Task{}, translate(err)
	}
	return doc.toDomain(), nil
}

func (s *Store) DeleteTask(ctx context.Context, owner, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrNotFound
	}
	res, err := s.tasks.DeleteOne(ctx, bson.M{"_id": oid, "user_id": owner})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return domain.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return domain.ErrConflict
	}
	return err
}
