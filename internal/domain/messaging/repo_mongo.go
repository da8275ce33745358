package messaging

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medilink/telehealth/internal/platform/db"
)

type messageRepoMongo struct{ coll *mongo.Collection }

func NewRepoMongo(database *mongo.Database) Repository {
	return &messageRepoMongo{coll: database.Collection(db.MessagesCollection)}
}

func (r *messageRepoMongo) Create(ctx context.Context, m *Message) error {
	_, err := r.coll.InsertOne(ctx, m)
	return db.TranslateError(err, "message")
}

func (r *messageRepoMongo) ListByConsultation(ctx context.Context, consultationID string) ([]*Message, error) {
	cur, err := r.coll.Find(ctx,
		bson.M{"consultationId": consultationID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []*Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepoMongo) MarkRead(ctx context.Context, consultationID, readerID string) (int, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"consultationId": consultationID, "senderId": bson.M{"$ne": readerID}, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true}})
	if err != nil {
		return 0, err
	}
	return int(res.ModifiedCount), nil
}
