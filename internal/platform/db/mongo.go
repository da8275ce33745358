package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names shared by the document-store repositories.
const (
	UsersCollection         = "users"
	ConsultationsCollection = "consultations"
	MessagesCollection      = "messages"
	PrescriptionsCollection = "prescriptions"
)

// ConnectMongo dials uri, verifies the primary is reachable and returns the
// client together with the named database.
func ConnectMongo(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, client.Database(database), nil
}

// IndexSpec describes the indexes a collection needs.
type IndexSpec struct {
	Collection string
	Models     []mongo.IndexModel
}

// Indexes returns the index set the repositories rely on for listing and the
// booking conflict check.
func Indexes() []IndexSpec {
	return []IndexSpec{
		{
			Collection: UsersCollection,
			Models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_phone")},
				{
					Keys: bson.D{{Key: "email", Value: 1}},
					Options: options.Index().SetUnique(true).SetName("uniq_email").
						SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string", "$gt": ""}}),
				},
				{Keys: bson.D{{Key: "role", Value: 1}, {Key: "specialization", Value: 1}, {Key: "available", Value: 1}}},
			},
		},
		{
			Collection: ConsultationsCollection,
			Models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "status", Value: 1}}},
				{Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "status", Value: 1}}},
				{Keys: bson.D{{Key: "scheduledAt", Value: 1}}},
			},
		},
		{
			Collection: MessagesCollection,
			Models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "consultationId", Value: 1}, {Key: "timestamp", Value: 1}}},
			},
		},
		{
			Collection: PrescriptionsCollection,
			Models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "createdAt", Value: -1}}},
				{Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "createdAt", Value: -1}}},
				{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "expiresAt", Value: 1}}},
			},
		},
	}
}

// EnsureIndexes creates every index from Indexes. Existing identical indexes
// are left untouched by the server.
func EnsureIndexes(ctx context.Context, database *mongo.Database) (int, error) {
	created := 0
	for _, spec := range Indexes() {
		names, err := database.Collection(spec.Collection).Indexes().CreateMany(ctx, spec.Models)
		if err != nil {
			return created, fmt.Errorf("create indexes on %s: %w", spec.Collection, err)
		}
		created += len(names)
	}
	return created, nil
}
