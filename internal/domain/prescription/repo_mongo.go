package prescription

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medilink/telehealth/internal/platform/apperr"
	"github.com/medilink/telehealth/internal/platform/db"
)

type prescriptionRepoMongo struct{ coll *mongo.Collection }

func NewRepoMongo(database *mongo.Database) Repository {
	return &prescriptionRepoMongo{coll: database.Collection(db.PrescriptionsCollection)}
}

func (r *prescriptionRepoMongo) Create(ctx context.Context, p *Prescription) error {
	_, err := r.coll.InsertOne(ctx, p)
	return db.TranslateError(err, "prescription")
}

func (r *prescriptionRepoMongo) GetByID(ctx context.Context, id string) (*Prescription, error) {
	var p Prescription
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, db.TranslateError(err, "prescription")
	}
	return &p, nil
}

func (r *prescriptionRepoMongo) Update(ctx context.Context, p *Prescription) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return db.TranslateError(err, "prescription")
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("prescription not found")
	}
	return nil
}

func (r *prescriptionRepoMongo) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Prescription, int, error) {
	filter := bson.M{}
	if f.PatientID != "" {
		filter["patientId"] = f.PatientID
	}
	if f.DoctorID != "" {
		filter["doctorId"] = f.DoctorID
	}
	if f.IsActive != nil {
		filter["isActive"] = *f.IsActive
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, 0, err
	}
	var out []*Prescription
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, int(total), nil
}

func (r *prescriptionRepoMongo) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"isActive": true, "expiresAt": bson.M{"$lt": now}},
		bson.M{"$set": bson.M{"isActive": false, "updatedAt": now}})
	if err != nil {
		return 0, err
	}
	return int(res.ModifiedCount), nil
}
