package consultation

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medilink/telehealth/internal/platform/apperr"
	"github.com/medilink/telehealth/internal/platform/db"
)

type consultationRepoMongo struct{ coll *mongo.Collection }

func NewRepoMongo(database *mongo.Database) Repository {
	return &consultationRepoMongo{coll: database.Collection(db.ConsultationsCollection)}
}

var activeStatuses = bson.A{string(StatusScheduled), string(StatusInProgress)}

func (r *consultationRepoMongo) Create(ctx context.Context, c *Consultation) error {
	_, err := r.coll.InsertOne(ctx, c)
	return db.TranslateError(err, "consultation")
}

func (r *consultationRepoMongo) GetByID(ctx context.Context, id string) (*Consultation, error) {
	var c Consultation
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, db.TranslateError(err, "consultation")
	}
	return &c, nil
}

func (r *consultationRepoMongo) Update(ctx context.Context, c *Consultation) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": c.ID}, c)
	if err != nil {
		return db.TranslateError(err, "consultation")
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("consultation not found")
	}
	return nil
}

func (r *consultationRepoMongo) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*Consultation, error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var out []*Consultation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *consultationRepoMongo) ActiveForDoctorBetween(ctx context.Context, doctorID string, from, to time.Time) ([]*Consultation, error) {
	return r.find(ctx, bson.M{
		"doctorId":    doctorID,
		"status":      bson.M{"$in": activeStatuses},
		"scheduledAt": bson.M{"$gt": from, "$lt": to},
	})
}

func (r *consultationRepoMongo) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Consultation, int, error) {
	filter := bson.M{}
	if f.PatientID != "" {
		filter["patientId"] = f.PatientID
	}
	if f.DoctorID != "" {
		filter["doctorId"] = f.DoctorID
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out, err := r.find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "scheduledAt", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, 0, err
	}
	return out, int(total), nil
}

func (r *consultationRepoMongo) RatingsForDoctor(ctx context.Context, doctorID string) ([]int, error) {
	rated, err := r.find(ctx,
		bson.M{"doctorId": doctorID, "status": string(StatusCompleted), "rating": bson.M{"$exists": true}},
		options.Find().SetProjection(bson.M{"rating": 1}))
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(rated))
	for _, c := range rated {
		if c.Rating != nil {
			out = append(out, *c.Rating)
		}
	}
	return out, nil
}

func (r *consultationRepoMongo) MarkNoShows(ctx context.Context, cutoff, now time.Time) (int, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"status": string(StatusScheduled), "scheduledAt": bson.M{"$lt": cutoff}},
		bson.M{"$set": bson.M{"status": string(StatusNoShow), "updatedAt": now}})
	if err != nil {
		return 0, err
	}
	return int(res.ModifiedCount), nil
}

func (r *consultationRepoMongo) SetPrescription(ctx context.Context, id, prescriptionID string, now time.Time) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"prescriptionId": prescriptionID, "updatedAt": now}})
	if err != nil {
		return db.TranslateError(err, "consultation")
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("consultation not found")
	}
	return nil
}
