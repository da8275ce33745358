package identity

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medilink/telehealth/internal/platform/apperr"
	"github.com/medilink/telehealth/internal/platform/db"
)

type accountRepoMongo struct{ coll *mongo.Collection }

func NewRepoMongo(database *mongo.Database) Repository {
	return &accountRepoMongo{coll: database.Collection(db.UsersCollection)}
}

func (r *accountRepoMongo) Create(ctx context.Context, a *Account) error {
	_, err := r.coll.InsertOne(ctx, a)
	return db.TranslateError(err, "account")
}

func (r *accountRepoMongo) findOne(ctx context.Context, filter bson.M) (*Account, error) {
	var a Account
	if err := r.coll.FindOne(ctx, filter).Decode(&a); err != nil {
		return nil, db.TranslateError(err, "account")
	}
	return &a, nil
}

func (r *accountRepoMongo) GetByID(ctx context.Context, id string) (*Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *accountRepoMongo) GetByPhone(ctx context.Context, phone string) (*Account, error) {
	return r.findOne(ctx, bson.M{"phone": phone})
}

func (r *accountRepoMongo) Update(ctx context.Context, a *Account) error {
	set := bson.M{
		"name":            a.Name,
		"language":        a.Language,
		"experience":      a.Experience,
		"consultationFee": a.ConsultationFee,
		"updatedAt":       a.UpdatedAt,
	}
	unset := bson.M{}
	for field, value := range map[string]string{"email": a.Email, "specialization": a.Specialization, "bio": a.Bio} {
		if value == "" {
			unset[field] = ""
		} else {
			set[field] = value
		}
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return r.updateOne(ctx, bson.M{"_id": a.ID}, update, "account")
}

func (r *accountRepoMongo) updateOne(ctx context.Context, filter, update bson.M, entity string) error {
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return db.TranslateError(err, entity)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("%s not found", entity)
	}
	return nil
}

func (r *accountRepoMongo) SetAvailability(ctx context.Context, id string, available bool) error {
	return r.updateOne(ctx,
		bson.M{"_id": id, "role": RoleDoctor},
		bson.M{"$set": bson.M{"available": available, "updatedAt": time.Now().UTC()}},
		"doctor")
}

func (r *accountRepoMongo) UpdateRating(ctx context.Context, id string, rating float64, total int) error {
	return r.updateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"rating": rating, "totalConsultations": total, "updatedAt": time.Now().UTC()}},
		"doctor")
}

func (r *accountRepoMongo) ListAvailableDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Account, int, error) {
	filter := bson.M{"role": RoleDoctor, "available": true}
	if f.Specialization != "" {
		filter["specialization"] = bson.M{"$regex": "^" + regexp.QuoteMeta(f.Specialization) + "$", "$options": "i"}
	}
	if f.Language != "" {
		filter["language"] = bson.M{"$regex": "^" + regexp.QuoteMeta(f.Language) + "$", "$options": "i"}
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "rating", Value: -1}, {Key: "name", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var out []*Account
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, int(total), nil
}
