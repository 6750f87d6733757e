package profiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usersCollection = "users"

type profileDocument struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	Email             string             `bson:"email"`
	Password          string             `bson:"password"`
	FullName          string             `bson:"full_name"`
	Bio               string             `bson:"bio,omitempty"`
	AvatarURL         string             `bson:"avatar_url,omitempty"`
	Institute         string             `bson:"institute,omitempty"`
	Course            string             `bson:"course,omitempty"`
	Stream            string             `bson:"stream,omitempty"`
	Interests         []string           `bson:"interests"`
	LastQualification string             `bson:"lastQualification,omitempty"`
	Aim               string             `bson:"aim,omitempty"`
	StudyHours        string             `bson:"studyHours,omitempty"`
	PreferredContent  string             `bson:"preferredContent,omitempty"`
	ProfileCompletion int                `bson:"profileCompletion"`
	DonorVerified     bool               `bson:"donorVerified"`
	DonorAmount       *float64           `bson:"donorAmount,omitempty"`
	DonorAt           *time.Time         `bson:"donorAt,omitempty"`
	CreatedAt         time.Time          `bson:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at"`
}

func (d profileDocument) toProfile() *Profile {
	return &Profile{
		ID:                d.ID.Hex(),
		Email:             d.Email,
		PasswordHash:      d.Password,
		FullName:          d.FullName,
		Bio:               d.Bio,
		AvatarURL:         d.AvatarURL,
		Institute:         d.Institute,
		Course:            d.Course,
		Stream:            d.Stream,
		Interests:         d.Interests,
		LastQualification: d.LastQualification,
		Aim:               d.Aim,
		StudyHours:        d.StudyHours,
		PreferredContent:  d.PreferredContent,
		ProfileCompletion: d.ProfileCompletion,
		DonorVerified:     d.DonorVerified,
		DonorAmount:       d.DonorAmount,
		DonorAt:           d.DonorAt,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

type mongoRepository struct {
	users *mongo.Collection
}

// NewMongoRepository stores profiles in the users collection of db.
func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{users: db.Collection(usersCollection)}
}

// EnsureIndexes creates the unique email index.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create users email index: %w", err)
	}
	return nil
}

func (r *mongoRepository) Create(ctx context.Context, p *Profile) error {
	doc := profileDocument{
		ID:                primitive.NewObjectID(),
		Email:             p.Email,
		Password:          p.PasswordHash,
		FullName:          p.FullName,
		Interests:         p.Interests,
		ProfileCompletion: p.ProfileCompletion,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if doc.Interests == nil {
		doc.Interests = []string{}
	}
	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	p.ID = doc.ID.Hex()
	return nil
}

func (r *mongoRepository) GetByID(ctx context.Context, id string) (*Profile, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *mongoRepository) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoRepository) findOne(ctx context.Context, filter bson.M) (*Profile, error) {
	var doc profileDocument
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return doc.toProfile(), nil
}

func (r *mongoRepository) GetByIDs(ctx context.Context, ids []string) ([]Profile, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []Profile{}, nil
	}

	cursor, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": oids}},
		options.Find().SetProjection(bson.M{"password": 0}))
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	var docs []profileDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}

	out := make([]Profile, 0, len(docs))
	for _, d := range docs {
		out = append(out, *d.toProfile())
	}
	return out, nil
}

func (r *mongoRepository) Update(ctx context.Context, p *Profile) (*Profile, error) {
	oid, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return nil, ErrNotFound
	}
	interests := p.Interests
	if interests == nil {
		interests = []string{}
	}
	set := bson.M{
		"full_name":         p.FullName,
		"bio":               p.Bio,
		"avatar_url":        p.AvatarURL,
		"institute":         p.Institute,
		"course":            p.Course,
		"stream":            p.Stream,
		"interests":         interests,
		"lastQualification": p.LastQualification,
		"aim":               p.Aim,
		"studyHours":        p.StudyHours,
		"preferredContent":  p.PreferredContent,
		"profileCompletion": p.ProfileCompletion,
		"updated_at":        p.UpdatedAt,
	}
	return r.findOneAndSet(ctx, oid, set)
}

func (r *mongoRepository) MarkDonor(ctx context.Context, id string, amount float64, at time.Time) (*Profile, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc profileDocument
	err = r.users.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "donorVerified": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{
			"donorVerified": true,
			"donorAmount":   amount,
			"donorAt":       at,
			"updated_at":    at,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Already a donor, or no such profile.
		return r.GetByID(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record donation: %w", err)
	}
	return doc.toProfile(), nil
}

func (r *mongoRepository) findOneAndSet(ctx context.Context, oid primitive.ObjectID, set bson.M) (*Profile, error) {
	var doc profileDocument
	err := r.users.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return doc.toProfile(), nil
}
