package notes

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

const notesCollection = "notes"

type noteDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Title         string             `bson:"title"`
	Description   string             `bson:"description"`
	Subject       string             `bson:"subject"`
	Tags          []string           `bson:"tags"`
	FileName      string             `bson:"file_name"`
	FileURL       string             `bson:"file_url"`
	DownloadCount int                `bson:"download_count"`
	UserID        primitive.ObjectID `bson:"user_id"`
	CreatedAt     time.Time          `bson:"created_at"`
}

func (d noteDocument) toNote() Note {
	return Note{
		ID:            d.ID.Hex(),
		Title:         d.Title,
		Description:   d.Description,
		Subject:       d.Subject,
		Tags:          d.Tags,
		FileName:      d.FileName,
		FileURL:       d.FileURL,
		DownloadCount: d.DownloadCount,
		UserID:        d.UserID.Hex(),
		CreatedAt:     d.CreatedAt,
	}
}

type mongoRepository struct {
	notes *mongo.Collection
}

// NewMongoRepository stores notes in the notes collection of db. Owner ids
// are user ObjectIDs.
func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{notes: db.Collection(notesCollection)}
}

// EnsureIndexes creates the indexes backing the catalogue queries.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(notesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "download_count", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create notes indexes: %w", err)
	}
	return nil
}

func (r *mongoRepository) Create(ctx context.Context, n *Note) error {
	owner, err := primitive.ObjectIDFromHex(n.UserID)
	if err != nil {
		return fmt.Errorf("%w: owner id %q", ErrInvalid, n.UserID)
	}
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	doc := noteDocument{
		ID:            primitive.NewObjectID(),
		Title:         n.Title,
		Description:   n.Description,
		Subject:       n.Subject,
		Tags:          tags,
		FileName:      n.FileName,
		FileURL:       n.FileURL,
		DownloadCount: n.DownloadCount,
		UserID:        owner,
		CreatedAt:     n.CreatedAt,
	}
	if _, err := r.notes.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	n.ID = doc.ID.Hex()
	return nil
}

func (r *mongoRepository) GetByID(ctx context.Context, id string) (*Note, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc noteDocument
	if err := r.notes.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	n := doc.toNote()
	return &n, nil
}

func (r *mongoRepository) List(ctx context.Context) ([]Note, error) {
	return r.find(ctx, bson.M{}, bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
}

func (r *mongoRepository) ListByUser(ctx context.Context, userID string) ([]Note, error) {
	owner, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return []Note{}, nil
	}
	return r.find(ctx, bson.M{"user_id": owner}, bson.D{{Key: "download_count", Value: -1}, {Key: "_id", Value: -1}})
}

func (r *mongoRepository) find(ctx context.Context, filter bson.M, sort bson.D) ([]Note, error) {
	cursor, err := r.notes.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	var docs []noteDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode notes: %w", err)
	}
	out := make([]Note, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toNote())
	}
	return out, nil
}

func (r *mongoRepository) Update(ctx context.Context, n *Note) (*Note, error) {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return r.findOneAndUpdate(ctx, n.ID, bson.M{"$set": bson.M{
		"title":       n.Title,
		"description": n.Description,
		"subject":     n.Subject,
		"tags":        tags,
	}})
}

func (r *mongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.notes.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoRepository) IncrementDownloads(ctx context.Context, id string) (*Note, error) {
	return r.findOneAndUpdate(ctx, id, bson.M{"$inc": bson.M{"download_count": 1}})
}

func (r *mongoRepository) findOneAndUpdate(ctx context.Context, id string, update bson.M) (*Note, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc noteDocument
	err = r.notes.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	n := doc.toNote()
	return &n, nil
}

func (r *mongoRepository) FileURLs(ctx context.Context) ([]string, error) {
	cursor, err := r.notes.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"file_url": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to query note files: %w", err)
	}
	var docs []struct {
		FileURL string `bson:"file_url"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode note files: %w", err)
	}
	urls := make([]string, 0, len(docs))
	for _, d := range docs {
		urls = append(urls, d.FileURL)
	}
	return urls, nil
}
