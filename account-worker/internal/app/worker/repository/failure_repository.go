package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staffdesk/account-worker/internal/app/worker/entity"
)

const failuresCollection = "notification_failures"

type failureRepository struct {
	collection *mongo.Collection
}

// NewFailureRepository создает репозиторий отчётов в коллекции notification_failures
func NewFailureRepository(db *mongo.Database) FailureRepository {
	return &failureRepository{collection: db.Collection(failuresCollection)}
}

// EnsureFailureIndexes создает индексы по failed_at и user_id.
// Ошибка не фатальна: индексы могут уже существовать с другими опциями.
func EnsureFailureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(failuresCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "failed_at", Value: -1}},
			Options: options.Index().SetName("failed_at_idx"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("user_id_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create notification_failures indexes: %w", err)
	}
	return nil
}

func (r *failureRepository) Save(ctx context.Context, failure *entity.NotificationFailure) error {
	if failure.FailedAt.IsZero() {
		failure.FailedAt = time.Now().UTC()
	}

	result, err := r.collection.InsertOne(ctx, failure)
	if err != nil {
		return fmt.Errorf("failed to save notification failure: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		failure.ID = oid
	}
	return nil
}

// CountSince - число отчётов начиная с since, используется healthcheck'ом
func (r *failureRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"failed_at": bson.M{"$gte": since}})
	if err != nil {
		return 0, fmt.Errorf("failed to count notification failures: %w", err)
	}
	return n, nil
}
