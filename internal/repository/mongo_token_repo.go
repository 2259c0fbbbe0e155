package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/campaignly/auth-service/internal/models"
	"github.com/campaignly/auth-service/internal/utils"
)

const autoLoginTokenBytes = 32

type mongoRefreshTokenRepo struct {
	col *mongo.Collection
}

func NewMongoRefreshTokenRepo(db *mongo.Database) RefreshTokenRepository {
	col := db.Collection("refresh_tokens")
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "token", Value: 1}}},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	return &mongoRefreshTokenRepo{col: col}
}

func (r *mongoRefreshTokenRepo) Create(ctx context.Context, userID primitive.ObjectID, token string, expiresAt time.Time, userAgent, ipAddress string) (*models.RefreshToken, error) {
	now := time.Now().UTC()
	t := &models.RefreshToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		IsRevoked: false,
		UserAgent: userAgent,
		IPAddress: ipAddress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	res, err := r.col.InsertOne(ctx, t)
	if err != nil {
		return nil, err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		t.ID = id
	}
	return t, nil
}

func (r *mongoRefreshTokenRepo) FindActive(ctx context.Context, userID primitive.ObjectID, token string) (*models.RefreshToken, error) {
	var t models.RefreshToken
	err := r.col.FindOne(ctx, bson.M{
		"userId":    userID,
		"token":     token,
		"isRevoked": false,
		"expiresAt": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *mongoRefreshTokenRepo) RevokeActive(ctx context.Context, userID primitive.ObjectID, token string) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"userId":    userID,
			"token":     token,
			"isRevoked": false,
			"expiresAt": bson.M{"$gt": time.Now().UTC()},
		},
		bson.M{"$set": bson.M{"isRevoked": true, "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.ModifiedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoRefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.col.UpdateMany(ctx,
		bson.M{"userId": userID, "isRevoked": false},
		bson.M{"$set": bson.M{"isRevoked": true, "updated_at": time.Now().UTC()}})
	return err
}

func (r *mongoRefreshTokenRepo) RevokeAllExceptCurrent(ctx context.Context, userID primitive.ObjectID, currentToken string) error {
	current, err := r.FindActive(ctx, userID, currentToken)
	filter := bson.M{"userId": userID, "isRevoked": false}
	// fail-safe: if the current token cannot be resolved, revoke everything
	if err == nil {
		filter["_id"] = bson.M{"$ne": current.ID}
	}
	_, err = r.col.UpdateMany(ctx, filter,
		bson.M{"$set": bson.M{"isRevoked": true, "updated_at": time.Now().UTC()}})
	return err
}

type mongoAutoLoginTokenRepo struct {
	col *mongo.Collection
}

func NewMongoAutoLoginTokenRepo(db *mongo.Database) AutoLoginTokenRepository {
	col := db.Collection("auto_login_tokens")
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	return &mongoAutoLoginTokenRepo{col: col}
}

func (r *mongoAutoLoginTokenRepo) Create(ctx context.Context, userID primitive.ObjectID) (string, error) {
	now := time.Now().UTC()
	t := &models.AutoLoginToken{
		UserID:    userID,
		Token:     utils.RandomHex(autoLoginTokenBytes),
		ExpiresAt: now.Add(models.AutoLoginTokenTTL),
		IsUsed:    false,
		CreatedAt: now,
	}
	if _, err := r.col.InsertOne(ctx, t); err != nil {
		return "", err
	}
	return t.Token, nil
}

func (r *mongoAutoLoginTokenRepo) Consume(ctx context.Context, token string) (*models.AutoLoginToken, error) {
	var t models.AutoLoginToken
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{
			"token":     token,
			"isUsed":    false,
			"expiresAt": bson.M{"$gt": time.Now().UTC()},
		},
		bson.M{"$set": bson.M{"isUsed": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
