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

const (
	sessionIDBytes          = 20
	autoLoginSessionIDBytes = 32
	codeLength              = 6
)

type mongoSessionRepo struct {
	col *mongo.Collection
}

func NewMongoSessionRepo(db *mongo.Database) SessionRepository {
	col := db.Collection("auth_sessions")
	// indexes: unique session id, TTL purge, cooldown lookup
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "sessionId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		{Keys: bson.D{{Key: "phone", Value: 1}, {Key: "type", Value: 1}, {Key: "lastCodeSentAt", Value: -1}}},
	})
	return &mongoSessionRepo{col: col}
}

func (r *mongoSessionRepo) Create(ctx context.Context, phone, sessionType string, data models.SessionData) (*models.AuthSession, error) {
	now := time.Now().UTC()
	s := &models.AuthSession{
		SessionID:      utils.RandomHex(sessionIDBytes),
		Phone:          phone,
		Type:           sessionType,
		Code:           utils.GenerateCode(codeLength),
		ExpiresAt:      now.Add(models.CodeSessionTTL),
		Attempts:       0,
		MaxAttempts:    models.DefaultMaxAttempts,
		UserData:       data,
		LastCodeSentAt: now,
		Verified:       false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	res, err := r.col.InsertOne(ctx, s)
	if err != nil {
		return nil, err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		s.ID = id
	}
	return s, nil
}

func (r *mongoSessionRepo) CreatePasswordResetAfterAutoLogin(ctx context.Context, userID primitive.ObjectID, phone string) (*models.AuthSession, error) {
	now := time.Now().UTC()
	s := &models.AuthSession{
		SessionID:      utils.RandomHex(autoLoginSessionIDBytes),
		Phone:          phone,
		Type:           models.SessionPasswordResetAfterAutoLogin,
		ExpiresAt:      now.Add(models.AutoLoginResetSessionTTL),
		Attempts:       0,
		MaxAttempts:    models.AutoLoginResetMaxAttempts,
		UserData:       models.SessionData{UserID: userID},
		LastCodeSentAt: now,
		Verified:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	res, err := r.col.InsertOne(ctx, s)
	if err != nil {
		return nil, err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		s.ID = id
	}
	return s, nil
}

func (r *mongoSessionRepo) GetActive(ctx context.Context, sessionID string) (*models.AuthSession, error) {
	var s models.AuthSession
	err := r.col.FindOne(ctx, bson.M{
		"sessionId": sessionID,
		"expiresAt": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *mongoSessionRepo) FindMostRecentActive(ctx context.Context, phone, sessionType string) (*models.AuthSession, error) {
	var s models.AuthSession
	err := r.col.FindOne(ctx, bson.M{
		"phone":     phone,
		"type":      sessionType,
		"expiresAt": bson.M{"$gt": time.Now().UTC()},
	}, options.FindOne().SetSort(bson.D{{Key: "lastCodeSentAt", Value: -1}})).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *mongoSessionRepo) RotateCode(ctx context.Context, sessionID string, data *models.SessionData, notSentSince time.Time) (*models.AuthSession, error) {
	now := time.Now().UTC()
	set := bson.M{
		"code":           utils.GenerateCode(codeLength),
		"lastCodeSentAt": now,
		"updated_at":     now,
	}
	if data != nil {
		set["userData"] = *data
	}
	filter := bson.M{
		"sessionId":      sessionID,
		"type":           bson.M{"$ne": models.SessionPasswordResetAfterAutoLogin},
		"expiresAt":      bson.M{"$gt": now},
		"lastCodeSentAt": bson.M{"$lte": notSentSince},
	}

	var s models.AuthSession
	err := r.col.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *mongoSessionRepo) IncrementAttempts(ctx context.Context, sessionID string) (*models.AuthSession, error) {
	now := time.Now().UTC()
	var s models.AuthSession
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"sessionId": sessionID, "expiresAt": bson.M{"$gt": now}},
		bson.M{"$inc": bson.M{"attempts": 1}, "$set": bson.M{"updated_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *mongoSessionRepo) ConsumeSingleUse(ctx context.Context, sessionID string) error {
	now := time.Now().UTC()
	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"sessionId": sessionID,
			"expiresAt": bson.M{"$gt": now},
			"$expr":     bson.M{"$lt": bson.A{"$attempts", "$maxAttempts"}},
		},
		bson.M{"$inc": bson.M{"attempts": 1}, "$set": bson.M{"updated_at": now}})
	if err != nil {
		return err
	}
	if res.ModifiedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoSessionRepo) MarkVerified(ctx context.Context, sessionID string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"sessionId": sessionID},
		bson.M{"$set": bson.M{"verified": true, "updated_at": time.Now().UTC()}})
	return err
}

func (r *mongoSessionRepo) Delete(ctx context.Context, sessionID string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"sessionId": sessionID})
	return err
}
