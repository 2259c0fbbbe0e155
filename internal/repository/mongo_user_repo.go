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
)

type mongoUserRepo struct {
	col *mongo.Collection
}

func NewMongoUserRepo(db *mongo.Database) UserRepository {
	col := db.Collection("users")
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	return &mongoUserRepo{col: col}
}

func (r *mongoUserRepo) Create(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	res, err := r.col.InsertOne(ctx, u)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = id
	}
	return nil
}

func (r *mongoUserRepo) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"phone": phone})
}

func (r *mongoUserRepo) FindActiveByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"phone": phone, "is_active": true})
}

func (r *mongoUserRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoUserRepo) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	err := r.col.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *mongoUserRepo) Update(ctx context.Context, u *models.User) error {
	u.UpdatedAt = time.Now().UTC()
	_, err := r.col.UpdateByID(ctx, u.ID, bson.M{"$set": u})
	return err
}

func (r *mongoUserRepo) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	res, err := r.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"passHash":   hash,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type mongoCompanyRepo struct {
	col *mongo.Collection
}

// startingBalance seeds new tenants so the account is usable before the
// first payment.
const startingBalance = 50

func NewMongoCompanyRepo(db *mongo.Database) CompanyRepository {
	return &mongoCompanyRepo{col: db.Collection("companies")}
}

func (r *mongoCompanyRepo) Create(ctx context.Context, name string) (*models.Company, error) {
	now := time.Now().UTC()
	c := &models.Company{
		Name:      name,
		Balance:   startingBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}
	res, err := r.col.InsertOne(ctx, c)
	if err != nil {
		return nil, err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		c.ID = id
	}
	return c, nil
}

func (r *mongoCompanyRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Company, error) {
	var c models.Company
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

type mongoReferralRepo struct {
	col *mongo.Collection
}

func NewMongoReferralRepo(db *mongo.Database) ReferralRepository {
	col := db.Collection("referral_links")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "link", Value: 1}}, Options: options.Index().SetUnique(true),
	})
	return &mongoReferralRepo{col: col}
}

func (r *mongoReferralRepo) FindByLink(ctx context.Context, link string) (*models.ReferralLink, error) {
	var l models.ReferralLink
	err := r.col.FindOne(ctx, bson.M{"link": link}).Decode(&l)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}
