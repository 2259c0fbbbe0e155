package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RefreshTokenTTL   = 30 * 24 * time.Hour
	AutoLoginTokenTTL = 24 * time.Hour
)

// RefreshToken is one issued refresh credential. Several live tokens per user
// are allowed (multi-device); rotation revokes them one at a time, security
// events revoke them in bulk.
type RefreshToken struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Token     string             `bson:"token" json:"-"`
	ExpiresAt time.Time          `bson:"expiresAt" json:"expiresAt"`
	IsRevoked bool               `bson:"isRevoked" json:"isRevoked"`
	UserAgent string             `bson:"userAgent,omitempty" json:"userAgent,omitempty"`
	IPAddress string             `bson:"ipAddress,omitempty" json:"ipAddress,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// AutoLoginToken is a one-time credential embedded in an auto-login URL.
// Consumed tokens are kept with isUsed=true for audit, never deleted.
type AutoLoginToken struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Token     string             `bson:"token" json:"-"`
	ExpiresAt time.Time          `bson:"expiresAt" json:"expiresAt"`
	IsUsed    bool               `bson:"isUsed" json:"isUsed"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
