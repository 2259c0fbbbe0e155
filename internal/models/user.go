package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an account in the credential store. Login defaults to the phone
// number for SMS-registered users.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Login     string             `bson:"login,omitempty" json:"login,omitempty"`
	FirstName string             `bson:"firstName,omitempty" json:"firstName,omitempty"`
	LastName  string             `bson:"lastName,omitempty" json:"lastName,omitempty"`
	Email     string             `bson:"email,omitempty" json:"email,omitempty"`
	Phone     string             `bson:"phone" json:"phone"`
	PassHash  string             `bson:"passHash,omitempty" json:"-"`
	Admin     bool               `bson:"admin" json:"admin"`
	Company   primitive.ObjectID `bson:"company,omitempty" json:"company,omitempty"`
	IsActive  bool               `bson:"is_active" json:"is_active"`
	Origin    primitive.ObjectID `bson:"origin,omitempty" json:"-"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// Company is the tenant a user belongs to. New companies start with a small
// balance so the account is usable before the first payment.
type Company struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Balance   float64            `bson:"balance" json:"balance"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// ReferralLink maps a public referral slug to the user who owns it.
type ReferralLink struct {
	ID   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Link string             `bson:"link" json:"link"`
	User primitive.ObjectID `bson:"user" json:"user"`
}

// UserSummary is the user shape returned by auth responses.
type UserSummary struct {
	ID        primitive.ObjectID `json:"id"`
	Login     string             `json:"login,omitempty"`
	FirstName string             `json:"firstName,omitempty"`
	LastName  string             `json:"lastName,omitempty"`
	Admin     bool               `json:"admin"`
	Phone     string             `json:"phone"`
	Email     string             `json:"email,omitempty"`
	Company   *Company           `json:"company,omitempty"`
}

// Summary builds the response view of a user with its resolved company.
func (u *User) Summary(company *Company) UserSummary {
	return UserSummary{
		ID:        u.ID,
		Login:     u.Login,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Admin:     u.Admin,
		Phone:     u.Phone,
		Email:     u.Email,
		Company:   company,
	}
}
