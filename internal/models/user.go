package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultAvatar is assigned to accounts that never uploaded a picture.
const DefaultAvatar = "https://cdn.pixabay.com/photo/2015/10/05/22/37/blank-profile-picture-973460_1280.png"

// User is an account document in the MongoDB users collection.
type User struct {
	ID               primitive.ObjectID   `json:"_id"                    bson:"_id,omitempty"`
	Username         string               `json:"username"               bson:"username"`
	Email            string               `json:"email"                  bson:"email"`
	Password         string               `json:"-"                      bson:"password"` // never serialize
	Mobile           string               `json:"mobile"                 bson:"mobile"`
	Avatar           string               `json:"avatar"                 bson:"avatar"`
	PanNumber        string               `json:"panNumber,omitempty"    bson:"panNumber,omitempty"`
	PanCardURL       string               `json:"panCardUrl,omitempty"   bson:"panCardUrl,omitempty"`
	PanVerified      bool                 `json:"panVerified"            bson:"panVerified"`
	AadharNumber     string               `json:"aadharNumber,omitempty" bson:"aadharNumber,omitempty"`
	AadharDocURL     string               `json:"aadharDocUrl,omitempty" bson:"aadharDocUrl,omitempty"`
	IsAadharVerified bool                 `json:"isAadharVerified"       bson:"isAadharVerified"`
	Favorites        []primitive.ObjectID `json:"favorites"              bson:"favorites"`
	CreatedAt        time.Time            `json:"createdAt"              bson:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"              bson:"updatedAt"`
}

// SignupRequest is the JSON body for POST /api/auth/signup.
type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=40"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Mobile   string `json:"mobile"   validate:"required,min=7,max=15,numeric"`
}

// SigninRequest is the JSON body for POST /api/auth/signin.
type SigninRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateUserRequest is the JSON body for POST /api/user/update/:id.
// Nil fields are left untouched.
type UpdateUserRequest struct {
	Username *string `json:"username,omitempty" validate:"omitempty,min=3,max=40"`
	Email    *string `json:"email,omitempty"    validate:"omitempty,email"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=6"`
	Avatar   *string `json:"avatar,omitempty"   validate:"omitempty,url"`
}

// UserUpdate is the set of profile fields a store writes in one update.
type UserUpdate struct {
	Username     *string
	Email        *string
	PasswordHash *string
	Avatar       *string
}

// DocumentSubmission is what a verification request persists on the user.
// Empty numbers leave the corresponding document untouched.
type DocumentSubmission struct {
	PanNumber    string
	PanCardURL   string
	AadharNumber string
	AadharDocURL string
}
