package models

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// UserStatus enum
type UserStatus string

const (
	UserStatusActive  UserStatus = "active"
	UserStatusDeleted UserStatus = "deleted"
)

// Gender enum
type Gender string

const (
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderOther       Gender = "other"
	GenderUnspecified Gender = "unspecified"
)

// Language enum for bilingual content preference
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageUrdu    Language = "ur"
)

// Preferences holds user-tunable settings, stored as a JSON column.
type Preferences struct {
	Language      Language `json:"language"`
	Notifications bool     `json:"notifications"`
	Theme         string   `json:"theme"`
}

// User represents a user in the system
type User struct {
	BaseModel
	Email        string      `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password     string      `gorm:"size:255;not null" json:"-"` // Never send password in JSON
	FullName     string      `gorm:"size:200" json:"fullName"`
	PhoneNumber  string      `gorm:"size:30" json:"phoneNumber,omitempty"`
	DateOfBirth  *time.Time  `json:"dateOfBirth,omitempty"`
	Gender       Gender      `gorm:"size:20;default:'unspecified'" json:"gender"`
	Preferences  Preferences `gorm:"serializer:json" json:"preferences"`
	Status       UserStatus  `gorm:"size:20;default:'active';index" json:"-"`
	AnonymizedAt *time.Time  `json:"-"`

	// Relations (not always preloaded)
	RefreshTokens []RefreshToken  `gorm:"foreignKey:UserID" json:"-"`
	Reports       []MedicalReport `gorm:"foreignKey:UserID" json:"-"`
	Vitals        []VitalReading  `gorm:"foreignKey:UserID" json:"-"`
	Insights      []Insight       `gorm:"foreignKey:UserID" json:"-"`
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	FullName    string      `json:"fullName"`
	PhoneNumber string      `json:"phoneNumber,omitempty"`
	DateOfBirth *time.Time  `json:"dateOfBirth,omitempty"`
	Gender      Gender      `json:"gender"`
	Preferences Preferences `json:"preferences"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// SetPassword hashes a password and sets it on the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the user's hashed password
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Anonymize strips identifying fields after a soft delete. The unique
// email column is replaced with a value derived from the immutable ID so
// the row can never collide with a future registration.
func (u *User) Anonymize(now time.Time) {
	u.Email = fmt.Sprintf("deleted-%s@anonymized.invalid", u.ID)
	u.FullName = "Deleted User"
	u.PhoneNumber = ""
	u.DateOfBirth = nil
	u.AnonymizedAt = &now
}

// Sanitize creates a UserSanitized struct from a User model, excluding sensitive data.
func (u *User) Sanitize() UserSanitized {
	return UserSanitized{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		PhoneNumber: u.PhoneNumber,
		DateOfBirth: u.DateOfBirth,
		Gender:      u.Gender,
		Preferences: u.Preferences,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
