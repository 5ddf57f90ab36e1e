package store

import "time"

// User is identified by email; there is no separate username.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	IsSuperuser  bool      `json:"-"`
	CreatedAt    time.Time `json:"created_at"`

	// Profile attributes, optional until the profile is completed.
	FirstName         string   `json:"first_name"`
	LastName          string   `json:"last_name"`
	DateOfBirth       *string  `json:"date_of_birth"`
	Gender            string   `json:"gender"`
	GenderOther       string   `json:"gender_other"`
	HeightCm          *float64 `json:"height_cm"`
	WeightKg          *float64 `json:"weight_kg"`
	MaritalStatus     string   `json:"marital_status"`
	SexuallyActive    *bool    `json:"sexually_active"`
	MenstrualCycle    string   `json:"menstrual_cycle"`
	MedicalConditions string   `json:"medical_conditions"`
	ProfileCompleted  bool     `json:"profile_completed"`
}

// UserProfile carries the mutable profile fields for complete/update calls.
type UserProfile struct {
	FirstName         string   `json:"first_name"`
	LastName          string   `json:"last_name"`
	DateOfBirth       *string  `json:"date_of_birth"`
	Gender            string   `json:"gender"`
	GenderOther       string   `json:"gender_other"`
	HeightCm          *float64 `json:"height_cm"`
	WeightKg          *float64 `json:"weight_kg"`
	MaritalStatus     string   `json:"marital_status"`
	SexuallyActive    *bool    `json:"sexually_active"`
	MenstrualCycle    string   `json:"menstrual_cycle"`
	MedicalConditions string   `json:"medical_conditions"`
}

// Conversation groups the chat messages exchanged under one client-supplied
// conversation_id. Rows are soft-deleted, never removed.
type Conversation struct {
	ID             string    `json:"id"` // UUID row key
	ConversationID string    `json:"conversation_id"`
	UserID         int64     `json:"-"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
	LastUpdated    time.Time `json:"last_updated"`
	IsDeleted      bool      `json:"-"`
}

// ChatMessage is one question/answer exchange. Immutable once created.
type ChatMessage struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"-"` // Conversation row key
	UserID         int64     `json:"-"`
	MessageID      string    `json:"message_id"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	ModelUsed      string    `json:"model_used"`
	Sources        []string  `json:"sources"`
	SourcesJSON    string    `json:"-"` // Store as JSON string for DB
	Timestamp      time.Time `json:"timestamp"`
}

// UploadedDocument records a knowledge-base file uploaded through the API.
type UploadedDocument struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	UploadedBy int64     `json:"uploaded_by"`
	FilePath   string    `json:"file_path"`
	UploadedAt time.Time `json:"uploaded_at"`
}
