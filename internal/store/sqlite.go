package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrNotFound is returned when a row does not exist or is not visible to the
// requesting user (soft-deleted conversations included).
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned when registering an email that already exists.
var ErrEmailTaken = errors.New("email already exists")

// ErrConversationTaken is returned when a conversation_id is already owned by
// a different user. conversation_id is globally unique, not per-user.
var ErrConversationTaken = errors.New("conversation id already in use")

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        is_superuser BOOLEAN DEFAULT FALSE,
        first_name TEXT DEFAULT '',
        last_name TEXT DEFAULT '',
        date_of_birth TEXT,
        gender TEXT DEFAULT '',
        gender_other TEXT DEFAULT '',
        height_cm REAL,
        weight_kg REAL,
        marital_status TEXT DEFAULT '',
        sexually_active BOOLEAN,
        menstrual_cycle TEXT DEFAULT '',
        medical_conditions TEXT DEFAULT '',
        profile_completed BOOLEAN DEFAULT FALSE,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS conversations (
        id TEXT PRIMARY KEY, -- UUID
        conversation_id TEXT UNIQUE NOT NULL,
        user_id INTEGER NOT NULL,
        title TEXT DEFAULT '',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        last_updated DATETIME DEFAULT CURRENT_TIMESTAMP,
        is_deleted BOOLEAN DEFAULT FALSE,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS chat_messages (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        conversation_id TEXT NOT NULL,
        user_id INTEGER NOT NULL,
        message_id TEXT UNIQUE NOT NULL,
        question TEXT NOT NULL,
        answer TEXT NOT NULL,
        model_used TEXT NOT NULL,
        sources_json TEXT NOT NULL DEFAULT '[]',
        timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (conversation_id) REFERENCES conversations (id),
        FOREIGN KEY (user_id) REFERENCES users (id)
    );
    CREATE INDEX IF NOT EXISTS idx_chat_messages_timestamp ON chat_messages (timestamp);

    CREATE TABLE IF NOT EXISTS uploaded_documents (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        title TEXT NOT NULL,
        uploaded_by INTEGER NOT NULL,
        file_path TEXT NOT NULL,
        uploaded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (uploaded_by) REFERENCES users (id)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

const userColumns = `id, email, password_hash, is_superuser, first_name, last_name, date_of_birth,
    gender, gender_other, height_cm, weight_kg, marital_status, sexually_active,
    menstrual_cycle, medical_conditions, profile_completed, created_at`

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	var dob sql.NullString
	var height, weight sql.NullFloat64
	var sexuallyActive sql.NullBool
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.IsSuperuser,
		&user.FirstName, &user.LastName, &dob, &user.Gender, &user.GenderOther,
		&height, &weight, &user.MaritalStatus, &sexuallyActive,
		&user.MenstrualCycle, &user.MedicalConditions, &user.ProfileCompleted, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	if dob.Valid {
		user.DateOfBirth = &dob.String
	}
	if height.Valid {
		user.HeightCm = &height.Float64
	}
	if weight.Valid {
		user.WeightKg = &weight.Float64
	}
	if sexuallyActive.Valid {
		user.SexuallyActive = &sexuallyActive.Bool
	}
	return &user, nil
}

func (s *SQLiteStore) GetUserByEmail(email string) (*User, error) {
	user, err := s.scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE email = ?", email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) GetUserByID(id int64) (*User, error) {
	user, err := s.scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user by id: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) CreateUser(email, passwordHash string) (*User, error) {
	res, err := s.db.Exec("INSERT INTO users (email, password_hash) VALUES (?, ?)", email, passwordHash)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetUserByID(id)
}

// PromoteToSuperuser grants admin privileges to an existing account. Only
// reachable through the -create-admin flag, never through the API.
func (s *SQLiteStore) PromoteToSuperuser(email string) error {
	res, err := s.db.Exec("UPDATE users SET is_superuser = TRUE WHERE email = ?", email)
	if err != nil {
		return fmt.Errorf("failed to promote user: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUserProfile replaces the profile attributes of the user and marks the
// profile as completed. profile_completed is only ever set through this path.
func (s *SQLiteStore) UpdateUserProfile(userID int64, profile *UserProfile) (*User, error) {
	stmt, err := s.db.Prepare(`UPDATE users SET first_name = ?, last_name = ?, date_of_birth = ?,
        gender = ?, gender_other = ?, height_cm = ?, weight_kg = ?, marital_status = ?,
        sexually_active = ?, menstrual_cycle = ?, medical_conditions = ?, profile_completed = TRUE
        WHERE id = ?`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare profile update: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.Exec(profile.FirstName, profile.LastName, profile.DateOfBirth,
		profile.Gender, profile.GenderOther, profile.HeightCm, profile.WeightKg,
		profile.MaritalStatus, profile.SexuallyActive, profile.MenstrualCycle,
		profile.MedicalConditions, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute profile update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetUserByID(userID)
}

// Conversation methods

// GetConversation returns the non-deleted conversation owned by the user, or
// ErrNotFound.
func (s *SQLiteStore) GetConversation(userID int64, conversationID string) (*Conversation, error) {
	var conv Conversation
	err := s.db.QueryRow(`SELECT id, conversation_id, user_id, title, created_at, last_updated, is_deleted
        FROM conversations WHERE conversation_id = ? AND user_id = ? AND is_deleted = FALSE`,
		conversationID, userID).
		Scan(&conv.ID, &conv.ConversationID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.LastUpdated, &conv.IsDeleted)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// GetOrCreateConversation fetches the conversation for the (user,
// conversation_id) pair, creating it lazily on first use.
func (s *SQLiteStore) GetOrCreateConversation(userID int64, conversationID, title string) (*Conversation, error) {
	conv, err := s.GetConversation(userID, conversationID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	rowID := uuid.NewString()
	_, err = s.db.Exec(`INSERT INTO conversations (id, conversation_id, user_id, title, created_at, last_updated)
        VALUES (?, ?, ?, ?, ?, ?)`, rowID, conversationID, userID, title, now, now)
	if err != nil {
		// A concurrent request may have created it between the check and the
		// insert; re-read before giving up. When the re-read finds nothing the
		// id belongs to another user.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			conv, rereadErr := s.GetConversation(userID, conversationID)
			if errors.Is(rereadErr, ErrNotFound) {
				return nil, ErrConversationTaken
			}
			return conv, rereadErr
		}
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return &Conversation{
		ID:             rowID,
		ConversationID: conversationID,
		UserID:         userID,
		Title:          title,
		CreatedAt:      now,
		LastUpdated:    now,
	}, nil
}

// TouchConversation bumps last_updated to now.
func (s *SQLiteStore) TouchConversation(id string) error {
	_, err := s.db.Exec("UPDATE conversations SET last_updated = ? WHERE id = ?", time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateConversationTitle(id, title string) error {
	_, err := s.db.Exec("UPDATE conversations SET title = ? WHERE id = ?", title, id)
	if err != nil {
		return fmt.Errorf("failed to update conversation title: %w", err)
	}
	return nil
}

// SoftDeleteConversation hides the conversation without removing rows.
func (s *SQLiteStore) SoftDeleteConversation(userID int64, conversationID string) error {
	res, err := s.db.Exec(`UPDATE conversations SET is_deleted = TRUE
        WHERE conversation_id = ? AND user_id = ? AND is_deleted = FALSE`, conversationID, userID)
	if err != nil {
		return fmt.Errorf("failed to soft delete conversation: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetConversationsByUserID lists non-deleted conversations, most recently
// updated first.
func (s *SQLiteStore) GetConversationsByUserID(userID int64) ([]Conversation, error) {
	rows, err := s.db.Query(`SELECT id, conversation_id, user_id, title, created_at, last_updated, is_deleted
        FROM conversations WHERE user_id = ? AND is_deleted = FALSE ORDER BY last_updated DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.ConversationID, &conv.UserID, &conv.Title,
			&conv.CreatedAt, &conv.LastUpdated, &conv.IsDeleted); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// ChatMessage methods

// CreateChatMessage inserts the exchange. The timestamp is server-assigned
// here; messages are never updated afterwards.
func (s *SQLiteStore) CreateChatMessage(msg *ChatMessage) error {
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	msg.Timestamp = time.Now()

	sourcesBytes, err := json.Marshal(msg.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}
	if msg.Sources == nil {
		sourcesBytes = []byte("[]")
	}
	msg.SourcesJSON = string(sourcesBytes)

	stmt, err := s.db.Prepare(`INSERT INTO chat_messages
        (conversation_id, user_id, message_id, question, answer, model_used, sources_json, timestamp)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.Exec(msg.ConversationID, msg.UserID, msg.MessageID, msg.Question,
		msg.Answer, msg.ModelUsed, msg.SourcesJSON, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to execute message insert: %w", err)
	}
	msg.ID, _ = res.LastInsertId()
	return nil
}

func scanChatMessages(rows *sql.Rows) ([]ChatMessage, error) {
	var messages []ChatMessage
	for rows.Next() {
		var msg ChatMessage
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.UserID, &msg.MessageID,
			&msg.Question, &msg.Answer, &msg.ModelUsed, &msg.SourcesJSON, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		if err := json.Unmarshal([]byte(msg.SourcesJSON), &msg.Sources); err != nil {
			msg.Sources = nil
		}
		if msg.Sources == nil {
			msg.Sources = []string{}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// GetMessagesByConversation returns messages in append order (timestamp asc).
func (s *SQLiteStore) GetMessagesByConversation(conversationRowID string) ([]ChatMessage, error) {
	rows, err := s.db.Query(`SELECT id, conversation_id, user_id, message_id, question, answer,
        model_used, sources_json, timestamp FROM chat_messages
        WHERE conversation_id = ? ORDER BY timestamp ASC, id ASC`, conversationRowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()
	return scanChatMessages(rows)
}

// GetLastMessage returns the newest message of the conversation, or nil.
func (s *SQLiteStore) GetLastMessage(conversationRowID string) (*ChatMessage, error) {
	rows, err := s.db.Query(`SELECT id, conversation_id, user_id, message_id, question, answer,
        model_used, sources_json, timestamp FROM chat_messages
        WHERE conversation_id = ? ORDER BY timestamp DESC, id DESC LIMIT 1`, conversationRowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query last message: %w", err)
	}
	defer rows.Close()

	messages, err := scanChatMessages(rows)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}
	return &messages[0], nil
}

// UploadedDocument methods

func (s *SQLiteStore) CreateUploadedDocument(doc *UploadedDocument) error {
	doc.UploadedAt = time.Now()
	res, err := s.db.Exec(`INSERT INTO uploaded_documents (title, uploaded_by, file_path, uploaded_at)
        VALUES (?, ?, ?, ?)`, doc.Title, doc.UploadedBy, doc.FilePath, doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to insert uploaded document: %w", err)
	}
	doc.ID, _ = res.LastInsertId()
	return nil
}
