package store

import (
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateUser_AndLookup(t *testing.T) {
	s := newTestStore(t)

	user, err := s.CreateUser("a@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("expected a row id")
	}
	if user.ProfileCompleted {
		t.Fatal("fresh user should not have a completed profile")
	}

	byEmail, err := s.GetUserByEmail("a@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail == nil || byEmail.ID != user.ID {
		t.Fatalf("lookup by email mismatch: %+v", byEmail)
	}

	missing, err := s.GetUserByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if missing != nil {
		t.Fatal("unknown email should yield nil user")
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateUser("a@example.com", "hash"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if _, err := s.CreateUser("a@example.com", "other"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUpdateUserProfile_MarksCompleted(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("a@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	height := 170.0
	active := true
	updated, err := s.UpdateUserProfile(user.ID, &UserProfile{
		FirstName:      "Ada",
		LastName:       "L",
		Gender:         "female",
		HeightCm:       &height,
		SexuallyActive: &active,
	})
	if err != nil {
		t.Fatalf("UpdateUserProfile failed: %v", err)
	}
	if !updated.ProfileCompleted {
		t.Fatal("profile update must mark profile_completed")
	}
	if updated.FirstName != "Ada" {
		t.Fatalf("first name = %q", updated.FirstName)
	}
	if updated.HeightCm == nil || *updated.HeightCm != 170 {
		t.Fatalf("height = %v", updated.HeightCm)
	}
	if updated.SexuallyActive == nil || !*updated.SexuallyActive {
		t.Fatalf("sexually_active = %v", updated.SexuallyActive)
	}
}

func TestUpdateUserProfile_UnknownUser(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UpdateUserProfile(999, &UserProfile{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetOrCreateConversation_Idempotent(t *testing.T) {
	s := newTestStore(t)
	user, _ := s.CreateUser("a@example.com", "hash")

	first, err := s.GetOrCreateConversation(user.ID, "conv-1", "first title")
	if err != nil {
		t.Fatalf("GetOrCreateConversation failed: %v", err)
	}
	second, err := s.GetOrCreateConversation(user.ID, "conv-1", "ignored title")
	if err != nil {
		t.Fatalf("second GetOrCreateConversation failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("same conversation_id produced different rows: %s != %s", first.ID, second.ID)
	}
	if second.Title != "first title" {
		t.Fatalf("title should stick to the first exchange, got %q", second.Title)
	}
}

func TestGetOrCreateConversation_IDOwnedByOtherUser(t *testing.T) {
	s := newTestStore(t)
	owner, _ := s.CreateUser("owner@example.com", "hash")
	other, _ := s.CreateUser("other@example.com", "hash")

	if _, err := s.GetOrCreateConversation(owner.ID, "conv-1", "t"); err != nil {
		t.Fatalf("GetOrCreateConversation failed: %v", err)
	}
	if _, err := s.GetOrCreateConversation(other.ID, "conv-1", "t"); !errors.Is(err, ErrConversationTaken) {
		t.Fatalf("expected ErrConversationTaken, got %v", err)
	}
}

func TestGetConversation_OtherUsersConversationHidden(t *testing.T) {
	s := newTestStore(t)
	owner, _ := s.CreateUser("owner@example.com", "hash")
	other, _ := s.CreateUser("other@example.com", "hash")

	if _, err := s.GetOrCreateConversation(owner.ID, "conv-1", "t"); err != nil {
		t.Fatalf("GetOrCreateConversation failed: %v", err)
	}
	if _, err := s.GetConversation(other.ID, "conv-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign conversation should be invisible, got %v", err)
	}
}

func TestSoftDeleteConversation_HidesFromListing(t *testing.T) {
	s := newTestStore(t)
	user, _ := s.CreateUser("a@example.com", "hash")
	if _, err := s.GetOrCreateConversation(user.ID, "conv-1", "t"); err != nil {
		t.Fatalf("GetOrCreateConversation failed: %v", err)
	}

	if err := s.SoftDeleteConversation(user.ID, "conv-1"); err != nil {
		t.Fatalf("SoftDeleteConversation failed: %v", err)
	}
	if _, err := s.GetConversation(user.ID, "conv-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted conversation still visible, err = %v", err)
	}
	conversations, err := s.GetConversationsByUserID(user.ID)
	if err != nil {
		t.Fatalf("GetConversationsByUserID failed: %v", err)
	}
	if len(conversations) != 0 {
		t.Fatalf("deleted conversation still listed: %+v", conversations)
	}

	if err := s.SoftDeleteConversation(user.ID, "conv-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete should report ErrNotFound, got %v", err)
	}
}

func TestGetConversationsByUserID_OrderedByLastUpdated(t *testing.T) {
	s := newTestStore(t)
	user, _ := s.CreateUser("a@example.com", "hash")

	older, _ := s.GetOrCreateConversation(user.ID, "conv-old", "old")
	if _, err := s.GetOrCreateConversation(user.ID, "conv-new", "new"); err != nil {
		t.Fatalf("GetOrCreateConversation failed: %v", err)
	}

	// Bumping the older conversation must move it to the front.
	time.Sleep(5 * time.Millisecond)
	if err := s.TouchConversation(older.ID); err != nil {
		t.Fatalf("TouchConversation failed: %v", err)
	}

	conversations, err := s.GetConversationsByUserID(user.ID)
	if err != nil {
		t.Fatalf("GetConversationsByUserID failed: %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(conversations))
	}
	if conversations[0].ConversationID != "conv-old" {
		t.Fatalf("touched conversation not first: %s", conversations[0].ConversationID)
	}
}

func TestChatMessages_AppendOrderAndSourcesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	user, _ := s.CreateUser("a@example.com", "hash")
	conv, _ := s.GetOrCreateConversation(user.ID, "conv-1", "t")

	for i, q := range []string{"first", "second"} {
		msg := ChatMessage{
			ConversationID: conv.ID,
			UserID:         user.ID,
			Question:       q,
			Answer:         "answer " + q,
			ModelUsed:      "gpt-4o-mini",
		}
		if i == 0 {
			msg.Sources = []string{"safe_sex.txt", "hormones.txt"}
		}
		if err := s.CreateChatMessage(&msg); err != nil {
			t.Fatalf("CreateChatMessage(%s) failed: %v", q, err)
		}
		if msg.MessageID == "" {
			t.Fatal("store should mint a message_id when none is supplied")
		}
	}

	messages, err := s.GetMessagesByConversation(conv.ID)
	if err != nil {
		t.Fatalf("GetMessagesByConversation failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Question != "first" || messages[1].Question != "second" {
		t.Fatalf("messages out of append order: %s, %s", messages[0].Question, messages[1].Question)
	}
	if len(messages[0].Sources) != 2 || messages[0].Sources[0] != "safe_sex.txt" {
		t.Fatalf("sources did not round-trip: %v", messages[0].Sources)
	}
	if messages[1].Sources == nil || len(messages[1].Sources) != 0 {
		t.Fatalf("nil sources should read back as empty slice: %v", messages[1].Sources)
	}
}

func TestGetLastMessage(t *testing.T) {
	s := newTestStore(t)
	user, _ := s.CreateUser("a@example.com", "hash")
	conv, _ := s.GetOrCreateConversation(user.ID, "conv-1", "t")

	last, err := s.GetLastMessage(conv.ID)
	if err != nil {
		t.Fatalf("GetLastMessage failed: %v", err)
	}
	if last != nil {
		t.Fatal("empty conversation should have no last message")
	}

	for _, q := range []string{"first", "second", "third"} {
		msg := ChatMessage{ConversationID: conv.ID, UserID: user.ID, Question: q, Answer: "a", ModelUsed: "m"}
		if err := s.CreateChatMessage(&msg); err != nil {
			t.Fatalf("CreateChatMessage failed: %v", err)
		}
	}

	last, err = s.GetLastMessage(conv.ID)
	if err != nil {
		t.Fatalf("GetLastMessage failed: %v", err)
	}
	if last == nil || last.Question != "third" {
		t.Fatalf("unexpected last message: %+v", last)
	}
}

func TestCreateUploadedDocument(t *testing.T) {
	s := newTestStore(t)
	user, _ := s.CreateUser("admin@example.com", "hash")

	doc := UploadedDocument{Title: "guide.txt", UploadedBy: user.ID, FilePath: "documents/guide.txt"}
	if err := s.CreateUploadedDocument(&doc); err != nil {
		t.Fatalf("CreateUploadedDocument failed: %v", err)
	}
	if doc.ID == 0 {
		t.Fatal("expected a row id")
	}
	if doc.UploadedAt.IsZero() {
		t.Fatal("expected a server-assigned upload time")
	}
}
