package note

import (
	"context"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	apperrors "github.com/hrygo/gamelogd/server/internal/errors"
	"github.com/hrygo/gamelogd/store"
)

// MaxNoteLength bounds the size of a single note.
const MaxNoteLength = 10000

// Service manages the one note a user keeps per game.
type Service struct {
	store *store.Store
	now   func() time.Time
}

func NewService(s *store.Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: s, now: now}
}

// Get returns the user's note for gameID, or nil if there is none.
func (s *Service) Get(ctx context.Context, userID, gameID string) (*store.GameNote, error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return nil, apperrors.InvalidArgument("Game ID is required")
	}
	return s.store.GetGameNote(ctx, &store.FindGameNote{UserID: userID, GameID: gameID})
}

// Create writes a new note for gameID, replacing any previous one.
func (s *Service) Create(ctx context.Context, userID, gameID, text string) (*store.GameNote, error) {
	gameID = strings.TrimSpace(gameID)
	if err := validate(gameID, text); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	return s.store.UpsertGameNote(ctx, &store.GameNote{
		ID:        shortuuid.New(),
		GameID:    gameID,
		UserID:    userID,
		Note:      text,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Update changes the text of an existing note.
func (s *Service) Update(ctx context.Context, userID, noteID, gameID, text string) (*store.GameNote, error) {
	gameID = strings.TrimSpace(gameID)
	if err := validate(gameID, text); err != nil {
		return nil, err
	}

	existing, err := s.store.GetGameNote(ctx, &store.FindGameNote{UserID: userID, GameID: gameID})
	if err != nil {
		return nil, err
	}
	if existing == nil || (noteID != "" && existing.ID != noteID) {
		return nil, apperrors.NotFound("Note not found")
	}
	if existing.UserID != userID {
		return nil, apperrors.Forbidden("Unauthorized")
	}

	existing.Note = text
	existing.UpdatedAt = s.now().UTC()
	return s.store.UpsertGameNote(ctx, existing)
}

func validate(gameID, text string) error {
	if gameID == "" {
		return apperrors.InvalidArgument("Invalid gameId or note")
	}
	if len(text) > MaxNoteLength {
		return apperrors.InvalidArgument("Note is too long")
	}
	return nil
}
