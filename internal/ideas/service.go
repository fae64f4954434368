package ideas

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/votestream/backend/internal/models"
)

// EventIdeaSubmitted is published after ideas are stored.
const EventIdeaSubmitted = "idea_submitted"

// Store persists ideas. Implementations assign ID and CreatedAt and keep insertion order.
type Store interface {
	Create(ctx context.Context, idea *models.Idea) error
	CreateBatch(ctx context.Context, ideas []*models.Idea) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Idea, error)
	List(ctx context.Context) ([]models.Idea, error)
}

// Notifier publishes change events to connected participants.
type Notifier interface {
	Publish(event string, payload interface{})
}

// Service validates and records idea submissions.
type Service struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
}

// NewService creates an idea service. notifier may be nil.
func NewService(store Store, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, notifier: notifier, logger: logger}
}

// Submit validates and stores a single idea authored by author.
func (s *Service) Submit(ctx context.Context, draft models.IdeaDraft, author models.Participant) (*models.Idea, error) {
	idea, err := buildIdea(draft, author)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, idea); err != nil {
		return nil, err
	}
	s.logger.Info("idea submitted", zap.String("idea_id", idea.ID.String()), zap.String("author_id", author.ID.String()))
	s.publish([]*models.Idea{idea})
	return idea, nil
}

// SubmitBatch validates every draft first and stores all of them or none.
func (s *Service) SubmitBatch(ctx context.Context, drafts []models.IdeaDraft, author models.Participant) ([]*models.Idea, error) {
	if len(drafts) == 0 {
		return nil, models.NewValidationError("ideas", "at least one idea is required")
	}
	batch := make([]*models.Idea, 0, len(drafts))
	for i, d := range drafts {
		idea, err := buildIdea(d, author)
		if err != nil {
			return nil, fmt.Errorf("idea %d: %w", i, err)
		}
		batch = append(batch, idea)
	}
	if err := s.store.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}
	s.logger.Info("ideas submitted", zap.Int("count", len(batch)), zap.String("author_id", author.ID.String()))
	s.publish(batch)
	return batch, nil
}

// List returns a fresh snapshot of all ideas in insertion order.
func (s *Service) List(ctx context.Context) ([]models.Idea, error) {
	return s.store.List(ctx)
}

// Get returns one idea.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Idea, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) publish(batch []*models.Idea) {
	if s.notifier == nil {
		return
	}
	for _, idea := range batch {
		s.notifier.Publish(EventIdeaSubmitted, idea)
	}
}

func buildIdea(d models.IdeaDraft, author models.Participant) (*models.Idea, error) {
	title := strings.TrimSpace(d.Title)
	description := strings.TrimSpace(d.Description)
	if title == "" {
		return nil, models.NewValidationError("title", "must not be empty")
	}
	if description == "" {
		return nil, models.NewValidationError("description", "must not be empty")
	}
	if author.ID == uuid.Nil {
		return nil, models.NewValidationError("author_id", "must be set")
	}
	return &models.Idea{
		Title:       title,
		Description: description,
		AuthorID:    author.ID,
		AuthorName:  author.Name,
	}, nil
}

// Votable filters out ideas authored by any of the excluded participants,
// keeping the original order.
func Votable(ideas []models.Idea, excluded ...uuid.UUID) []models.Idea {
	out := make([]models.Idea, 0, len(ideas))
	for _, idea := range ideas {
		own := false
		for _, id := range excluded {
			if id != uuid.Nil && idea.AuthorID == id {
				own = true
				break
			}
		}
		if !own {
			out = append(out, idea)
		}
	}
	return out
}

// NewestFirst returns a reversed copy of ideas for display.
func NewestFirst(ideas []models.Idea) []models.Idea {
	out := make([]models.Idea, len(ideas))
	for i, idea := range ideas {
		out[len(ideas)-1-i] = idea
	}
	return out
}
