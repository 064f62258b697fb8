// Package manifest is the deck/page store behind the live core's narrow
// "page-count provider" boundary. The sync protocol never validates page
// numbers against it; it only tells connected rooms to re-read it via
// refresh pulses.
package manifest

import (
	"errors"
	"fmt"

	"github.com/slidecast/core/internal/models"
	"github.com/slidecast/core/internal/modules/slidesync"
	"github.com/slidecast/core/internal/transport"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service handles deck, page, and room records and emits refresh pulses
// when they change.
type Service struct {
	db     *gorm.DB
	broker *transport.Broker
	logger *zap.Logger

	roomHook func(key string)
}

// OnRoomCreated registers a callback invoked with each new room key.
func (s *Service) OnRoomCreated(fn func(key string)) {
	s.roomHook = fn
}

func NewService(db *gorm.DB, broker *transport.Broker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, broker: broker, logger: logger}
}

// CreateDeck stores a new deck with its page skeleton.
func (s *Service) CreateDeck(title, slug string, pageCount int) (*models.DeckModel, error) {
	deck := models.DeckModel{Title: title, Slug: slug, PageCount: pageCount}
	if err := s.db.Create(&deck).Error; err != nil {
		return nil, err
	}
	for i := 0; i < pageCount; i++ {
		page := models.DeckPageModel{DeckID: deck.ID, Index: i}
		if err := s.db.Create(&page).Error; err != nil {
			return nil, err
		}
	}
	return &deck, nil
}

// GetDeck fetches a deck by id or slug. Returns (nil, nil) when absent.
func (s *Service) GetDeck(idOrSlug string) (*models.DeckModel, error) {
	var deck models.DeckModel
	err := s.db.First(&deck, "id = ? OR slug = ?", idOrSlug, idOrSlug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &deck, nil
}

// ListDecks returns every deck, newest first.
func (s *Service) ListDecks() ([]models.DeckModel, error) {
	var decks []models.DeckModel
	return decks, s.db.Order("created_at DESC").Find(&decks).Error
}

// UpdateDeck applies field updates and pulses refresh{manifest} to every
// room presenting the deck.
func (s *Service) UpdateDeck(id string, updates map[string]interface{}) (*models.DeckModel, error) {
	deck, err := s.GetDeck(id)
	if err != nil || deck == nil {
		return deck, err
	}
	if err := s.db.Model(deck).Updates(updates).Error; err != nil {
		return nil, err
	}
	s.refreshRooms(deck.ID, slidesync.ScopeManifest)
	return deck, nil
}

// PageCount is the narrow provider interface the live core consumes: total
// pages for a deck.
func (s *Service) PageCount(deckID string) (int, error) {
	deck, err := s.GetDeck(deckID)
	if err != nil {
		return 0, err
	}
	if deck == nil {
		return 0, fmt.Errorf("deck %s not found", deckID)
	}
	return deck.PageCount, nil
}

// Pages returns a deck's per-page metadata ordered by index.
func (s *Service) Pages(deckID string) ([]models.DeckPageModel, error) {
	var pages []models.DeckPageModel
	return pages, s.db.Where("deck_id = ?", deckID).Order("`index` ASC").Find(&pages).Error
}

// UpdateOverlays replaces one page's overlay JSON and pulses
// refresh{overlays} to rooms presenting the deck. The overlay content is
// opaque to this service.
func (s *Service) UpdateOverlays(deckID string, index int, overlays string) error {
	res := s.db.Model(&models.DeckPageModel{}).
		Where("deck_id = ? AND `index` = ?", deckID, index).
		Update("overlays", overlays)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("page %d of deck %s not found", index, deckID)
	}
	s.refreshRooms(deckID, slidesync.ScopeOverlays)
	return nil
}

// CreateRoom binds a room key to a deck.
func (s *Service) CreateRoom(key, title, deckID, teacherID string) (*models.RoomModel, error) {
	deck, err := s.GetDeck(deckID)
	if err != nil {
		return nil, err
	}
	if deck == nil {
		return nil, fmt.Errorf("deck %s not found", deckID)
	}
	room := models.RoomModel{Key: key, Title: title, DeckID: deck.ID, TeacherID: teacherID}
	if err := s.db.Create(&room).Error; err != nil {
		return nil, err
	}
	if s.roomHook != nil {
		s.roomHook(room.Key)
	}
	return &room, nil
}

// GetRoom fetches a room by key. Returns (nil, nil) when absent.
func (s *Service) GetRoom(key string) (*models.RoomModel, error) {
	var room models.RoomModel
	err := s.db.First(&room, "`key` = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ListRooms returns every room, newest first.
func (s *Service) ListRooms() ([]models.RoomModel, error) {
	var rooms []models.RoomModel
	return rooms, s.db.Order("created_at DESC").Find(&rooms).Error
}

// refreshRooms broadcasts a cache-invalidation pulse on the sync topic of
// every room bound to the deck. The pulse carries no data; consumers
// re-read the store.
func (s *Service) refreshRooms(deckID, scope string) {
	if s.broker == nil {
		return
	}
	var rooms []models.RoomModel
	if err := s.db.Where("deck_id = ?", deckID).Find(&rooms).Error; err != nil {
		s.logger.Warn("refresh lookup failed", zap.String("deck", deckID), zap.Error(err))
		return
	}
	payload := slidesync.EncodeRefresh(scope)
	for _, room := range rooms {
		s.broker.Publish(transport.SyncTopic(room.Key), payload)
	}
}
