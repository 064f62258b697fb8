package models

// RoomModel binds a room key, the scoping string for one class session's
// sync, presence, and notify topics, to the deck being presented.
type RoomModel struct {
	Base
	Key       string `json:"key"   gorm:"uniqueIndex;size:190;not null"`
	Title     string `json:"title"`
	DeckID    string `json:"deckId" gorm:"index;size:36;not null"`
	TeacherID string `json:"teacherId" gorm:"size:36"`
}

func (RoomModel) TableName() string { return "rooms" }
