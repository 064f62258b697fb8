package models

// DeckModel is a slide deck manifest: the page count plus per-page
// metadata. The images themselves live outside this system; pages only
// carry references.
type DeckModel struct {
	Base
	Title     string `json:"title" gorm:"not null"`
	Slug      string `json:"slug"  gorm:"uniqueIndex;size:190;not null"`
	PageCount int    `json:"pageCount"`

	Pages []DeckPageModel `json:"pages,omitempty" gorm:"foreignKey:DeckID"`
}

func (DeckModel) TableName() string { return "decks" }

// DeckPageModel is one page of a deck. Overlays holds the per-page
// annotation layer as opaque JSON; the live core never interprets it,
// it only signals consumers to reload it.
type DeckPageModel struct {
	Base
	DeckID   string `json:"deckId" gorm:"index;size:36;not null"`
	Index    int    `json:"index"  gorm:"not null"`
	ImageURL string `json:"imageUrl"`
	Overlays string `json:"overlays" gorm:"type:longtext"`
	Notes    string `json:"notes"    gorm:"type:text"`
}

func (DeckPageModel) TableName() string { return "deck_pages" }
