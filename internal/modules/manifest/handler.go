package manifest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/slidecast/core/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	decks := r.Group("/decks")
	{
		decks.GET("", h.listDecks)
		decks.GET("/:id", h.getDeck)
		decks.GET("/:id/pages", h.listPages)

		protected := decks.Group("", middleware.Auth(middleware.RoleTeacher))
		{
			protected.POST("", h.createDeck)
			protected.PATCH("/:id", h.updateDeck)
			protected.PUT("/:id/pages/:index/overlays", h.updateOverlays)
		}
	}

	rooms := r.Group("/rooms")
	{
		rooms.GET("", h.listRooms)
		rooms.GET("/:key", h.getRoom)
		rooms.POST("", middleware.Auth(middleware.RoleTeacher), h.createRoom)
	}
}

type createDeckBody struct {
	Title     string `json:"title" binding:"required"`
	Slug      string `json:"slug" binding:"required"`
	PageCount int    `json:"pageCount" binding:"required,min=1"`
}

func (h *Handler) createDeck(c *gin.Context) {
	var body createDeckBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	deck, err := h.service.CreateDeck(body.Title, body.Slug, body.PageCount)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, deck)
}

func (h *Handler) listDecks(c *gin.Context) {
	decks, err := h.service.ListDecks()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": decks})
}

func (h *Handler) getDeck(c *gin.Context) {
	deck, err := h.service.GetDeck(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if deck == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "deck not found"})
		return
	}
	c.JSON(http.StatusOK, deck)
}

type updateDeckBody struct {
	Title     *string `json:"title"`
	PageCount *int    `json:"pageCount"`
}

func (h *Handler) updateDeck(c *gin.Context) {
	var body updateDeckBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	updates := map[string]interface{}{}
	if body.Title != nil {
		updates["title"] = *body.Title
	}
	if body.PageCount != nil {
		updates["page_count"] = *body.PageCount
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "nothing to update"})
		return
	}
	deck, err := h.service.UpdateDeck(c.Param("id"), updates)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if deck == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "deck not found"})
		return
	}
	c.JSON(http.StatusOK, deck)
}

func (h *Handler) listPages(c *gin.Context) {
	deck, err := h.service.GetDeck(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if deck == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "deck not found"})
		return
	}
	pages, err := h.service.Pages(deck.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": pages})
}

type updateOverlaysBody struct {
	Overlays string `json:"overlays" binding:"required"`
}

func (h *Handler) updateOverlays(c *gin.Context) {
	var body updateOverlaysBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid page index"})
		return
	}
	deck, err := h.service.GetDeck(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if deck == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "deck not found"})
		return
	}
	if err := h.service.UpdateOverlays(deck.ID, index, body.Overlays); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": 1})
}

type createRoomBody struct {
	Key    string `json:"key" binding:"required"`
	Title  string `json:"title"`
	DeckID string `json:"deckId" binding:"required"`
}

func (h *Handler) createRoom(c *gin.Context) {
	var body createRoomBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	room, err := h.service.CreateRoom(body.Key, body.Title, body.DeckID, middleware.CurrentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *Handler) listRooms(c *gin.Context) {
	rooms, err := h.service.ListRooms()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rooms})
}

func (h *Handler) getRoom(c *gin.Context) {
	room, err := h.service.GetRoom(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if room == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "room not found"})
		return
	}
	c.JSON(http.StatusOK, room)
}
