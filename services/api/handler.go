package api

import (
	"context"
	"net/http"
	"strings"

	"storefront-bot/pkg/db/pagination"
	"storefront-bot/pkg/errutil"
	"storefront-bot/pkg/middleware"
	"storefront-bot/services/ticket"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultSender = "Admin"
	closedByAPI   = "api"
)

type Tickets interface {
	Active(ctx context.Context) ([]ticket.Ticket, error)
	Get(ctx context.Context, channelID string) (*ticket.Ticket, error)
	MessagePage(ctx context.Context, channelID string, after snowflake.ID, limit int) ([]ticket.Message, error)
	Reply(ctx context.Context, channelID, senderName, content string, sender ticket.SenderType) (*ticket.Message, error)
	Close(ctx context.Context, channelID, closedBy string) (*ticket.Ticket, error)
}

// Handler serves the operator ticket API.
type Handler struct {
	tickets Tickets
}

func NewHandler(tickets Tickets) *Handler {
	return &Handler{tickets: tickets}
}

type ticketList struct {
	Tickets []ticket.Ticket `json:"tickets"`
	Count   int             `json:"count"`
}

type messagePage struct {
	Messages []ticket.Message    `json:"messages"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type sendRequest struct {
	Content string `json:"content" binding:"required,max=4000"`
	Sender  string `json:"sender" binding:"omitempty,max=64"`
}

// Register mounts the ticket routes under /api.
func (h *Handler) Register(r gin.IRouter, apiKey string, origins []string) {
	g := r.Group("/api", middleware.CORS(origins), middleware.Error(), middleware.APIKey(apiKey))
	g.GET("/tickets", h.ListTickets)
	g.GET("/tickets/:channel", h.GetTicket)
	g.DELETE("/tickets/:channel", h.CloseTicket)
	g.GET("/tickets/:channel/messages", h.ListMessages)
	g.POST("/tickets/:channel/messages", h.SendMessage)
	g.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

func (h *Handler) ListTickets(c *gin.Context) {
	tickets, err := h.tickets.Active(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if tickets == nil {
		tickets = []ticket.Ticket{}
	}
	c.JSON(http.StatusOK, ticketList{Tickets: tickets, Count: len(tickets)})
}

func (h *Handler) GetTicket(c *gin.Context) {
	t, err := h.lookup(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) lookup(c *gin.Context) (*ticket.Ticket, error) {
	t, err := h.tickets.Get(c.Request.Context(), c.Param("channel"))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errutil.NotFound("ticket not found", nil)
	}
	return t, nil
}

func (h *Handler) ListMessages(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		_ = c.Error(errutil.Invalid("invalid pagination", err))
		return
	}

	var after snowflake.ID
	if page.Cursor != "" {
		cur, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			_ = c.Error(errutil.BadRequest("invalid cursor", err))
			return
		}
		if after, err = snowflake.ParseString(cur.ID); err != nil {
			_ = c.Error(errutil.BadRequest("invalid cursor", err))
			return
		}
	}

	t, err := h.lookup(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	msgs, err := h.tickets.MessagePage(c.Request.Context(), t.ChannelID, after, page.Limit+1)
	if err != nil {
		_ = c.Error(err)
		return
	}
	msgs, info, err := pagination.Page(msgs, page.Limit, func(m ticket.Message) pagination.Cursor {
		return pagination.Cursor{ID: m.ID.String()}
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	if msgs == nil {
		msgs = []ticket.Message{}
	}
	c.JSON(http.StatusOK, messagePage{Messages: msgs, PageInfo: info})
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.Invalid("invalid message", err))
		return
	}
	sender := strings.TrimSpace(req.Sender)
	if sender == "" {
		sender = defaultSender
	}

	m, err := h.tickets.Reply(c.Request.Context(), c.Param("channel"), sender, req.Content, ticket.SenderOperator)
	if err != nil {
		_ = c.Error(err)
		return
	}
	zap.L().Info("[API] reply posted", zap.String("channel_id", m.ChannelID), zap.String("sender", sender))
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) CloseTicket(c *gin.Context) {
	t, err := h.tickets.Close(c.Request.Context(), c.Param("channel"), closedByAPI)
	if err != nil {
		_ = c.Error(err)
		return
	}
	zap.L().Info("[API] ticket closed", zap.String("channel_id", t.ChannelID))
	c.JSON(http.StatusOK, t)
}
