package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Martin-Hayot/car-auction/configs"
	"github.com/Martin-Hayot/car-auction/internal/auction"
	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const bidTimeout = 10 * time.Second

// BidPlacer is the part of the engine the socket needs.
type BidPlacer interface {
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (auction.BidResult, error)
}

type Authenticator interface {
	Authenticate(r *http.Request) (types.User, error)
}

type AuctionHandler struct {
	hub      *Hub
	engine   BidPlacer
	auth     Authenticator
	cfg      configs.WebSocketConfig
	upgrader websocket.Upgrader
}

func NewAuctionWebSocketHandler(hub *Hub, engine BidPlacer, auth Authenticator, cfg configs.WebSocketConfig, allowCrossOrigin bool) *AuctionHandler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 54 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}
	h := &AuctionHandler{hub: hub, engine: engine, auth: auth, cfg: cfg}
	if allowCrossOrigin {
		h.upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return h
}

// ServeHTTP authenticates the caller and upgrades to a websocket.
func (h *AuctionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Authenticate(r)
	if err != nil {
		log.Debug("Unauthorized websocket request", "err", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Info("Failed to upgrade connection", "err", err)
		return
	}

	client := &Client{
		UserID:      user.ID,
		Email:       user.Email,
		hub:         h.hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		rateLimiter: rate.NewLimiter(rate.Limit(h.cfg.RateLimit), h.cfg.RateBurst),
	}
	h.hub.register(client)
	log.Debug("Client connected", "user", user.ID)

	pongWait := h.cfg.PingInterval * 10 / 9
	go client.writeMessages(h.cfg.PingInterval)
	go client.readMessages(h.cfg.MaxMessageSize, pongWait, h.HandleMessage)
}

func (h *AuctionHandler) reply(c *Client, msgType string, data any) {
	frame, err := encode(msgType, data)
	if err != nil {
		log.Error("Error encoding reply", "type", msgType, "err", err)
		return
	}
	c.trySend(frame)
}

func (h *AuctionHandler) replyError(c *Client, err *errors.AppError) {
	c.trySend([]byte(err.ToJSON()))
}

// HandleMessage routes the message based on its type.
func (h *AuctionHandler) HandleMessage(client *Client, rawMessage []byte) {
	if !client.rateLimiter.Allow() {
		log.Warn("Rate limit exceeded", "user", client.UserID)
		h.replyError(client, errors.New(errors.ErrRateLimited, "Rate limit exceeded"))
		return
	}

	msg, err := ParseMessage(rawMessage)
	if err != nil {
		log.Debug("Invalid message", "user", client.UserID, "err", err)
		h.replyError(client, errors.New(errors.ErrBadMessageFormat, "Invalid message format"))
		return
	}

	switch msg.Type {
	case MessageJoin, MessageLeave:
		var req groupRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.AuctionID == "" {
			h.replyError(client, errors.New(errors.ErrBadMessageFormat, "Invalid "+msg.Type+" message"))
			return
		}
		if msg.Type == MessageJoin {
			h.hub.join(client, auctionGroup(req.AuctionID))
			h.reply(client, MessageJoined, req)
		} else {
			h.hub.leave(client, auctionGroup(req.AuctionID))
			h.reply(client, MessageLeft, req)
		}
	case MessageListings:
		h.hub.join(client, ListingsGroup)
		h.reply(client, MessageJoined, map[string]string{"group": ListingsGroup})
	case MessageBid:
		h.handleBidMessage(client, msg.Data)
	default:
		log.Debug("Unknown message type", "type", msg.Type)
		h.replyError(client, errors.New(errors.ErrUnknownMessageType, "Unknown message type"))
	}
}

func (h *AuctionHandler) handleBidMessage(client *Client, data json.RawMessage) {
	var req bidRequest
	if err := json.Unmarshal(data, &req); err != nil || req.AuctionID == "" {
		h.replyError(client, errors.New(errors.ErrBadMessageFormat, "Invalid bid message"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), bidTimeout)
	defer cancel()

	result, err := h.engine.PlaceBid(ctx, req.AuctionID, client.UserID, req.Amount)
	if err != nil {
		if errors.CodeOf(err) == 0 {
			log.Error("Error placing bid", "auction", req.AuctionID, "user", client.UserID, "err", err)
		}
		h.replyError(client, clientError(err))
		return
	}

	out := bidReply{
		AuctionID: req.AuctionID,
		Outcome:   result.Outcome,
		Reason:    result.Reason,
		Bid:       result.Bid,
		Extended:  result.Extended,
		EndTime:   result.EndTime,
	}
	if !result.Accepted() {
		out.Message = result.Reason.Message()
	}
	h.reply(client, MessageBidResult, out)
}
