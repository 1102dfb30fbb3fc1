package websocket

import (
	"encoding/json"
	"time"

	"github.com/Martin-Hayot/car-auction/internal/auction"
	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/shopspring/decimal"
)

// Inbound and outbound message types.
const (
	MessageJoin      = "join"
	MessageLeave     = "leave"
	MessageListings  = "listings"
	MessageBid       = "bid"
	MessageJoined    = "joined"
	MessageLeft      = "left"
	MessageBidResult = "bid_result"
	MessageEvent     = "event"
)

type Message struct {
	Type string          `json:"type"`           // Type of the message (e.g., "bid", "join")
	Data json.RawMessage `json:"data,omitempty"` // Payload of the message
}

type groupRequest struct {
	AuctionID string `json:"auctionId"`
}

type bidRequest struct {
	AuctionID string          `json:"auctionId"`
	Amount    decimal.Decimal `json:"amount"`
}

// bidReply is a BidResult plus the human readable rejection message.
type bidReply struct {
	AuctionID string               `json:"auctionId"`
	Outcome   auction.Outcome      `json:"outcome"`
	Reason    auction.RejectReason `json:"reason,omitempty"`
	Message   string               `json:"message,omitempty"`
	Bid       *types.Bid           `json:"bid,omitempty"`
	Extended  bool                 `json:"extended"`
	EndTime   time.Time            `json:"endTime"`
}

// ParseMessage validates and parses incoming messages.
func ParseMessage(rawMessage []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(rawMessage, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, errors.New(errors.ErrBadMessageFormat, "missing message type")
	}
	return &msg, nil
}

func encode(msgType string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: msgType, Data: payload})
}

// clientError converts err to the frame sent to a client. Only errors
// carrying a known code keep their message.
func clientError(err error) *errors.AppError {
	var app *errors.AppError
	if errors.As(err, &app) && app.Code != 0 {
		return errors.New(app.Code, app.Message)
	}
	if code := errors.CodeOf(err); code != 0 {
		return errors.New(code, err.Error())
	}
	return errors.New(errors.ErrInternalServer, "Internal server error")
}
