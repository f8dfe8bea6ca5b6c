package realtime

import (
	"encoding/json"
	"strings"

	"github.com/spec-kit/storefront-realtime/internal/channels"
	"github.com/spec-kit/storefront-realtime/internal/domain"
)

// Websocket opcodes used by the session; they match RFC 6455.
const (
	textMessage = 1
	pingMessage = 9
)

// Conn is the part of a websocket connection a Session needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// CommandType is the closed set of client commands.
type CommandType uint8

const (
	CommandUnknown CommandType = iota
	CommandPing
	CommandGetStats
	CommandGetRecentOrders
	CommandGetContactCount
	CommandGetContactStats
	CommandGetRecentContacts
	CommandGetInboxStats
	CommandGetConversations
	CommandGetOnlineUsers
	CommandSetStatus
	CommandChatMessage
	CommandTypingStart
	CommandTypingStop
	CommandMarkRead
	CommandMarkViewed
)

var commandNames = [...]string{
	CommandUnknown:           "unknown",
	CommandPing:              "ping",
	CommandGetStats:          "get_stats",
	CommandGetRecentOrders:   "get_recent_orders",
	CommandGetContactCount:   "get_contact_count",
	CommandGetContactStats:   "get_contact_stats",
	CommandGetRecentContacts: "get_recent_contacts",
	CommandGetInboxStats:     "get_inbox_stats",
	CommandGetConversations:  "get_conversations",
	CommandGetOnlineUsers:    "get_online_users",
	CommandSetStatus:         "set_status",
	CommandChatMessage:       "chat_message",
	CommandTypingStart:       "typing_start",
	CommandTypingStop:        "typing_stop",
	CommandMarkRead:          "mark_read",
	CommandMarkViewed:        "mark_viewed",
}

var commandsByName = func() map[string]CommandType {
	m := make(map[string]CommandType, len(commandNames))
	for i, name := range commandNames {
		if CommandType(i) != CommandUnknown {
			m[name] = CommandType(i)
		}
	}
	return m
}()

func (c CommandType) String() string {
	if int(c) < len(commandNames) {
		return commandNames[c]
	}
	return commandNames[CommandUnknown]
}

// ParseCommandType maps a wire name to its CommandType.
func ParseCommandType(name string) CommandType {
	return commandsByName[strings.TrimSpace(name)]
}

// Command is one decoded client frame. Only the fields relevant to its
// type are set.
type Command struct {
	Type        CommandType
	Name        string
	Message     string
	MessageType domain.MessageType
	MessageID   string
	Status      string
	Limit       int
}

const errMalformedCommand = protocolError("invalid message format")

type wireCommand struct {
	Type        string             `json:"type"`
	Message     string             `json:"message"`
	MessageType domain.MessageType `json:"message_type"`
	MessageID   string             `json:"message_id"`
	Status      string             `json:"status"`
	Limit       int                `json:"limit"`
}

// DecodeCommand parses a client frame.
func DecodeCommand(data []byte) (Command, error) {
	var wire wireCommand
	if err := json.Unmarshal(data, &wire); err != nil || wire.Type == "" {
		return Command{}, errMalformedCommand
	}
	return Command{
		Type:        ParseCommandType(wire.Type),
		Name:        wire.Type,
		Message:     wire.Message,
		MessageType: wire.MessageType,
		MessageID:   wire.MessageID,
		Status:      wire.Status,
		Limit:       wire.Limit,
	}, nil
}

// Frame types the server sends besides group events.
const (
	FrameConnectionEstablished = "connection_established"
	FramePong                  = "pong"
	FrameError                 = "error"
	FrameRecentOrders          = "recent_orders"
	FrameContactStats          = "contact_stats"
	FrameRecentContacts        = "recent_contacts"
	FrameInboxStats            = "inbox_stats"
	FrameConversations         = "conversations"
	FrameOnlineUsers           = "online_users"
	FrameStatusUpdated         = "status_updated"
	FrameMarkedRead            = "marked_read"
)

// Frame is a server to client JSON object; "type" names it.
type Frame map[string]any

// NewFrame copies payload into a frame of the given type. Group payloads
// are shared between sessions, so they are never modified in place.
func NewFrame(frameType string, payload map[string]any) Frame {
	frame := make(Frame, len(payload)+1)
	for k, v := range payload {
		frame[k] = v
	}
	frame["type"] = frameType
	return frame
}

// EventFrame renders a group message as a frame of the same name.
func EventFrame(msg channels.Message) Frame {
	return NewFrame(string(msg.Type), msg.Payload)
}

func errorFrame(message string) Frame {
	return Frame{"type": FrameError, "message": message}
}
