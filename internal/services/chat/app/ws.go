package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/voxhall/voxhall/internal/services/chat/domain"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3
)

type wsUserIDContextKey struct{}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type dismissPayload struct {
	ChannelID string `json:"channel_id"`
}

// websocketHandler authenticates the upgrade request, then hands the
// connection to the hub with its room subscriptions already resolved.
func (h *handler) websocketHandler() http.Handler {
	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		h.handleWSConn(conn)
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, err := h.authenticate(r)
		if err != nil {
			log.Printf("chat: websocket unauthorized: remote=%s err=%v", r.RemoteAddr, err)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), wsUserIDContextKey{}, account.UserID)
		wsHandler.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *handler) handleWSConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	request := conn.Request()
	if request == nil {
		return
	}
	userID, _ := request.Context().Value(wsUserIDContextKey{}).(string)
	if strings.TrimSpace(userID) == "" {
		return
	}

	peer := newWSPeer(json.NewEncoder(conn))
	rooms, err := h.connectRooms(request.Context(), userID)
	if err != nil {
		log.Printf("chat: resolve rooms for user=%q: %v", userID, err)
		_ = writeWSError(peer, "UNAVAILABLE", "subscription setup failed")
		return
	}
	h.hub.register(peer, rooms...)
	defer h.hub.unregister(peer)

	decoder := json.NewDecoder(conn)
	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = writeWSError(peer, "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeWSError(peer, "INVALID_ARGUMENT", "payload too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(peer, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		switch frame.Type {
		case "ping":
			_ = peer.writeFrame(wsFrame{Type: "pong"})
		case "notification.dismiss":
			h.handleDismissFrame(request.Context(), peer, userID, frame)
		default:
			_ = writeWSError(peer, "INVALID_ARGUMENT", "unsupported frame type")
		}
	}
}

func (h *handler) handleDismissFrame(ctx context.Context, peer *wsPeer, userID string, frame wsFrame) {
	var payload dismissPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(peer, "INVALID_ARGUMENT", "invalid dismiss payload")
		return
	}
	if strings.TrimSpace(payload.ChannelID) == "" {
		_ = writeWSError(peer, "INVALID_ARGUMENT", "channel_id is required")
		return
	}
	if err := h.service.DismissNotification(ctx, userID, payload.ChannelID, true); err != nil {
		log.Printf("chat: dismiss over websocket user=%q channel=%q: %v", userID, payload.ChannelID, err)
		_ = writeWSError(peer, "UNAVAILABLE", "dismiss failed")
	}
}

// connectRooms resolves the rooms a fresh connection starts in: the user's
// personal room, each membership's server room, and each channel room the
// user can see. Private channels are visible only to the server creator.
func (h *handler) connectRooms(ctx context.Context, userID string) ([]string, error) {
	rooms := []string{userID}
	memberships, err := h.directory.ListUserMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, membership := range memberships {
		rooms = append(rooms, membership.ServerID)

		srv, err := h.directory.GetServer(ctx, membership.ServerID)
		if err != nil {
			return nil, err
		}
		channels, err := h.directory.ListServerChannels(ctx, membership.ServerID)
		if err != nil {
			return nil, err
		}
		for _, channel := range channels {
			if domain.Has(channel.Permissions, domain.PermissionPrivateChannel) && srv.CreatedBy != userID {
				continue
			}
			rooms = append(rooms, channel.ID)
		}
	}
	return rooms, nil
}

func writeWSError(peer *wsPeer, code string, message string) error {
	body, err := json.Marshal(wsErrorEnvelope{Error: wsError{Code: code, Message: message}})
	if err != nil {
		return err
	}
	return peer.writeFrame(wsFrame{Type: "error", Payload: body})
}
