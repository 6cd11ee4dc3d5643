package websocket

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/palaverhq/palaver/adapters/notifier"
	"github.com/palaverhq/palaver/domain"
	"github.com/palaverhq/palaver/utils/log"
	"go.uber.org/zap"
)

// Server forwards chat events from the broker to connected websocket
// clients, routed per chat.
type Server struct {
	upgrader websocket.Upgrader
	broker   domain.Broker
	hub      *Hub
}

func NewServer(broker domain.Broker) *Server {
	server := &Server{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		broker:   broker,
		hub:      NewHub(),
	}

	go server.startEventListener()

	return server
}

func (s *Server) RunHub() {
	s.hub.Run()
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// startEventListener subscribes to all chat events and fans them out to the
// clients attached to each chat. Event payloads pass through verbatim.
func (s *Server) startEventListener() {
	ctx := context.Background()

	events, err := s.broker.Subscribe(ctx, notifier.ChatEventsTopic, "")
	if err != nil {
		log.WithCtx(ctx).Error("failed to subscribe to chat events", zap.Error(err))
		return
	}

	log.WithCtx(ctx).Info("websocket server listening for chat events")

	for {
		select {
		case msg, ok := <-events:
			if !ok {
				log.WithCtx(ctx).Info("chat event stream closed")
				return
			}
			s.hub.SendToChat(msg.RoutingKey, msg.Payload)

		case <-ctx.Done():
			return
		}
	}
}

// Handler upgrades an authenticated request to a websocket attached to one
// chat. The JWT middleware has already placed user_id in the echo context;
// the chat id comes from the query string.
func (s *Server) Handler(c echo.Context) error {
	chatID := c.QueryParam("chat_id")
	if chatID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "chat_id is required")
	}
	userID, _ := c.Get("user_id").(string)

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(conn, chatID, userID)
	s.hub.Register(client)
	client.Run()

	defer s.hub.Unregister(client)

	// Hold the handler until the connection goes away.
	<-client.Context().Done()
	return nil
}
