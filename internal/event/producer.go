package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joa111/ecom-mang/internal/domain"
	pkgkafka "github.com/joa111/ecom-mang/pkg/kafka"
)

// Kafka topic constants for cart domain events.
const (
	TopicCartUpdated = "storefront.cart.updated"
	TopicCartMerged  = "storefront.cart.merged"
	TopicCartCleared = "storefront.cart.cleared"
)

// Aggregate type constant.
const AggregateTypeCart = "cart"

// Source identifier for events originating from this service.
const SourceCartService = "cartsync"

// LineItemData is the item payload within cart events.
type LineItemData struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// CartUpdatedData is the payload for cart.updated and cart.merged events.
type CartUpdatedData struct {
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id,omitempty"`
	Items     []LineItemData `json:"items"`
	ItemCount int            `json:"item_count"`
	Subtotal  int64          `json:"subtotal"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
}

// Producer publishes cart domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the cart service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// aggregateID keys events by user when authenticated, session otherwise, so
// one user's events land in order on the same partition.
func aggregateID(sessionID, userID string) string {
	if userID != "" {
		return userID
	}
	return sessionID
}

func cartData(sessionID, userID string, cart *domain.Cart) CartUpdatedData {
	items := make([]LineItemData, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = LineItemData{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}
	return CartUpdatedData{
		SessionID: sessionID,
		UserID:    userID,
		Items:     items,
		ItemCount: cart.ItemCount(),
		Subtotal:  cart.Subtotal(),
	}
}

// CartUpdated publishes a cart.updated event.
func (p *Producer) CartUpdated(ctx context.Context, sessionID, userID string, cart *domain.Cart) error {
	return p.publishCart(ctx, TopicCartUpdated, sessionID, userID, cart)
}

// CartMerged publishes a cart.merged event after a guest cart is absorbed
// into a user cart on sign-in.
func (p *Producer) CartMerged(ctx context.Context, sessionID, userID string, cart *domain.Cart) error {
	return p.publishCart(ctx, TopicCartMerged, sessionID, userID, cart)
}

func (p *Producer) publishCart(ctx context.Context, topic, sessionID, userID string, cart *domain.Cart) error {
	data := cartData(sessionID, userID, cart)

	event, err := pkgkafka.NewEvent(topic, aggregateID(sessionID, userID), AggregateTypeCart, SourceCartService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published cart event",
		slog.String("topic", topic),
		slog.String("session_id", sessionID),
		slog.Int("item_count", data.ItemCount),
	)

	return nil
}

// CartCleared publishes a cart.cleared event.
func (p *Producer) CartCleared(ctx context.Context, sessionID, userID string) error {
	data := CartClearedData{SessionID: sessionID, UserID: userID}

	event, err := pkgkafka.NewEvent(TopicCartCleared, aggregateID(sessionID, userID), AggregateTypeCart, SourceCartService, data)
	if err != nil {
		return fmt.Errorf("create cart.cleared event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartCleared, event); err != nil {
		return fmt.Errorf("publish cart.cleared event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.cleared event",
		slog.String("session_id", sessionID),
	)

	return nil
}
