package event

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/clock"
	"github.com/smallbiznis/proppass/internal/invitation/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TopicCreated  = "invitation.created"
	TopicAccepted = "invitation.accepted"
	TopicDeclined = "invitation.declined"
	TopicRevoked  = "invitation.revoked"
	TopicExpired  = "invitation.expired"
)

// Publisher appends events to the outbox using the caller's handle, so an
// event commits or rolls back with the state change it describes.
type Publisher interface {
	Publish(ctx context.Context, db *gorm.DB, topic string, inv domain.Invitation, userID snowflake.ID) error
}

type outboxPublisher struct {
	genID *snowflake.Node
	clock clock.Clock
}

func NewOutboxPublisher(genID *snowflake.Node, clk clock.Clock) Publisher {
	return &outboxPublisher{
		genID: genID,
		clock: clk,
	}
}

// Payload never carries the token or its hash.
type Payload struct {
	InvitationID string `json:"invitation_id"`
	Scope        string `json:"scope"`
	AccountID    string `json:"account_id"`
	PropertyID   string `json:"property_id,omitempty"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	State        string `json:"state"`
	UserID       string `json:"user_id,omitempty"`
}

func NewPayload(inv domain.Invitation, userID snowflake.ID) Payload {
	payload := Payload{
		InvitationID: inv.ID.String(),
		Scope:        string(inv.Scope),
		AccountID:    inv.AccountID.String(),
		Email:        inv.Email,
		Role:         string(inv.Role),
		State:        string(inv.State),
	}
	if inv.PropertyID != nil {
		payload.PropertyID = inv.PropertyID.String()
	}
	if userID != 0 {
		payload.UserID = userID.String()
	}
	return payload
}

func (p *outboxPublisher) Publish(ctx context.Context, db *gorm.DB, topic string, inv domain.Invitation, userID snowflake.ID) error {
	payload, err := json.Marshal(NewPayload(inv, userID))
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Exec(
		`INSERT INTO outbox_events (id, topic, aggregate_id, payload, published, created_at)
		 VALUES (?, ?, ?, ?, false, ?)`,
		p.genID.Generate(),
		topic,
		inv.ID,
		datatypes.JSON(payload),
		p.clock.Now(),
	).Error
}
