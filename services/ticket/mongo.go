package ticket

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ticketCollection  = "tickets"
	messageCollection = "ticket_messages"
)

// MongoStore keeps tickets in MongoDB, keyed by channel ID.
type MongoStore struct {
	tickets  *mongo.Collection
	messages *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		tickets:  db.Collection(ticketCollection),
		messages: db.Collection(messageCollection),
	}
}

// EnsureIndexes creates the lookup indexes; it is safe to call on every start.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.tickets.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "member_id", Value: 1}, {Key: "status", Value: 1}},
	})
	if err != nil {
		return err
	}
	_, err = s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "channel_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return err
}

func (s *MongoStore) Create(ctx context.Context, t *Ticket) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = StatusActive
	}
	_, err := s.tickets.InsertOne(ctx, t)
	return err
}

func (s *MongoStore) Get(ctx context.Context, channelID string) (*Ticket, error) {
	return s.findOne(ctx, bson.M{"_id": channelID})
}

func (s *MongoStore) ActiveByMember(ctx context.Context, memberID string) (*Ticket, error) {
	return s.findOne(ctx, bson.M{"member_id": memberID, "status": StatusActive})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*Ticket, error) {
	var t Ticket
	err := s.tickets.FindOne(ctx, filter).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *MongoStore) ListActive(ctx context.Context) ([]Ticket, error) {
	opts := options.Find().SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "created_at", Value: 1}})
	cur, err := s.tickets.Find(ctx, bson.M{"status": StatusActive}, opts)
	if err != nil {
		return nil, err
	}
	var out []Ticket
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) Close(ctx context.Context, channelID, closedBy string, at time.Time) (bool, error) {
	res, err := s.tickets.UpdateOne(ctx,
		bson.M{"_id": channelID, "status": StatusActive},
		bson.M{"$set": bson.M{"status": StatusClosed, "closed_at": at, "closed_by": closedBy}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (s *MongoStore) SetTelegramChat(ctx context.Context, channelID string, chatID int64) error {
	_, err := s.tickets.UpdateOne(ctx, bson.M{"_id": channelID}, bson.M{"$set": bson.M{"telegram_chat_id": chatID}})
	return err
}

func (s *MongoStore) AddMessage(ctx context.Context, m *Message) error {
	_, err := s.messages.InsertOne(ctx, m)
	return err
}

func (s *MongoStore) Messages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.messages.Find(ctx, bson.M{"channel_id": channelID}, opts)
	if err != nil {
		return nil, err
	}
	var out []Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) MessagesAfter(ctx context.Context, channelID string, after snowflake.ID, limit int) ([]Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(int64(limit))
	cur, err := s.messages.Find(ctx, bson.M{"channel_id": channelID, "_id": bson.M{"$gt": after}}, opts)
	if err != nil {
		return nil, err
	}
	var out []Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
