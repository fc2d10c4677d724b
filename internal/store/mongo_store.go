package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/isdelr/traderlibrary-be/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on MongoDB. Accounts use their UUID string as
// _id; uniqueness is enforced by indexes created in EnsureIndexes.
type MongoStore struct {
	client   *mongo.Client
	accounts *mongo.Collection
	events   *mongo.Collection
}

// NewMongoStore creates a new MongoStore on the named database.
func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		client:   client,
		accounts: db.Collection("accounts"),
		events:   db.Collection("security_events"),
	}
}

// EnsureIndexes creates the unique and secondary indexes. It is idempotent.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.accounts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("username_1")},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_1")},
		{Keys: bson.D{{Key: "referral_code", Value: 1}}, Options: options.Index().SetUnique(true).SetName("referral_code_1")},
		{Keys: bson.D{{Key: "subscription.is_active", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "password_reset_token", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("create account indexes: %w", err)
	}
	_, err = s.events.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "created_at", Value: -1}}})
	if err != nil {
		return fmt.Errorf("create event indexes: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *MongoStore) Ping(ctx context.Context) error { return s.client.Ping(ctx, nil) }

// Close disconnects the client.
func (s *MongoStore) Close() error { return s.client.Disconnect(context.Background()) }

// CreateAccount inserts a new account document.
func (s *MongoStore) CreateAccount(ctx context.Context, a *models.Account) error {
	if _, err := s.accounts.InsertOne(ctx, a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &DuplicateError{Field: mongoDuplicateField(err), Err: err}
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *MongoStore) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoStore) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *MongoStore) GetAccountByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"referral_code": code})
}

func (s *MongoStore) GetAccountByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.Account, error) {
	return s.findOne(ctx, bson.M{
		"password_reset_token":   tokenHash,
		"password_reset_expires": bson.M{"$gt": now},
	})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	var a models.Account
	if err := s.accounts.FindOne(ctx, filter).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *MongoStore) IncrementReferralCount(ctx context.Context, id string, at time.Time) error {
	return s.updateOne(ctx, id, bson.M{
		"$inc": bson.M{"referral_count": 1},
		"$set": bson.M{"updated_at": at},
	})
}

func (s *MongoStore) UpdateProfile(ctx context.Context, a *models.Account) error {
	return s.updateOne(ctx, a.ID, bson.M{"$set": bson.M{
		"first_name":       a.FirstName,
		"last_name":        a.LastName,
		"experience_level": a.ExperienceLevel,
		"preferences":      a.Preferences,
		"updated_at":       a.UpdatedAt,
	}})
}

func (s *MongoStore) UpdatePassword(ctx context.Context, id, hash string, changedAt time.Time) error {
	return s.updateOne(ctx, id, bson.M{
		"$set":   bson.M{"password_hash": hash, "password_changed_at": changedAt, "updated_at": changedAt},
		"$unset": bson.M{"password_reset_token": "", "password_reset_expires": ""},
	})
}

func (s *MongoStore) SetPasswordResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{
		"password_reset_token":   tokenHash,
		"password_reset_expires": expires,
	}})
}

func (s *MongoStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{"last_login": at}})
}

func (s *MongoStore) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{"is_active": active, "updated_at": at}})
}

func (s *MongoStore) SetRole(ctx context.Context, id string, role models.Role, at time.Time) error {
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{"role": role, "updated_at": at}})
}

func (s *MongoStore) UpdateSubscription(ctx context.Context, id string, sub models.Subscription, at time.Time) error {
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{"subscription": sub, "updated_at": at}})
}

func (s *MongoStore) updateOne(ctx context.Context, id string, update bson.M) error {
	res, err := s.accounts.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListActiveSubscribers(ctx context.Context, now time.Time) ([]models.Account, error) {
	filter := bson.M{
		"subscription.is_active": true,
		"$or": bson.A{
			bson.M{"subscription.end_date": bson.M{"$exists": false}},
			bson.M{"subscription.end_date": nil},
			bson.M{"subscription.end_date": bson.M{"$gt": now}},
		},
	}
	cur, err := s.accounts.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var accounts []models.Account
	if err := cur.All(ctx, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *MongoStore) ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.accounts.UpdateMany(ctx,
		bson.M{"subscription.is_active": true, "subscription.end_date": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"subscription.is_active": false, "updated_at": now}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.accounts.UpdateMany(ctx,
		bson.M{"password_reset_expires": bson.M{"$lte": now}},
		bson.M{"$unset": bson.M{"password_reset_token": "", "password_reset_expires": ""}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) CreateEvent(ctx context.Context, e *models.Event) error {
	_, err := s.events.InsertOne(ctx, e)
	return err
}

func (s *MongoStore) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit))
	cur, err := s.events.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var events []models.Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// mongoDuplicateField extracts the field from an E11000 message such as
// "... index: email_1 dup key: { email: \"a@b.c\" }".
func mongoDuplicateField(err error) string {
	msg := err.Error()
	const marker = "index: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return "unknown"
	}
	name := msg[i+len(marker):]
	if sp := strings.IndexByte(name, ' '); sp >= 0 {
		name = name[:sp]
	}
	return strings.TrimSuffix(name, "_1")
}
