package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"referral-bot/internal/apperr"
	"referral-bot/models"
)

const (
	usersCollection       = "users"
	configCollection      = "configs"
	withdrawalsCollection = "withdrawals"
	paymentsCollection    = "payments"
)

// MongoStore is the document store backing the bot
type MongoStore struct {
	client      *mongo.Client
	users       *mongo.Collection
	configs     *mongo.Collection
	withdrawals *mongo.Collection
	payments    *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore connects to MongoDB and prepares the collections
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	database = defaultString(database, "referral_bot")
	mdb := client.Database(database)
	s := &MongoStore{
		client:      client,
		users:       mdb.Collection(usersCollection),
		configs:     mdb.Collection(configCollection),
		withdrawals: mdb.Collection(withdrawalsCollection),
		payments:    mdb.Collection(paymentsCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	if _, err := s.withdrawals.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("failed to create withdrawals index: %w", err)
	}
	if _, err := s.payments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create payments index: %w", err)
	}
	return nil
}

// Close disconnects the client
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func afterUpdate() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

// updateUser applies update to the user matching filter. When nothing
// matches, miss decides which error to report from the current document.
func (s *MongoStore) updateUser(ctx context.Context, id int64, filter, update bson.M, miss func(*models.User) error) (*models.User, error) {
	filter["_id"] = id

	var u models.User
	err := s.users.FindOneAndUpdate(ctx, filter, update, afterUpdate()).Decode(&u)
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.Unavailable("update user", err)
	}

	current, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if miss == nil {
		return current, nil
	}
	return current, miss(current)
}

func (s *MongoStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Unavailable("get user", err)
	}
	return &u, nil
}

func (s *MongoStore) InsertUserIfAbsent(ctx context.Context, user *models.User) (bool, error) {
	_, err := s.users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Unavailable("insert user", err)
	}
	return true, nil
}

func (s *MongoStore) ClaimDailyBonus(ctx context.Context, id, amount int64, dayStart, now time.Time) (*models.User, error) {
	u, err := s.updateUser(ctx, id,
		bson.M{"$or": bson.A{
			bson.M{"last_bonus_at": nil},
			bson.M{"last_bonus_at": bson.M{"$lt": dayStart}},
		}},
		bson.M{
			"$inc": bson.M{"balance": amount},
			"$set": bson.M{"last_bonus_at": now},
		},
		func(*models.User) error { return apperr.ErrAlreadyClaimedToday },
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *MongoStore) TakeSignupBonus(ctx context.Context, id, amount int64) (bool, error) {
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": id, "referral_bonus_taken": bson.M{"$ne": true}},
		bson.M{
			"$set": bson.M{"referral_bonus_taken": true},
			"$inc": bson.M{"balance": amount},
		},
	)
	if err != nil {
		return false, apperr.Unavailable("take signup bonus", err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *MongoStore) CreditReferral(ctx context.Context, referrerID, newUserID, amount int64) (*models.User, bool, error) {
	credited := true
	u, err := s.updateUser(ctx, referrerID,
		bson.M{"referred_users": bson.M{"$ne": newUserID}},
		bson.M{
			"$inc":      bson.M{"balance": amount, "referral_count": 1},
			"$addToSet": bson.M{"referred_users": newUserID},
		},
		func(*models.User) error {
			credited = false
			return nil
		},
	)
	if err != nil {
		return nil, false, err
	}
	return u, credited, nil
}

func (s *MongoStore) DebitForWithdrawal(ctx context.Context, id int64, requestID string, amount int64) (*models.User, error) {
	return s.updateUser(ctx, id,
		bson.M{
			"balance":             bson.M{"$gte": amount},
			"applied_withdrawals": bson.M{"$ne": requestID},
		},
		bson.M{
			"$inc":      bson.M{"balance": -amount},
			"$addToSet": bson.M{"applied_withdrawals": requestID},
		},
		func(u *models.User) error {
			if u.HasApplied(requestID) {
				return nil
			}
			return apperr.ErrInsufficientBalance
		},
	)
}

func (s *MongoStore) setUserFields(ctx context.Context, id int64, fields bson.M) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return apperr.Unavailable("update user", err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *MongoStore) SetPayoutDetails(ctx context.Context, id int64, cardNumber, fullName string) error {
	return s.setUserFields(ctx, id, bson.M{"card_number": cardNumber, "full_name": fullName})
}

func (s *MongoStore) TouchWithdrawalRequest(ctx context.Context, id int64, at time.Time) error {
	return s.setUserFields(ctx, id, bson.M{"last_withdrawal_request": at})
}

func (s *MongoStore) UserIDs(ctx context.Context) ([]int64, error) {
	cur, err := s.users.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, apperr.Unavailable("list users", err)
	}
	defer cur.Close(ctx)

	var ids []int64
	for cur.Next(ctx) {
		var row struct {
			ID int64 `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode user id: %w", err)
		}
		ids = append(ids, row.ID)
	}
	if err := cur.Err(); err != nil {
		return nil, apperr.Unavailable("list users", err)
	}
	return ids, nil
}

func (s *MongoStore) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, apperr.Unavailable("count users", err)
	}
	return n, nil
}

// ProgramConfig reads the singleton config and seeds it from defaults
// only when the document does not exist yet
func (s *MongoStore) ProgramConfig(ctx context.Context, defaults models.ProgramConfig) (*models.ProgramConfig, error) {
	var cfg models.ProgramConfig
	err := s.configs.FindOne(ctx, bson.M{"_id": models.ProgramConfigID}).Decode(&cfg)
	if err == nil {
		if cfg.RequiredChannels == nil {
			cfg.RequiredChannels = []string{}
		}
		return &cfg, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.Unavailable("load program config", err)
	}
	return s.seedProgramConfig(ctx, defaults)
}

func (s *MongoStore) seedProgramConfig(ctx context.Context, defaults models.ProgramConfig) (*models.ProgramConfig, error) {
	channels := defaults.RequiredChannels
	if channels == nil {
		channels = []string{}
	}
	update := bson.M{"$setOnInsert": bson.M{
		"referral_bonus":    defaults.ReferralBonus,
		"daily_bonus":       defaults.DailyBonus,
		"min_withdrawal":    defaults.MinWithdrawal,
		"required_channels": channels,
	}}
	opts := afterUpdate().SetUpsert(true)

	var cfg models.ProgramConfig
	var err error
	// Two concurrent upserts of the same _id can race; the loser sees a
	// duplicate key error and the retry finds the winner's document.
	for attempt := 0; attempt < 2; attempt++ {
		err = s.configs.FindOneAndUpdate(ctx, bson.M{"_id": models.ProgramConfigID}, update, opts).Decode(&cfg)
		if err == nil {
			if cfg.RequiredChannels == nil {
				cfg.RequiredChannels = []string{}
			}
			return &cfg, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			break
		}
	}
	return nil, apperr.Unavailable("seed program config", err)
}

func (s *MongoStore) SetConfigAmount(ctx context.Context, field models.ConfigField, value int64) (*models.ProgramConfig, error) {
	var cfg models.ProgramConfig
	err := s.configs.FindOneAndUpdate(ctx,
		bson.M{"_id": models.ProgramConfigID},
		bson.M{"$set": bson.M{string(field): value}},
		afterUpdate(),
	).Decode(&cfg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Unavailable("update program config", err)
	}
	return &cfg, nil
}

func (s *MongoStore) AddRequiredChannel(ctx context.Context, channel string) (bool, error) {
	res, err := s.configs.UpdateOne(ctx,
		bson.M{"_id": models.ProgramConfigID, "required_channels": bson.M{"$ne": channel}},
		bson.M{"$addToSet": bson.M{"required_channels": channel}},
	)
	if err != nil {
		return false, apperr.Unavailable("add channel", err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *MongoStore) RemoveRequiredChannel(ctx context.Context, channel string) (bool, error) {
	res, err := s.configs.UpdateOne(ctx,
		bson.M{"_id": models.ProgramConfigID, "required_channels": channel},
		bson.M{"$pull": bson.M{"required_channels": channel}},
	)
	if err != nil {
		return false, apperr.Unavailable("remove channel", err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *MongoStore) CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	if _, err := s.withdrawals.InsertOne(ctx, w); err != nil {
		return apperr.Unavailable("create withdrawal", err)
	}
	return nil
}

func (s *MongoStore) GetWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := s.withdrawals.FindOne(ctx, bson.M{"_id": id}).Decode(&w)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Unavailable("get withdrawal", err)
	}
	return &w, nil
}

func (s *MongoStore) TransitionWithdrawal(ctx context.Context, id string, from, to models.WithdrawalStatus, by int64, at time.Time) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := s.withdrawals.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "decided_by": by, "decided_at": at}},
		afterUpdate(),
	).Decode(&w)
	if err == nil {
		return &w, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.Unavailable("update withdrawal", err)
	}
	if _, err := s.GetWithdrawal(ctx, id); err != nil {
		return nil, err
	}
	return nil, apperr.ErrRequestConsumed
}

func (s *MongoStore) CountWithdrawals(ctx context.Context, status models.WithdrawalStatus) (int64, error) {
	n, err := s.withdrawals.CountDocuments(ctx, bson.M{"status": status})
	if err != nil {
		return 0, apperr.Unavailable("count withdrawals", err)
	}
	return n, nil
}

func (s *MongoStore) SavePayment(ctx context.Context, p *models.Payment) error {
	if _, err := s.payments.InsertOne(ctx, p); err != nil {
		return apperr.Unavailable("save payment", err)
	}
	return nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
