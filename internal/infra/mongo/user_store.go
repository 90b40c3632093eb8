package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"edurumble-service/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const userCollection = "users"

type userDocument struct {
	ID               bson.ObjectID `bson:"_id"`
	Username         string        `bson:"username"`
	Email            string        `bson:"email"`
	Fullname         string        `bson:"fullname"`
	Password         string        `bson:"password"`
	Credits          int           `bson:"credits"`
	VerifyCode       string        `bson:"verifyCode"`
	IsVerified       bool          `bson:"isVerified"`
	VerifyCodeExpiry time.Time     `bson:"verifyCodeExpiry"`
	VerifyAttempts   int           `bson:"verifyAttempts"`
	AttemptedQuizzes []string      `bson:"attemptedQuizzes"`
	CreatedAt        time.Time     `bson:"createdAt"`
	UpdatedAt        time.Time     `bson:"updatedAt"`
}

// UserStore persists accounts in the users collection.
type UserStore struct {
	connector *Connector
}

func NewUserStore(connector *Connector) *UserStore {
	return &UserStore{connector: connector}
}

// EnsureIndexes creates the unique email and username indexes.
func (s *UserStore) EnsureIndexes(ctx context.Context) error {
	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (s *UserStore) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return domain.User{}, err
	}
	doc := toUserDocument(user)
	doc.ID = bson.NewObjectID()
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.User{}, domain.ErrConflict
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *UserStore) GetUser(ctx context.Context, userID string) (domain.User, error) {
	id, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return domain.User{}, domain.ErrUserNotFound
	}
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *UserStore) MarkVerified(ctx context.Context, userID string) error {
	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}
	id, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return domain.ErrUserNotFound
	}
	res, err := coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"isVerified": true, "updatedAt": time.Now()},
		"$unset": bson.M{"verifyCode": ""},
	})
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// TakeVerifyAttempt increments verifyAttempts only while it is below limit.
func (s *UserStore) TakeVerifyAttempt(ctx context.Context, userID string, limit int) (bool, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return false, err
	}
	id, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return false, domain.ErrUserNotFound
	}
	res, err := coll.UpdateOne(ctx,
		bson.M{"_id": id, "verifyAttempts": bson.M{"$not": bson.M{"$gte": limit}}},
		bson.M{"$inc": bson.M{"verifyAttempts": 1}},
	)
	if err != nil {
		return false, fmt.Errorf("take verify attempt: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetUser(ctx, userID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *UserStore) ResetVerification(ctx context.Context, userID, passwordHash, code string, expiry time.Time) (domain.User, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return domain.User{}, err
	}
	id, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return domain.User{}, domain.ErrUserNotFound
	}
	var doc userDocument
	err = coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "isVerified": false},
		bson.M{"$set": bson.M{
			"password":         passwordHash,
			"verifyCode":       code,
			"verifyCodeExpiry": expiry,
			"verifyAttempts":   0,
			"updatedAt":        time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := s.GetUser(ctx, userID); getErr != nil {
			return domain.User{}, getErr
		}
		return domain.User{}, domain.ErrConflict
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("reset verification: %w", err)
	}
	return doc.toDomain(), nil
}

// DebitCredits only matches when the balance covers amount, so concurrent
// debits can never drive it negative.
func (s *UserStore) DebitCredits(ctx context.Context, userID string, amount int) (int, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return 0, err
	}
	id, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return 0, domain.ErrUserNotFound
	}

	var doc userDocument
	err = coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "credits": bson.M{"$gte": amount}},
		bson.M{"$inc": bson.M{"credits": -amount}, "$set": bson.M{"updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		user, getErr := s.GetUser(ctx, userID)
		if getErr != nil {
			return 0, getErr
		}
		return user.Credits, domain.ErrInsufficientCredits
	}
	if err != nil {
		return 0, fmt.Errorf("debit credits: %w", err)
	}
	return doc.Credits, nil
}

func (s *UserStore) RefundCredits(ctx context.Context, userID string, amount int) (int, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return 0, err
	}
	id, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return 0, domain.ErrUserNotFound
	}

	var doc userDocument
	err = coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"credits": amount}, "$set": bson.M{"updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, domain.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("refund credits: %w", err)
	}
	return doc.Credits, nil
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (domain.User, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return domain.User{}, err
	}
	var doc userDocument
	err = coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *UserStore) collection(ctx context.Context) (*mongo.Collection, error) {
	db, err := s.connector.Database(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(userCollection), nil
}

func toUserDocument(u domain.User) userDocument {
	attempted := u.AttemptedQuizzes
	if attempted == nil {
		attempted = []string{}
	}
	return userDocument{
		Username:         u.Username,
		Email:            u.Email,
		Fullname:         u.Fullname,
		Password:         u.PasswordHash,
		Credits:          u.Credits,
		VerifyCode:       u.VerifyCode,
		IsVerified:       u.IsVerified,
		VerifyCodeExpiry: u.VerifyCodeExpiry,
		VerifyAttempts:   u.VerifyAttempts,
		AttemptedQuizzes: attempted,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func (d userDocument) toDomain() domain.User {
	return domain.User{
		ID:               d.ID.Hex(),
		Username:         d.Username,
		Email:            d.Email,
		Fullname:         d.Fullname,
		PasswordHash:     d.Password,
		Credits:          d.Credits,
		VerifyCode:       d.VerifyCode,
		IsVerified:       d.IsVerified,
		VerifyCodeExpiry: d.VerifyCodeExpiry,
		VerifyAttempts:   d.VerifyAttempts,
		AttemptedQuizzes: d.AttemptedQuizzes,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}
