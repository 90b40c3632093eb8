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

const quizCollection = "quizzes"

type questionDocument struct {
	ID       bson.ObjectID `bson:"_id"`
	Question string        `bson:"question"`
	Options  []string      `bson:"options"`
	Answer   string        `bson:"answer"`
}

type participantDocument struct {
	Key         string    `bson:"key"`
	Name        string    `bson:"name"`
	Score       int       `bson:"score"`
	TimeTaken   int64     `bson:"timeTaken"`
	SubmittedAt time.Time `bson:"submittedAt"`
}

type quizDocument struct {
	ID           bson.ObjectID         `bson:"_id"`
	Title        string                `bson:"title"`
	Description  string                `bson:"description"`
	Topic        string                `bson:"topic"`
	Difficulty   string                `bson:"difficulty"`
	Questions    []questionDocument    `bson:"questions"`
	CreatedBy    string                `bson:"createdBy"`
	IsLive       bool                  `bson:"isLive"`
	Participants []participantDocument `bson:"participants"`
	Winner       *string               `bson:"winner"`
	LiveAt       *time.Time            `bson:"liveAt"`
	EndedAt      *time.Time            `bson:"endedAt"`
	CreatedAt    time.Time             `bson:"createdAt"`
	UpdatedAt    time.Time             `bson:"updatedAt"`
}

// QuizStore persists quizzes in the quizzes collection.
type QuizStore struct {
	connector *Connector
}

func NewQuizStore(connector *Connector) *QuizStore {
	return &QuizStore{connector: connector}
}

// EnsureIndexes creates the creator listing index.
func (s *QuizStore) EnsureIndexes(ctx context.Context) error {
	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdBy", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create quiz index: %w", err)
	}
	return nil
}

func (s *QuizStore) InsertQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return domain.Quiz{}, err
	}
	doc := toQuizDocument(quiz)
	doc.ID = bson.NewObjectID()
	for i := range doc.Questions {
		doc.Questions[i].ID = bson.NewObjectID()
	}
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return domain.Quiz{}, fmt.Errorf("insert quiz: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *QuizStore) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return domain.Quiz{}, err
	}
	id, err := parseID(quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	var doc quizDocument
	if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return domain.Quiz{}, notFound(err)
	}
	return doc.toDomain(), nil
}

func (s *QuizStore) ListQuizzesByCreator(ctx context.Context, userID string) ([]domain.Quiz, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}
	cursor, err := coll.Find(ctx, bson.M{"createdBy": userID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find quizzes: %w", err)
	}
	var docs []quizDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode quizzes: %w", err)
	}
	out := make([]domain.Quiz, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, nil
}

func (s *QuizStore) MarkLive(ctx context.Context, quizID string, at time.Time) (domain.Quiz, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return domain.Quiz{}, err
	}
	id, err := parseID(quizID)
	if err != nil {
		return domain.Quiz{}, err
	}

	var doc quizDocument
	err = coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "endedAt": nil},
		mongo.Pipeline{{{Key: "$set", Value: bson.D{
			{Key: "isLive", Value: true},
			{Key: "updatedAt", Value: at},
			{Key: "liveAt", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$liveAt", at}}}},
		}}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := s.GetQuiz(ctx, quizID); getErr != nil {
			return domain.Quiz{}, getErr
		}
		return domain.Quiz{}, domain.ErrInvalidTransition
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("mark quiz live: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *QuizStore) MarkEnded(ctx context.Context, quizID string, at time.Time) (domain.Quiz, bool, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return domain.Quiz{}, false, err
	}
	id, err := parseID(quizID)
	if err != nil {
		return domain.Quiz{}, false, err
	}

	var doc quizDocument
	err = coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "isLive": true},
		bson.M{"$set": bson.M{"isLive": false, "endedAt": at, "updatedAt": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		quiz, getErr := s.GetQuiz(ctx, quizID)
		if getErr != nil {
			return domain.Quiz{}, false, getErr
		}
		return quiz, false, nil
	}
	if err != nil {
		return domain.Quiz{}, false, fmt.Errorf("mark quiz ended: %w", err)
	}
	return doc.toDomain(), true, nil
}

func (s *QuizStore) SetWinner(ctx context.Context, quizID string, winner *string) error {
	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}
	id, err := parseID(quizID)
	if err != nil {
		return err
	}
	res, err := coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"winner": winner}})
	if err != nil {
		return fmt.Errorf("set winner: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *QuizStore) AppendParticipant(ctx context.Context, quizID string, p domain.Participant) (domain.Quiz, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return domain.Quiz{}, err
	}
	id, err := parseID(quizID)
	if err != nil {
		return domain.Quiz{}, err
	}

	var doc quizDocument
	err = coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "isLive": true, "participants.key": bson.M{"$ne": p.Key}},
		bson.M{
			"$push": bson.M{"participants": toParticipantDocument(p)},
			"$set":  bson.M{"updatedAt": p.SubmittedAt},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		quiz, getErr := s.GetQuiz(ctx, quizID)
		switch {
		case getErr != nil:
			return domain.Quiz{}, getErr
		case !quiz.IsLive:
			return domain.Quiz{}, domain.ErrQuizNotLive
		default:
			return domain.Quiz{}, domain.ErrAlreadySubmitted
		}
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("append participant: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *QuizStore) collection(ctx context.Context) (*mongo.Collection, error) {
	db, err := s.connector.Database(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(quizCollection), nil
}

func parseID(raw string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(raw)
	if err != nil {
		// a malformed id cannot name a stored quiz
		return bson.ObjectID{}, domain.ErrQuizNotFound
	}
	return id, nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrQuizNotFound
	}
	return fmt.Errorf("find quiz: %w", err)
}

func toQuizDocument(q domain.Quiz) quizDocument {
	questions := make([]questionDocument, 0, len(q.Questions))
	for _, question := range q.Questions {
		questions = append(questions, questionDocument{
			Question: question.Question,
			Options:  append([]string(nil), question.Options...),
			Answer:   question.Answer,
		})
	}
	participants := make([]participantDocument, 0, len(q.Participants))
	for _, p := range q.Participants {
		participants = append(participants, toParticipantDocument(p))
	}
	return quizDocument{
		Title:        q.Title,
		Description:  q.Description,
		Topic:        q.Topic,
		Difficulty:   string(q.Difficulty),
		Questions:    questions,
		CreatedBy:    q.CreatedBy,
		IsLive:       q.IsLive,
		Participants: participants,
		Winner:       q.Winner,
		LiveAt:       q.LiveAt,
		EndedAt:      q.EndedAt,
		CreatedAt:    q.CreatedAt,
		UpdatedAt:    q.UpdatedAt,
	}
}

func toParticipantDocument(p domain.Participant) participantDocument {
	return participantDocument{
		Key:         p.Key,
		Name:        p.Name,
		Score:       p.Score,
		TimeTaken:   p.TimeTaken,
		SubmittedAt: p.SubmittedAt,
	}
}

func (d quizDocument) toDomain() domain.Quiz {
	questions := make([]domain.Question, 0, len(d.Questions))
	for _, q := range d.Questions {
		questions = append(questions, domain.Question{
			ID:       q.ID.Hex(),
			Question: q.Question,
			Options:  q.Options,
			Answer:   q.Answer,
		})
	}
	participants := make([]domain.Participant, 0, len(d.Participants))
	for _, p := range d.Participants {
		participants = append(participants, domain.Participant{
			Key:         p.Key,
			Name:        p.Name,
			Score:       p.Score,
			TimeTaken:   p.TimeTaken,
			SubmittedAt: p.SubmittedAt,
		})
	}
	return domain.Quiz{
		ID:           d.ID.Hex(),
		Title:        d.Title,
		Description:  d.Description,
		Topic:        d.Topic,
		Difficulty:   domain.Difficulty(d.Difficulty),
		Questions:    questions,
		CreatedBy:    d.CreatedBy,
		IsLive:       d.IsLive,
		Participants: participants,
		Winner:       d.Winner,
		LiveAt:       d.LiveAt,
		EndedAt:      d.EndedAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
