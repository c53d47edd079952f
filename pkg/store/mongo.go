package store

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	colParticipants = "participants"
	colLotteryInfo  = "lottery_info"
	colTrips        = "trips"
	colSignups      = "signups"
	colWaitlist     = "waitlist"
	colLeaders      = "leaders"
	colSeparations  = "separations"
	colAdjustments  = "adjustments"
	colFeedback     = "feedback"
	colRuns         = "runs"
	colCounters     = "counters"
)

// MongoStore is a document-store backed Store for production use.
//
// Uniqueness of separations is checked at write time; deployments
// should additionally keep a unique index on (initiator_id,
// recipient_id) to guard concurrent writers.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

// nextID allocates a fresh int64 ID from the counters collection.
func (s *MongoStore) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.db.Collection(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": "records"},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

func (s *MongoStore) replaceByID(ctx context.Context, col string, id any, doc any) error {
	_, err := s.db.Collection(col).ReplaceOne(ctx,
		bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}

// Participant returns one participant by ID.
func (s *MongoStore) Participant(ctx context.Context, id int64) (*Participant, error) {
	var p Participant
	err := s.db.Collection(colParticipants).FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Participants returns all participants ordered by ID.
func (s *MongoStore) Participants(ctx context.Context) ([]Participant, error) {
	cursor, err := s.db.Collection(colParticipants).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []Participant
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertParticipant creates or replaces a participant.
func (s *MongoStore) UpsertParticipant(ctx context.Context, p *Participant) error {
	if p.ID == 0 {
		id, err := s.nextID(ctx)
		if err != nil {
			return err
		}
		p.ID = id
	}
	return s.replaceByID(ctx, colParticipants, p.ID, p)
}

// LotteryInfo returns a participant's lottery preferences, or nil.
func (s *MongoStore) LotteryInfo(ctx context.Context, participantID int64) (*LotteryInfo, error) {
	var li LotteryInfo
	err := s.db.Collection(colLotteryInfo).FindOne(ctx, bson.M{"_id": participantID}).Decode(&li)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &li, nil
}

// UpsertLotteryInfo creates or replaces lottery preferences.
func (s *MongoStore) UpsertLotteryInfo(ctx context.Context, li *LotteryInfo) error {
	return s.replaceByID(ctx, colLotteryInfo, li.ParticipantID, li)
}

// ReciprocalPair returns the mutually requested partner, or nil.
func (s *MongoStore) ReciprocalPair(ctx context.Context, participantID int64) (*Participant, error) {
	li, err := s.LotteryInfo(ctx, participantID)
	if err != nil || li == nil || li.PairedWith == nil {
		return nil, err
	}
	other, err := s.LotteryInfo(ctx, *li.PairedWith)
	if err != nil {
		return nil, err
	}
	if other == nil || other.PairedWith == nil || *other.PairedWith != participantID {
		return nil, nil
	}
	partner, err := s.Participant(ctx, *li.PairedWith)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return partner, err
}

// Trip returns one trip by ID.
func (s *MongoStore) Trip(ctx context.Context, id int64) (*Trip, error) {
	var t Trip
	err := s.db.Collection(colTrips).FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// LotteryTrips returns the program's lottery-mode trips ordered by ID.
func (s *MongoStore) LotteryTrips(ctx context.Context, program string) ([]Trip, error) {
	cursor, err := s.db.Collection(colTrips).Find(ctx,
		bson.M{"program": program, "algorithm": AlgorithmLottery},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []Trip
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertTrip creates or replaces a trip.
func (s *MongoStore) UpsertTrip(ctx context.Context, t *Trip) error {
	if t.ID == 0 {
		id, err := s.nextID(ctx)
		if err != nil {
			return err
		}
		t.ID = id
	}
	return s.replaceByID(ctx, colTrips, t.ID, t)
}

// SignUpFor returns a participant's signup for one trip.
func (s *MongoStore) SignUpFor(ctx context.Context, participantID, tripID int64) (*SignUp, error) {
	var su SignUp
	err := s.db.Collection(colSignups).FindOne(ctx,
		bson.M{"participant_id": participantID, "trip_id": tripID}).Decode(&su)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &su, nil
}

// futureLotteryTripIDs returns IDs of the program's lottery trips
// dated after the given day.
func (s *MongoStore) futureLotteryTripIDs(ctx context.Context, program string, after time.Time) ([]int64, error) {
	cursor, err := s.db.Collection(colTrips).Find(ctx,
		bson.M{
			"program":   program,
			"algorithm": AlgorithmLottery,
			"trip_date": bson.M{"$gt": after},
		},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ID int64 `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// RankedSignups returns pending lottery signups in preference order.
func (s *MongoStore) RankedSignups(ctx context.Context, participantID int64, program string, after time.Time) ([]SignUp, error) {
	tripIDs, err := s.futureLotteryTripIDs(ctx, program, after)
	if err != nil {
		return nil, err
	}
	if len(tripIDs) == 0 {
		return nil, nil
	}
	cursor, err := s.db.Collection(colSignups).Find(ctx,
		bson.M{
			"participant_id": participantID,
			"on_trip":        false,
			"trip_id":        bson.M{"$in": tripIDs},
		})
	if err != nil {
		return nil, err
	}
	var out []SignUp
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	// Nil orders must sort last; sorting in Go keeps the semantics in
	// one place instead of relying on BSON null ordering.
	slices.SortFunc(out, compareSignups)
	return out, nil
}

// TripSignups returns all signups for a trip ordered by ID.
func (s *MongoStore) TripSignups(ctx context.Context, tripID int64) ([]SignUp, error) {
	cursor, err := s.db.Collection(colSignups).Find(ctx,
		bson.M{"trip_id": tripID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []SignUp
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertSignUp creates or replaces a signup.
func (s *MongoStore) UpsertSignUp(ctx context.Context, su *SignUp) error {
	if su.ID == 0 {
		id, err := s.nextID(ctx)
		if err != nil {
			return err
		}
		su.ID = id
	}
	if su.CreatedAt.IsZero() {
		su.CreatedAt = time.Now()
	}
	return s.replaceByID(ctx, colSignups, su.ID, su)
}

// ParticipantsWithSignups returns participants with future lottery
// signups in the program, ordered by ID.
func (s *MongoStore) ParticipantsWithSignups(ctx context.Context, program string, after time.Time) ([]Participant, error) {
	tripIDs, err := s.futureLotteryTripIDs(ctx, program, after)
	if err != nil {
		return nil, err
	}
	if len(tripIDs) == 0 {
		return nil, nil
	}
	raw, err := s.db.Collection(colSignups).Distinct(ctx, "participant_id",
		bson.M{"trip_id": bson.M{"$in": tripIDs}})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(int64); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := s.db.Collection(colParticipants).Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []Participant
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddToWaitlist moves a signup onto its trip's waitlist.
func (s *MongoStore) AddToWaitlist(ctx context.Context, signUpID int64, prioritize bool) error {
	var su SignUp
	err := s.db.Collection(colSignups).FindOne(ctx, bson.M{"_id": signUpID}).Decode(&su)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	_, err = s.db.Collection(colSignups).UpdateOne(ctx,
		bson.M{"_id": signUpID}, bson.M{"$set": bson.M{"on_trip": false}})
	if err != nil {
		return err
	}

	var entry WaitlistEntry
	err = s.db.Collection(colWaitlist).FindOne(ctx, bson.M{"_id": signUpID}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		entry = WaitlistEntry{SignUpID: signUpID, TripID: su.TripID, AddedAt: time.Now()}
	} else if err != nil {
		return err
	}
	if prioritize {
		order, err := s.lastOfPriority(ctx, su.TripID)
		if err != nil {
			return err
		}
		entry.ManualOrder = &order
	}
	return s.replaceByID(ctx, colWaitlist, signUpID, &entry)
}

// lastOfPriority returns the ManualOrder that slots below all current
// prioritized entries but above first-come ones.
func (s *MongoStore) lastOfPriority(ctx context.Context, tripID int64) (int64, error) {
	var entry WaitlistEntry
	err := s.db.Collection(colWaitlist).FindOne(ctx,
		bson.M{"trip_id": tripID, "manual_order": bson.M{"$ne": nil}},
		options.FindOne().SetSort(bson.D{{Key: "manual_order", Value: 1}})).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 10, nil
	}
	if err != nil {
		return 0, err
	}
	if entry.ManualOrder == nil {
		return 10, nil
	}
	return *entry.ManualOrder - 1, nil
}

// Waitlist returns a trip's waitlisted signups in slot order.
func (s *MongoStore) Waitlist(ctx context.Context, tripID int64) ([]SignUp, error) {
	cursor, err := s.db.Collection(colWaitlist).Find(ctx,
		bson.M{"trip_id": tripID},
		options.Find().SetSort(bson.D{
			{Key: "manual_order", Value: -1},
			{Key: "added_at", Value: 1},
		}))
	if err != nil {
		return nil, err
	}
	var entries []WaitlistEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	out := make([]SignUp, 0, len(entries))
	for _, e := range entries {
		var su SignUp
		err := s.db.Collection(colSignups).FindOne(ctx, bson.M{"_id": e.SignUpID}).Decode(&su)
		if errors.Is(err, mongo.ErrNoDocuments) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, su)
	}
	return out, nil
}

// Leaders returns the participant IDs leading a trip, ordered.
func (s *MongoStore) Leaders(ctx context.Context, tripID int64) ([]int64, error) {
	cursor, err := s.db.Collection(colLeaders).Find(ctx,
		bson.M{"trip_id": tripID},
		options.Find().SetSort(bson.D{{Key: "participant_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []TripLeader
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ParticipantID)
	}
	return out, nil
}

// AddLeader assigns a leader to a trip.
func (s *MongoStore) AddLeader(ctx context.Context, tl *TripLeader) error {
	_, err := s.db.Collection(colLeaders).UpdateOne(ctx,
		bson.M{"trip_id": tl.TripID, "participant_id": tl.ParticipantID},
		bson.M{"$set": tl},
		options.Update().SetUpsert(true))
	return err
}

// TripsLedCount counts trips led with a date in (after, before).
func (s *MongoStore) TripsLedCount(ctx context.Context, participantID int64, after, before time.Time) (int, error) {
	cursor, err := s.db.Collection(colLeaders).Find(ctx, bson.M{"participant_id": participantID})
	if err != nil {
		return 0, err
	}
	var docs []TripLeader
	if err := cursor.All(ctx, &docs); err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}
	ids := make([]int64, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.TripID)
	}
	count, err := s.db.Collection(colTrips).CountDocuments(ctx, bson.M{
		"_id":       bson.M{"$in": ids},
		"trip_date": bson.M{"$gt": after, "$lt": before},
	})
	return int(count), err
}

// OnTripTripIDs returns the program's trips the participant is placed
// on with a date in (after, before).
func (s *MongoStore) OnTripTripIDs(ctx context.Context, participantID int64, program string, after, before time.Time) ([]int64, error) {
	cursor, err := s.db.Collection(colSignups).Find(ctx,
		bson.M{"participant_id": participantID, "on_trip": true})
	if err != nil {
		return nil, err
	}
	var signups []SignUp
	if err := cursor.All(ctx, &signups); err != nil {
		return nil, err
	}
	if len(signups) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(signups))
	for _, su := range signups {
		ids = append(ids, su.TripID)
	}
	tripCursor, err := s.db.Collection(colTrips).Find(ctx,
		bson.M{
			"_id":       bson.M{"$in": ids},
			"program":   program,
			"trip_date": bson.M{"$gt": after, "$lt": before},
		},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ID int64 `bson:"_id"`
	}
	if err := tripCursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out, nil
}

// FlakedTripIDs returns the program's trips the participant has
// showed-up=false feedback for.
func (s *MongoStore) FlakedTripIDs(ctx context.Context, participantID int64, program string) ([]int64, error) {
	raw, err := s.db.Collection(colFeedback).Distinct(ctx, "trip_id",
		bson.M{"participant_id": participantID, "showed_up": false})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(int64); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := s.db.Collection(colTrips).Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "program": program},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ID int64 `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out, nil
}

// AddFeedback records post-trip feedback.
func (s *MongoStore) AddFeedback(ctx context.Context, f *Feedback) error {
	if f.ID == 0 {
		id, err := s.nextID(ctx)
		if err != nil {
			return err
		}
		f.ID = id
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	return s.replaceByID(ctx, colFeedback, f.ID, f)
}

// Separations returns all separations ordered by initiator then
// recipient.
func (s *MongoStore) Separations(ctx context.Context) ([]Separation, error) {
	cursor, err := s.db.Collection(colSeparations).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{
			{Key: "initiator_id", Value: 1},
			{Key: "recipient_id", Value: 1},
		}))
	if err != nil {
		return nil, err
	}
	var out []Separation
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddSeparation records a separation request.
func (s *MongoStore) AddSeparation(ctx context.Context, sep *Separation) error {
	count, err := s.db.Collection(colSeparations).CountDocuments(ctx,
		bson.M{"initiator_id": sep.InitiatorID, "recipient_id": sep.RecipientID})
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicate
	}
	if sep.ID == 0 {
		id, err := s.nextID(ctx)
		if err != nil {
			return err
		}
		sep.ID = id
	}
	if sep.CreatedAt.IsZero() {
		sep.CreatedAt = time.Now()
	}
	_, err = s.db.Collection(colSeparations).InsertOne(ctx, sep)
	return err
}

// RemoveSeparation deletes a separation by its endpoints.
func (s *MongoStore) RemoveSeparation(ctx context.Context, initiatorID, recipientID int64) error {
	res, err := s.db.Collection(colSeparations).DeleteOne(ctx,
		bson.M{"initiator_id": initiatorID, "recipient_id": recipientID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Adjustments returns adjustments expiring after activeAt.
func (s *MongoStore) Adjustments(ctx context.Context, activeAt time.Time) ([]Adjustment, error) {
	cursor, err := s.db.Collection(colAdjustments).Find(ctx,
		bson.M{"expires_at": bson.M{"$gt": activeAt}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []Adjustment
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertAdjustment creates or replaces an adjustment.
func (s *MongoStore) UpsertAdjustment(ctx context.Context, a *Adjustment) error {
	if a.ID == 0 {
		id, err := s.nextID(ctx)
		if err != nil {
			return err
		}
		a.ID = id
	}
	return s.replaceByID(ctx, colAdjustments, a.ID, a)
}

// SaveRun stores a completed run record.
func (s *MongoStore) SaveRun(ctx context.Context, r *RunRecord) error {
	return s.replaceByID(ctx, colRuns, r.ID, r)
}

// Run returns a stored run record by UUID.
func (s *MongoStore) Run(ctx context.Context, id string) (*RunRecord, error) {
	var r RunRecord
	err := s.db.Collection(colRuns).FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ensure MongoStore implements Store.
var _ Store = (*MongoStore)(nil)
