package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stayvibe/internal/app/policies"
	"stayvibe/internal/domain/availability"
	"stayvibe/internal/domain/booking"
	"stayvibe/internal/domain/pricing"
	"stayvibe/internal/domain/shared/datekey"
	"stayvibe/internal/domain/shared/daterange"
	"stayvibe/internal/domain/shared/money"
)

const bookingCollection = "bookings"

var ErrConcurrentUpdate = errors.New("mongo: concurrent update detected")

// BookingStore is the Mongo-backed booking service. Writes are optimistic
// upserts keyed on the stored version.
type BookingStore struct {
	col   *mongo.Collection
	clock func() time.Time
}

var (
	_ policies.BookingService = (*BookingStore)(nil)
	_ policies.BookingLister  = (*BookingStore)(nil)
)

func NewBookingStore(db *mongo.Database, clock func() time.Time) *BookingStore {
	if clock == nil {
		clock = time.Now
	}
	return &BookingStore{col: db.Collection(bookingCollection), clock: clock}
}

func (s *BookingStore) Reservations(ctx context.Context, unitID string) ([]availability.Reservation, error) {
	cur, err := s.col.Find(ctx, bson.M{"unit_id": unitID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []availability.Reservation
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		rec, err := doc.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, rec.Reservation())
	}
	return out, cur.Err()
}

func (s *BookingStore) CreateOrConfirm(ctx context.Context, rec *booking.Record) error {
	doc := newBookingDocument(rec)
	filter := bson.M{"_id": doc.ID, "version": rec.Version}
	doc.Version = rec.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := s.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	rec.Version = doc.Version
	return nil
}

func (s *BookingStore) Status(ctx context.Context, id booking.ID) (*booking.Record, error) {
	var doc bookingDocument
	if err := s.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, booking.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

func (s *BookingStore) Cancel(ctx context.Context, id booking.ID, reason string) error {
	rec, err := s.Status(ctx, id)
	if err != nil {
		return err
	}
	if err := rec.Cancel(reason, s.clock()); err != nil {
		return err
	}
	return s.CreateOrConfirm(ctx, rec)
}

func (s *BookingStore) List(ctx context.Context, filter policies.ListFilter) ([]*booking.Record, error) {
	query := bson.M{}
	if filter.UnitID != "" {
		query["unit_id"] = filter.UnitID
	}
	if filter.GuestID != "" {
		query["guest_id"] = filter.GuestID
	}
	if len(filter.States) > 0 {
		states := make([]string, 0, len(filter.States))
		for _, st := range filter.States {
			states = append(states, string(st))
		}
		query["state"] = bson.M{"$in": states}
	}
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cur, err := s.col.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*booking.Record
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		rec, err := doc.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, cur.Err()
}

type bookingDocument struct {
	ID          string        `bson:"_id"`
	UnitID      string        `bson:"unit_id"`
	GuestID     string        `bson:"guest_id"`
	GuestPhone  string        `bson:"guest_phone"`
	Range       rangeDocument `bson:"range"`
	Quote       quoteDocument `bson:"quote"`
	Rail        string        `bson:"rail"`
	Refs        refsDocument  `bson:"refs"`
	State       string        `bson:"state"`
	DepositPaid bool          `bson:"deposit_paid"`
	BalancePaid bool          `bson:"balance_paid"`
	AccessCode  string        `bson:"access_code,omitempty"`
	CreatedAt   int64         `bson:"created_at"`
	UpdatedAt   int64         `bson:"updated_at"`
	Version     int64         `bson:"version"`
}

type rangeDocument struct {
	CheckIn  string `bson:"check_in"`
	CheckOut string `bson:"check_out"`
}

type quoteDocument struct {
	Nights      int           `bson:"nights"`
	Full        moneyDocument `bson:"full"`
	Deposit     moneyDocument `bson:"deposit"`
	Balance     moneyDocument `bson:"balance"`
	PaymentType string        `bson:"payment_type"`
	PayNow      moneyDocument `bson:"pay_now"`
}

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

type refsDocument struct {
	DepositTxHash string `bson:"deposit_tx,omitempty"`
	BalanceTxHash string `bson:"balance_tx,omitempty"`
	PushRef       string `bson:"push_ref,omitempty"`
	CheckoutRef   string `bson:"checkout_ref,omitempty"`
}

func newBookingDocument(rec *booking.Record) bookingDocument {
	return bookingDocument{
		ID:         string(rec.ID),
		UnitID:     rec.UnitID,
		GuestID:    rec.GuestID,
		GuestPhone: rec.GuestPhone,
		Range: rangeDocument{
			CheckIn:  rec.Range.CheckIn.String(),
			CheckOut: rec.Range.CheckOut.String(),
		},
		Quote: quoteDocument{
			Nights:      rec.Quote.Nights,
			Full:        toMoneyDoc(rec.Quote.FullAmount),
			Deposit:     toMoneyDoc(rec.Quote.DepositAmount),
			Balance:     toMoneyDoc(rec.Quote.BalanceAmount),
			PaymentType: string(rec.Quote.PaymentType),
			PayNow:      toMoneyDoc(rec.Quote.AmountToPayNow),
		},
		Rail: string(rec.Rail),
		Refs: refsDocument{
			DepositTxHash: rec.Refs.DepositTxHash,
			BalanceTxHash: rec.Refs.BalanceTxHash,
			PushRef:       rec.Refs.PushRef,
			CheckoutRef:   rec.Refs.CheckoutRef,
		},
		State:       string(rec.State),
		DepositPaid: rec.DepositPaid,
		BalancePaid: rec.BalancePaid,
		AccessCode:  rec.AccessCode,
		CreatedAt:   rec.CreatedAt.UnixMilli(),
		UpdatedAt:   rec.UpdatedAt.UnixMilli(),
		Version:     rec.Version,
	}
}

func (d bookingDocument) toAggregate() (*booking.Record, error) {
	checkIn, err := datekey.Parse(d.Range.CheckIn)
	if err != nil {
		return nil, err
	}
	checkOut, err := datekey.Parse(d.Range.CheckOut)
	if err != nil {
		return nil, err
	}
	dr, err := daterange.New(checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	return &booking.Record{
		ID:         booking.ID(d.ID),
		UnitID:     d.UnitID,
		GuestID:    d.GuestID,
		GuestPhone: d.GuestPhone,
		Range:      dr,
		Quote: pricing.Quote{
			Nights:         d.Quote.Nights,
			FullAmount:     fromMoneyDoc(d.Quote.Full),
			DepositAmount:  fromMoneyDoc(d.Quote.Deposit),
			BalanceAmount:  fromMoneyDoc(d.Quote.Balance),
			PaymentType:    pricing.PaymentType(d.Quote.PaymentType),
			AmountToPayNow: fromMoneyDoc(d.Quote.PayNow),
		},
		Rail: booking.Rail(d.Rail),
		Refs: booking.RailRefs{
			DepositTxHash: d.Refs.DepositTxHash,
			BalanceTxHash: d.Refs.BalanceTxHash,
			PushRef:       d.Refs.PushRef,
			CheckoutRef:   d.Refs.CheckoutRef,
		},
		State:       booking.State(d.State),
		DepositPaid: d.DepositPaid,
		BalancePaid: d.BalancePaid,
		AccessCode:  d.AccessCode,
		CreatedAt:   time.UnixMilli(d.CreatedAt).UTC(),
		UpdatedAt:   time.UnixMilli(d.UpdatedAt).UTC(),
		Version:     d.Version,
	}, nil
}

func toMoneyDoc(m money.Money) moneyDocument {
	return moneyDocument{Amount: m.Amount, Currency: m.Currency}
}

func fromMoneyDoc(d moneyDocument) money.Money {
	return money.Money{Amount: d.Amount, Currency: d.Currency}
}
