// Package feed carries record changes between instances over Redis pub/sub.
// Every committed change is published; every received change is merged
// into the local snapshot by identity.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"housekeeping-backend/internal/model"
	"housekeeping-backend/internal/state"
)

// Table names carried on the wire.
const (
	TableFacilities   = "facilities"
	TableStaff        = "staff"
	TableRooms        = "rooms"
	TableBookings     = "bookings"
	TableTasks        = "housekeeping_tasks"
	TableItems        = "inventory_items"
	TableTransactions = "inventory_transactions"
	TableRecipes      = "room_recipes"
)

// Message is one change notification.
type Message struct {
	Origin string          `json:"origin"`
	Table  string          `json:"table"`
	Op     state.Op        `json:"op"`
	Record json.RawMessage `json:"record"`
}

// Publisher is the part of a Redis client used to send.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// NewClient connects to Redis. url is either a redis:// URL or host:port.
func NewClient(url string) (*redis.Client, error) {
	if url == "" {
		url = "localhost:6379"
		log.Println("Warning: Redis URL not set, using localhost:6379")
	}
	if strings.Contains(url, "://") {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: url}), nil
}

// Feed publishes local changes and applies remote ones.
type Feed struct {
	pub     Publisher
	channel string
	origin  string
}

// New creates a feed on channel. Each Feed gets its own origin id so it can
// ignore its own echoes.
func New(pub Publisher, channel string) *Feed {
	return &Feed{pub: pub, channel: channel, origin: uuid.NewString()}
}

// Announce publishes the records ev wrote. Failures are logged; the change
// reaches other instances on their next refresh instead.
func (f *Feed) Announce(ctx context.Context, ev state.Event) {
	msgs, err := Encode(ev)
	if err != nil {
		log.Printf("Warning: failed to encode change for feed: %v", err)
		return
	}
	for _, m := range msgs {
		m.Origin = f.origin
		payload, err := json.Marshal(m)
		if err != nil {
			log.Printf("Warning: failed to marshal feed message for %s: %v", m.Table, err)
			continue
		}
		if err := f.pub.Publish(ctx, f.channel, payload).Err(); err != nil {
			log.Printf("Warning: failed to publish %s change: %v", m.Table, err)
			return
		}
	}
}

// Run subscribes to the channel and merges every foreign message into st
// until ctx is done.
func (f *Feed) Run(ctx context.Context, client *redis.Client, st *state.Store) {
	sub := client.Subscribe(ctx, f.channel)
	defer sub.Close()

	log.Printf("Listening for changes on %q", f.channel)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Println("Change feed stopped.")
			return
		case msg, ok := <-ch:
			if !ok {
				log.Println("Warning: change feed subscription closed")
				return
			}
			if err := f.Handle(st, []byte(msg.Payload)); err != nil {
				log.Printf("Warning: dropping feed message: %v", err)
			}
		}
	}
}

// Handle merges one raw message into st. Messages this feed sent itself are
// skipped.
func (f *Feed) Handle(st *state.Store, payload []byte) error {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("invalid feed message: %w", err)
	}
	if m.Origin == f.origin {
		return nil
	}
	ev, err := Decode(m)
	if err != nil {
		return err
	}
	st.Apply(ev)
	return nil
}

// Encode turns a committed event into the messages that describe it.
func Encode(ev state.Event) ([]Message, error) {
	var b batch
	switch e := ev.(type) {
	case state.TasksCommitted:
		for _, t := range e.Tasks {
			b.add(TableTasks, state.OpUpdate, t)
		}
		for _, r := range e.Rooms {
			b.add(TableRooms, state.OpUpdate, r)
		}
	case state.RoomUpserted:
		b.add(TableRooms, state.OpUpdate, e.Room)
	case state.BookingUpserted:
		b.add(TableBookings, state.OpUpdate, e.Booking)
	case state.InventoryCommitted:
		for _, it := range e.Items {
			b.add(TableItems, state.OpUpdate, it)
		}
		for _, tx := range e.Transactions {
			b.add(TableTransactions, state.OpInsert, tx)
		}
		if e.Booking != nil {
			b.add(TableBookings, state.OpUpdate, *e.Booking)
		}
		if e.Task != nil {
			b.add(TableTasks, state.OpUpdate, *e.Task)
		}
	case state.RecordChanged:
		table, err := tableOf(e.Record)
		if err != nil {
			return nil, err
		}
		b.add(table, e.Op, e.Record)
	}
	return b.msgs, b.err
}

// Decode turns a message back into a snapshot change.
func Decode(m Message) (state.RecordChanged, error) {
	switch m.Op {
	case state.OpInsert, state.OpUpdate, state.OpDelete:
	default:
		return state.RecordChanged{}, fmt.Errorf("unknown op %q on %s", m.Op, m.Table)
	}

	var (
		rec any
		err error
	)
	switch m.Table {
	case TableFacilities:
		rec, err = decode[model.Facility](m.Record)
	case TableStaff:
		rec, err = decode[model.Staff](m.Record)
	case TableRooms:
		rec, err = decode[model.Room](m.Record)
	case TableBookings:
		rec, err = decode[model.Booking](m.Record)
	case TableTasks:
		rec, err = decode[model.HousekeepingTask](m.Record)
	case TableItems:
		rec, err = decode[model.InventoryItem](m.Record)
	case TableTransactions:
		rec, err = decode[model.InventoryTransaction](m.Record)
	case TableRecipes:
		rec, err = decode[model.RoomRecipe](m.Record)
	default:
		return state.RecordChanged{}, fmt.Errorf("unknown table %q", m.Table)
	}
	if err != nil {
		return state.RecordChanged{}, fmt.Errorf("invalid %s record: %w", m.Table, err)
	}
	return state.RecordChanged{Op: m.Op, Record: rec}, nil
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

func tableOf(rec any) (string, error) {
	switch rec.(type) {
	case model.Facility:
		return TableFacilities, nil
	case model.Staff:
		return TableStaff, nil
	case model.Room:
		return TableRooms, nil
	case model.Booking:
		return TableBookings, nil
	case model.HousekeepingTask:
		return TableTasks, nil
	case model.InventoryItem:
		return TableItems, nil
	case model.InventoryTransaction:
		return TableTransactions, nil
	case model.RoomRecipe:
		return TableRecipes, nil
	}
	return "", fmt.Errorf("no table for %T", rec)
}

type batch struct {
	msgs []Message
	err  error
}

func (b *batch) add(table string, op state.Op, rec any) {
	if b.err != nil {
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		b.err = fmt.Errorf("marshal %s record: %w", table, err)
		return
	}
	b.msgs = append(b.msgs, Message{Table: table, Op: op, Record: raw})
}
